// Package sequencer drives the ordered refinement steps of one dataset, chaining
// each successful control file into the next step.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexisbeaulieu97/refinery/internal/config"
	"github.com/alexisbeaulieu97/refinery/internal/control"
	"github.com/alexisbeaulieu97/refinery/internal/fitquality"
	"github.com/alexisbeaulieu97/refinery/internal/logger"
	"github.com/alexisbeaulieu97/refinery/internal/model"
	"github.com/alexisbeaulieu97/refinery/internal/retention"
	"github.com/alexisbeaulieu97/refinery/internal/supervisor"
	"github.com/alexisbeaulieu97/refinery/internal/template"
	"github.com/alexisbeaulieu97/refinery/internal/validation"
	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

const (
	reasonUserSkip       = "user skip"
	reasonCeiling        = "refinement timeout"
	reasonInterrupted    = "interrupted"
	defaultDurationTick  = time.Second
	validatorErrorPrefix = "validator error: "
)

// Engine runs one control file through the fitting engine.
type Engine interface {
	Run(ctx context.Context, req supervisor.Request) (supervisor.Result, error)
}

// Options carries the collaborators of a Sequencer. Every field is optional.
type Options struct {
	Signals   *control.Signals
	Observer  Observer
	Validator validation.Validator
	Engine    Engine
	Logger    *logger.Logger
	RunID     string
}

// Sequencer owns the results of one run. Status transitions happen on the Run
// goroutine; the duration ticker only refreshes DurationSeconds.
type Sequencer struct {
	cfg      config.RunConfig
	lib      *config.ParameterLibrary
	steps    []config.Step
	selected []int

	signals   *control.Signals
	observer  Observer
	validator validation.Validator
	engine    Engine
	log       *logger.Logger
	retention *retention.Queue

	now  func() time.Time
	tick time.Duration

	mu      sync.Mutex
	results []model.StepResult
	chain   string
}

// New prepares a sequencer for steps. cfg is completed with defaults.
func New(cfg config.RunConfig, lib *config.ParameterLibrary, steps []config.Step, opts Options) (*Sequencer, error) {
	cfg = cfg.WithDefaults()
	if cfg.EnginePath == "" {
		return nil, refinerrors.NewValidationError("engine", "engine path is required", nil)
	}
	if cfg.BaseTemplatePath == "" {
		return nil, refinerrors.NewValidationError("template", "base template path is required", nil)
	}
	if cfg.DataFilePath == "" {
		return nil, refinerrors.NewValidationError("data", "dataset path is required", nil)
	}
	if cfg.WorkDir == "" {
		return nil, refinerrors.NewValidationError("work_dir", "work directory is required", nil)
	}
	if lib == nil {
		return nil, refinerrors.NewValidationError("library", "parameter library is required", nil)
	}

	selected, err := selectSteps(len(steps), cfg.Only)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	if opts.RunID != "" {
		log = log.With("run", opts.RunID)
	}

	s := &Sequencer{
		cfg:       cfg,
		lib:       lib,
		steps:     steps,
		selected:  selected,
		signals:   opts.Signals,
		observer:  opts.Observer,
		validator: opts.Validator,
		engine:    opts.Engine,
		log:       log,
		retention: retention.New(cfg.MaxRetainedArtifactSets, log),
		now:       time.Now,
		tick:      defaultDurationTick,
		chain:     cfg.BaseTemplatePath,
	}
	if s.signals == nil {
		s.signals = control.New()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.engine == nil {
		s.engine = supervisor.New(log)
	}

	s.results = make([]model.StepResult, len(selected))
	for pos, idx := range selected {
		step := steps[idx]
		s.results[pos] = model.StepResult{
			Index:      pos + 1,
			Name:       step.Name,
			ParamNames: lib.DisplayNames(step),
			Status:     model.StatusWaiting,
		}
	}

	return s, nil
}

func selectSteps(total int, only []int) ([]int, error) {
	if len(only) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}

	seen := make(map[int]struct{}, len(only))
	out := make([]int, 0, len(only))
	for _, idx := range only {
		if idx < 0 || idx >= total {
			return nil, refinerrors.NewValidationError("only", fmt.Sprintf("step %d does not exist (have %d steps)", idx+1, total), nil)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out, nil
}

// Results returns a copy of the current results.
func (s *Sequencer) Results() []model.StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneResults(s.results)
}

// Chain returns the control file the next step would start from.
func (s *Sequencer) Chain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain
}

// Signals returns the control flags the sequencer obeys.
func (s *Sequencer) Signals() *control.Signals {
	return s.signals
}

// Run executes the selected steps in order. It returns refinerrors.ErrUserStop with
// the partial results when stopped or cancelled; step failures are recorded in the
// results and never abort the run.
func (s *Sequencer) Run(ctx context.Context) ([]model.StepResult, error) {
	if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
		return s.Results(), fmt.Errorf("create work directory: %w", err)
	}
	if err := os.Remove(s.historyPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn(fmt.Sprintf("could not reset error history: %v", err))
	}

	s.log.Info(fmt.Sprintf("refining %s with %d steps", filepath.Base(s.cfg.DataFilePath), len(s.selected)))
	s.publish()

	for pos, idx := range s.selected {
		if ctx.Err() != nil || s.signals.Stopped() {
			return s.stopped(pos)
		}
		if s.signals.Paused() {
			s.log.Info("paused")
		}
		if !s.signals.WaitWhilePaused(ctx) {
			return s.stopped(pos)
		}

		if err := s.runStep(ctx, pos, s.steps[idx]); err != nil {
			return s.Results(), err
		}
	}

	summary := model.Summarize(s.Results())
	s.log.Info(fmt.Sprintf("run finished: %d succeeded, %d failed, %d skipped", summary.Succeeded, summary.Failed, summary.Skipped))
	return s.Results(), nil
}

func (s *Sequencer) stopped(pos int) ([]model.StepResult, error) {
	s.log.Info(fmt.Sprintf("stopped before step %d", pos+1))
	return s.Results(), refinerrors.ErrUserStop
}

// runStep drives one step to a terminal status. Only a stop or cancellation is
// returned as an error.
func (s *Sequencer) runStep(ctx context.Context, pos int, step config.Step) error {
	start := s.now()
	log := s.log.With("step", step.Name)

	s.update(pos, func(r *model.StepResult) {
		r.Status = model.StatusRunning
		r.DurationSeconds = 0
		r.Reason = ""
	})

	var ceilingHit atomic.Bool
	tickCtx, cancelTicker := context.WithCancel(ctx)
	tickerDone := make(chan struct{})
	go func() {
		defer close(tickerDone)
		s.trackDuration(tickCtx, pos, start, &ceilingHit, log)
	}()
	var stopOnce sync.Once
	stopTracking := func() {
		stopOnce.Do(func() {
			cancelTicker()
			<-tickerDone
		})
	}
	defer stopTracking()

	if s.signals.ConsumeSkip() {
		s.skip(pos, start, step.Name, skipReason(&ceilingHit), log)
		return nil
	}

	base := BaseName(pos+1, step.Name)
	controlFile := filepath.Join(s.cfg.WorkDir, base+".pcr")
	dataFile := base + ".dat"

	s.mu.Lock()
	chain := s.chain
	s.mu.Unlock()

	log.Info(fmt.Sprintf("step %d/%d: refining %v", pos+1, len(s.selected), s.lib.DisplayNames(step)))

	err := template.RenderFile(template.Request{
		BasePath:   chain,
		OutputPath: controlFile,
		DataFile:   dataFile,
		Placements: s.lib.Placements(),
		Values:     step.Values(),
		Encodings:  s.cfg.Encodings,
	})
	if err != nil {
		s.fail(pos, start, step.Name, refinerrors.Reason(err), log)
		return nil
	}
	if err := copyFile(s.cfg.DataFilePath, filepath.Join(s.cfg.WorkDir, dataFile)); err != nil {
		s.fail(pos, start, step.Name, fmt.Sprintf("copy dataset: %v", err), log)
		return nil
	}
	s.retention.Push(retention.NewArtifactSet(pos+1, s.cfg.WorkDir, base, s.cfg.ArtifactExtensions))
	s.update(pos, func(r *model.StepResult) { r.ControlFile = controlFile })

	_, runErr := s.engine.Run(ctx, supervisor.Request{
		EnginePath:  s.cfg.EnginePath,
		EngineArgs:  s.cfg.EngineArgs,
		ControlFile: controlFile,
		StepName:    base,
		Timeout:     s.cfg.Timeout,
		Detection:   s.cfg.Detection,
		Signals:     s.signals,
		OnLine:      func(line string) { s.observer.OnEngineLine(pos, line) },
	})
	stopTracking()

	var skipErr *refinerrors.SkipError
	if s.signals.ConsumeSkip() || errors.As(runErr, &skipErr) {
		s.skip(pos, start, step.Name, skipReason(&ceilingHit), log)
		return nil
	}
	if runErr != nil {
		if ctx.Err() != nil {
			s.finish(pos, start, model.StatusFailed, reasonInterrupted)
			return refinerrors.ErrUserStop
		}
		s.fail(pos, start, step.Name, refinerrors.Reason(runErr), log)
		return nil
	}

	if s.validator != nil {
		violations, err := s.validator.Validate(ctx, controlFile)
		if err != nil {
			s.fail(pos, start, step.Name, validatorErrorPrefix+err.Error(), log)
			return nil
		}
		if len(violations) > 0 {
			s.fail(pos, start, step.Name, refinerrors.Reason(refinerrors.NewValidationFailure(violations)), log)
			return nil
		}
	}

	s.mu.Lock()
	s.chain = controlFile
	s.mu.Unlock()
	s.retention.Pin(controlFile)

	report, err := fitquality.Read(s.cfg.WorkDir, base, s.cfg.Encodings)
	if err != nil {
		log.Warn(fmt.Sprintf("no Chi2 value found: %v", err))
	} else {
		log.Info(fmt.Sprintf("Chi2 = %.2f", *report.Chi2))
	}

	s.update(pos, func(r *model.StepResult) {
		r.FitQuality = report.Chi2
		r.Rwp = report.Rwp
	})
	s.finish(pos, start, model.StatusSuccess, "")
	log.Info("step succeeded")
	return nil
}

// trackDuration refreshes the running step's duration and requests a skip once
// the step ceiling is exceeded.
func (s *Sequencer) trackDuration(ctx context.Context, pos int, start time.Time, ceilingHit *atomic.Bool, log *logger.Logger) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		elapsed := s.now().Sub(start)
		running := true
		s.update(pos, func(r *model.StepResult) {
			if r.Status != model.StatusRunning {
				running = false
				return
			}
			r.DurationSeconds = int(elapsed / time.Second)
		})
		if !running {
			return
		}

		if elapsed > s.cfg.StepCeiling && !s.signals.SkipRequested() {
			ceilingHit.Store(true)
			s.signals.Skip()
			log.Warn(fmt.Sprintf("step exceeded %s, skipping", s.cfg.StepCeiling))
			return
		}
	}
}

func skipReason(ceilingHit *atomic.Bool) string {
	if ceilingHit.Load() {
		return reasonCeiling
	}
	return reasonUserSkip
}

func (s *Sequencer) skip(pos int, start time.Time, name, reason string, log *logger.Logger) {
	log.Warn("step skipped: " + reason)
	s.recordHistory(name, reason, log)
	s.finish(pos, start, model.StatusSkipped, reason)
}

func (s *Sequencer) fail(pos int, start time.Time, name, reason string, log *logger.Logger) {
	log.Warn("step failed: " + reason)
	s.recordHistory(name, reason, log)
	s.finish(pos, start, model.StatusFailed, reason)
}

func (s *Sequencer) finish(pos int, start time.Time, status model.Status, reason string) {
	elapsed := s.now().Sub(start)
	s.update(pos, func(r *model.StepResult) {
		r.Status = status
		r.Reason = reason
		r.DurationSeconds = int(elapsed / time.Second)
	})
}

func (s *Sequencer) recordHistory(name, reason string, log *logger.Logger) {
	if err := appendErrorHistory(s.historyPath(), s.now(), name, reason); err != nil {
		log.Error(err, "could not write error history")
	}
}

func (s *Sequencer) historyPath() string {
	return filepath.Join(s.cfg.WorkDir, ErrorHistoryName)
}

// update mutates one result under the lock and publishes a snapshot.
func (s *Sequencer) update(pos int, fn func(*model.StepResult)) {
	s.mu.Lock()
	fn(&s.results[pos])
	snapshot := model.CloneResults(s.results)
	s.mu.Unlock()
	s.observer.OnStepResults(snapshot)
}

func (s *Sequencer) publish() {
	s.observer.OnStepResults(s.Results())
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

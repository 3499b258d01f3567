// Package supervisor launches the fitting engine on one control file and watches
// its output until it ends or has to be killed.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/refinery/internal/config"
	"github.com/alexisbeaulieu97/refinery/internal/control"
	"github.com/alexisbeaulieu97/refinery/internal/logger"
	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

const (
	// WarningLogName collects unconverged-but-finished records for a work directory.
	WarningLogName = "convergence_warnings.txt"

	maxLineLength = 1 << 20
	drainGrace    = 2 * time.Second
)

// Request describes one engine invocation.
type Request struct {
	EnginePath string
	EngineArgs []string
	// ControlFile is passed to the engine by base name; the engine runs in its directory.
	ControlFile string
	StepName    string
	Timeout     time.Duration
	Detection   config.DetectionConfig
	Signals     *control.Signals
	// OnLine receives every output line in order.
	OnLine func(line string)
}

// Result is the outcome of an engine run that ended normally.
type Result struct {
	ExitCode int
	Message  string
	Lines    int
	Warnings int
	Duration time.Duration
}

// Supervisor runs engine processes.
type Supervisor struct {
	log          *logger.Logger
	pollInterval time.Duration
	now          func() time.Time
}

// New creates a Supervisor logging through log.
func New(log *logger.Logger) *Supervisor {
	return &Supervisor{log: log, pollInterval: control.PollInterval, now: time.Now}
}

// Run starts the engine and blocks until it exits or is killed. A nil error means
// the engine exited with status zero; every other outcome is reported as one of the
// pkg/errors failure types, or the context error on cancellation.
func (s *Supervisor) Run(ctx context.Context, req Request) (Result, error) {
	start := s.now()
	dir := filepath.Dir(req.ControlFile)
	base := strings.TrimSuffix(filepath.Base(req.ControlFile), filepath.Ext(req.ControlFile))

	logFile, err := os.Create(filepath.Join(dir, base+".log"))
	if err != nil {
		return Result{}, fmt.Errorf("create engine log: %w", err)
	}
	defer logFile.Close()

	reader, writer, err := os.Pipe()
	if err != nil {
		return Result{}, fmt.Errorf("create output pipe: %w", err)
	}
	defer reader.Close()

	args := append(append([]string(nil), req.EngineArgs...), filepath.Base(req.ControlFile))
	cmd := exec.Command(req.EnginePath, args...)
	cmd.Dir = dir
	cmd.Stdout = writer
	cmd.Stderr = writer

	if err := cmd.Start(); err != nil {
		writer.Close()
		return Result{}, refinerrors.NewLaunchError(req.EnginePath, err)
	}
	writer.Close()

	log := s.log.WithFields(map[string]any{"step": req.StepName, "pid": cmd.Process.Pid})
	log.Debug("engine started")

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	lines := make(chan string, 64)
	done := make(chan struct{})
	defer close(done)
	go scanLines(reader, lines, done)

	run := &execution{
		sup:     s,
		req:     req,
		log:     log,
		cmd:     cmd,
		exited:  exited,
		logFile: logFile,
		monitor: newMonitor(req.Detection),
		warnLog: filepath.Join(dir, WarningLogName),
	}
	result, err := run.supervise(ctx, lines)
	result.Duration = s.now().Sub(start)
	return result, err
}

type execution struct {
	sup     *Supervisor
	req     Request
	log     *logger.Logger
	cmd     *exec.Cmd
	exited  chan error
	logFile *os.File
	monitor *monitor
	warnLog string

	result   Result
	waitErr  error
	finished bool
}

func (e *execution) supervise(ctx context.Context, lines <-chan string) (Result, error) {
	ticker := time.NewTicker(e.sup.pollInterval)
	defer ticker.Stop()

	var grace <-chan time.Time
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return e.complete(ctx)
			}
			if err := e.handleLine(line); err != nil {
				return e.kill(err)
			}
		case err := <-e.exited:
			// Output may still be buffered, or held open by a child process.
			e.finished = true
			e.waitErr = err
			grace = time.After(drainGrace)
		case <-grace:
			return e.exitResult()
		case <-ticker.C:
			if err := e.poll(); err != nil {
				return e.kill(err)
			}
		case <-ctx.Done():
			return e.kill(ctx.Err())
		}
	}
}

func (e *execution) handleLine(line string) error {
	e.result.Lines++
	fmt.Fprintln(e.logFile, line)
	if e.req.OnLine != nil {
		e.req.OnLine(line)
	}

	warning, err := e.monitor.observe(line, e.sup.now())
	if warning != "" {
		e.result.Warnings++
		e.recordWarning(warning)
	}
	if err != nil {
		return err
	}
	if e.req.Signals != nil && e.req.Signals.SkipRequested() {
		return refinerrors.NewSkipError("")
	}
	return nil
}

func (e *execution) poll() error {
	if e.req.Signals != nil && e.req.Signals.SkipRequested() {
		return refinerrors.NewSkipError("")
	}
	return e.monitor.checkIdle(e.sup.now())
}

// complete waits for the process after its output has ended. Timeout bounds
// this wait only; a step still producing output is limited by the stall detector
// and the sequencer's step ceiling.
func (e *execution) complete(ctx context.Context) (Result, error) {
	if e.finished {
		return e.exitResult()
	}

	var deadline <-chan time.Time
	if e.req.Timeout > 0 {
		timer := time.NewTimer(e.req.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(e.sup.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-e.exited:
			e.finished = true
			e.waitErr = err
			return e.exitResult()
		case <-ticker.C:
			if e.req.Signals != nil && e.req.Signals.SkipRequested() {
				return e.kill(refinerrors.NewSkipError(""))
			}
		case <-deadline:
			return e.kill(refinerrors.NewTimeoutError(e.req.Timeout.String()))
		case <-ctx.Done():
			return e.kill(ctx.Err())
		}
	}
}

func (e *execution) exitResult() (Result, error) {
	if e.waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(e.waitErr, &exitErr) {
			e.result.ExitCode = exitErr.ExitCode()
			return e.result, refinerrors.NewEngineRuntimeError(fmt.Sprintf("exit status %d", e.result.ExitCode), "")
		}
		return e.result, refinerrors.NewEngineRuntimeError(e.waitErr.Error(), "")
	}
	e.result.Message = "normal"
	e.log.Debug("engine exited normally")
	return e.result, nil
}

// kill terminates the engine, reaps it and returns cause.
func (e *execution) kill(cause error) (Result, error) {
	if !e.finished {
		if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			e.log.Error(err, "kill engine")
		}
		<-e.exited
		e.finished = true
	}
	e.result.ExitCode = -1
	e.log.Warn(fmt.Sprintf("engine killed: %s", refinerrors.Reason(cause)))
	return e.result, cause
}

func (e *execution) recordWarning(value string) {
	e.log.Warn(fmt.Sprintf("engine finished without convergence (last value %s)", value))

	f, err := os.OpenFile(e.warnLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		e.log.Error(err, "open convergence warning log")
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "[%s] step: %s\nunconverged value: %s\n%s\n",
		e.sup.now().Format("2006-01-02 15:04:05"), e.req.StepName, value, strings.Repeat("-", 40))
}

// scanLines forwards output lines until the pipe ends or is closed.
func scanLines(r *os.File, out chan<- string, done <-chan struct{}) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	for scanner.Scan() {
		select {
		case out <- strings.TrimRight(scanner.Text(), "\r"):
		case <-done:
			return
		}
	}
}

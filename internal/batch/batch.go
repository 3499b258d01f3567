// Package batch refines every dataset of a directory in turn, each in its own
// subdirectory, chaining templates between datasets according to a strategy.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/refinery/internal/config"
	"github.com/alexisbeaulieu97/refinery/internal/logger"
	"github.com/alexisbeaulieu97/refinery/internal/model"
	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

// Strategy selects the starting template of each dataset.
type Strategy string

const (
	// StrategyFixed starts every dataset from the root template.
	StrategyFixed Strategy = "fixed"
	// StrategyRecursive starts from the previous dataset's last successful control file.
	StrategyRecursive Strategy = "recursive"
	// StrategySingle marks a plain single-dataset run in reports.
	StrategySingle Strategy = "single"
)

// ParseStrategy accepts "fixed" (the default when empty) or "recursive".
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case "", StrategyFixed:
		return StrategyFixed, nil
	case StrategyRecursive:
		return StrategyRecursive, nil
	default:
		return "", refinerrors.NewValidationError("strategy", fmt.Sprintf("unknown strategy %q (want fixed or recursive)", value), nil)
	}
}

// Label is the human description used in reports.
func (s Strategy) Label() string {
	switch s {
	case StrategyRecursive:
		return "recursive template"
	case StrategySingle:
		return "single dataset"
	default:
		return "same template"
	}
}

// RunFunc refines one dataset described by cfg.
type RunFunc func(ctx context.Context, cfg config.RunConfig) ([]model.StepResult, error)

// Dataset announces the start of one dataset.
type Dataset struct {
	Index    int
	Total    int
	Name     string
	Dir      string
	Template string
}

// Options configures a Driver.
type Options struct {
	Strategy Strategy
	RunID    string
	Logger   *logger.Logger
	// OnDataset is called before each dataset starts.
	OnDataset func(Dataset)
	// Stopped, when set, is checked before each dataset; true ends the batch.
	Stopped func() bool
}

// Outcome is the result of one dataset.
type Outcome struct {
	Dataset Dataset
	Results []model.StepResult
	Elapsed time.Duration
	Report  string
	Err     error
}

// Driver runs datasets strictly one after another.
type Driver struct {
	base    config.RunConfig
	dataDir string
	run     RunFunc
	opts    Options
	log     *logger.Logger
	now     func() time.Time
}

// New creates a driver. base supplies every setting except the dataset, the work
// directory and, for the recursive strategy, the template.
func New(base config.RunConfig, dataDir string, run RunFunc, opts Options) *Driver {
	if opts.Strategy == "" {
		opts.Strategy = StrategyFixed
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Driver{base: base, dataDir: dataDir, run: run, opts: opts, log: log, now: time.Now}
}

// Datasets lists the *.dat files of dir by name, matching the extension without case.
func Datasets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset directory: %w", err)
	}

	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".dat") {
			continue
		}
		out = append(out, entry.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Run refines every dataset. A dataset's failures are kept in its outcome and never
// stop the batch; refinerrors.ErrUserStop does, after the interrupted dataset's
// report is written.
func (d *Driver) Run(ctx context.Context) ([]Outcome, error) {
	names, err := Datasets(d.dataDir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no .dat files in %s", d.dataDir)
	}

	var outcomes []Outcome
	previous := ""
	for i, name := range names {
		if ctx.Err() != nil || (d.opts.Stopped != nil && d.opts.Stopped()) {
			d.log.Info(fmt.Sprintf("stopped before dataset %s", name))
			return outcomes, refinerrors.ErrUserStop
		}

		ds := Dataset{
			Index:    i + 1,
			Total:    len(names),
			Name:     name,
			Dir:      filepath.Join(d.dataDir, strings.TrimSuffix(name, filepath.Ext(name))),
			Template: d.template(previous),
		}
		outcome := d.runDataset(ctx, ds)
		outcomes = append(outcomes, outcome)

		if errors.Is(outcome.Err, refinerrors.ErrUserStop) {
			return outcomes, refinerrors.ErrUserStop
		}

		previous = ""
		if last, ok := model.LastSuccess(outcome.Results); ok {
			previous = last.ControlFile
		}
	}
	return outcomes, nil
}

// template picks the starting control file for the next dataset.
func (d *Driver) template(previous string) string {
	if d.opts.Strategy != StrategyRecursive || previous == "" {
		return d.base.BaseTemplatePath
	}
	if info, err := os.Stat(previous); err != nil || info.IsDir() {
		d.log.Warn(fmt.Sprintf("previous control file %s is gone, using the root template", previous))
		return d.base.BaseTemplatePath
	}
	return previous
}

func (d *Driver) runDataset(ctx context.Context, ds Dataset) Outcome {
	log := d.log.WithFields(map[string]any{"dataset": ds.Name, "template": ds.Template})
	log.Info(fmt.Sprintf("dataset %d/%d", ds.Index, ds.Total))
	if d.opts.OnDataset != nil {
		d.opts.OnDataset(ds)
	}

	outcome := Outcome{Dataset: ds}
	if err := os.MkdirAll(ds.Dir, 0o755); err != nil {
		outcome.Err = fmt.Errorf("create dataset directory: %w", err)
		log.Error(outcome.Err, "dataset skipped")
		return outcome
	}

	cfg := d.base
	cfg.DataFilePath = filepath.Join(d.dataDir, ds.Name)
	cfg.WorkDir = ds.Dir
	cfg.BaseTemplatePath = ds.Template

	start := d.now()
	outcome.Results, outcome.Err = d.run(ctx, cfg)
	outcome.Elapsed = d.now().Sub(start)
	if outcome.Err != nil && !errors.Is(outcome.Err, refinerrors.ErrUserStop) {
		log.Error(outcome.Err, "dataset run failed")
	}

	report := Report{
		RunID:    d.opts.RunID,
		Strategy: d.opts.Strategy,
		Dataset:  cfg.DataFilePath,
		Template: ds.Template,
		Results:  outcome.Results,
		Elapsed:  outcome.Elapsed,
	}
	path, err := report.Write(ds.Dir)
	if err != nil {
		log.Error(err, "could not write report")
	}
	outcome.Report = path
	return outcome
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/refinery/internal/batch"
	"github.com/alexisbeaulieu97/refinery/internal/config"
	"github.com/alexisbeaulieu97/refinery/internal/validation"
)

const defaultProjectFile = "refinery.yaml"

// projectOptions are the inputs shared by run, batch and render. Flags override the
// project file.
type projectOptions struct {
	ProjectPath  string
	Engine       string
	EngineArgs   []string
	Template     string
	Data         string
	DataDir      string
	Library      string
	Steps        string
	WorkDir      string
	Validator    string
	Strategy     string
	Only         string
	Timeout      int
	MaxArtifacts int
	StepCeiling  int
}

// setup is a fully loaded refinement configuration.
type setup struct {
	cfg       config.RunConfig
	lib       *config.ParameterLibrary
	steps     []config.Step
	validator validation.Validator
	dataDir   string
	strategy  batch.Strategy
	verbose   bool
}

func (o *projectOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.ProjectPath, "project", "p", "", "Project file (default ./refinery.yaml when present)")
	f.StringVar(&o.Engine, "engine", "", "Fitting engine executable")
	f.StringSliceVar(&o.EngineArgs, "engine-arg", nil, "Argument passed to the engine before the control file (repeatable)")
	f.StringVar(&o.Template, "template", "", "Base control file")
	f.StringVar(&o.Library, "library", "", "Parameter library (YAML or JSON)")
	f.StringVar(&o.Steps, "steps", "", "Step configuration (YAML or JSON)")
	f.StringVar(&o.WorkDir, "work-dir", "", "Directory receiving step files")
	f.StringVar(&o.Validator, "validator", "", "Range-limit file or checker command run after each successful step")
	f.StringVar(&o.Only, "only", "", "Run only these 1-based steps, e.g. 1,3-5")
	f.IntVar(&o.Timeout, "timeout", 0, "Engine timeout per step in seconds")
	f.IntVar(&o.MaxArtifacts, "max-artifacts", 0, "Number of step file sets kept on disk")
	f.IntVar(&o.StepCeiling, "step-ceiling", 0, "Auto-skip a step running longer than this many seconds")
}

// load reads the project file, applies flag overrides and loads every referenced document.
func (o projectOptions) load() (*setup, error) {
	project, err := o.project()
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		dst *string
		val string
	}{
		{&project.Engine, o.Engine},
		{&project.Template, o.Template},
		{&project.Data, o.Data},
		{&project.DataDir, o.DataDir},
		{&project.Library, o.Library},
		{&project.Steps, o.Steps},
		{&project.WorkDir, o.WorkDir},
		{&project.Validator, o.Validator},
		{&project.Strategy, o.Strategy},
	}
	for _, ov := range overrides {
		if ov.val != "" {
			*ov.dst = ov.val
		}
	}
	if len(o.EngineArgs) > 0 {
		project.EngineArgs = o.EngineArgs
	}
	if o.Timeout > 0 {
		project.Settings.Timeout = o.Timeout
	}
	if o.MaxArtifacts > 0 {
		project.Settings.MaxArtifacts = o.MaxArtifacts
	}
	if o.StepCeiling > 0 {
		project.Settings.StepCeiling = o.StepCeiling
	}

	for _, req := range []struct{ name, val string }{
		{"engine", project.Engine},
		{"template", project.Template},
		{"library", project.Library},
		{"steps", project.Steps},
	} {
		if strings.TrimSpace(req.val) == "" {
			return nil, fmt.Errorf("%s is required (set it in the project file or with --%s)", req.name, req.name)
		}
	}

	lib, err := config.LoadParameterLibrary(project.Library)
	if err != nil {
		return nil, err
	}
	steps, err := config.LoadSteps(project.Steps, lib)
	if err != nil {
		return nil, err
	}

	cfg := project.Settings.RunConfig()
	cfg.EnginePath = project.Engine
	cfg.EngineArgs = project.EngineArgs
	cfg.BaseTemplatePath = project.Template
	cfg.DataFilePath = project.Data
	cfg.ParameterLibraryPath = project.Library
	cfg.WorkDir = project.WorkDir
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(filepath.Dir(project.Template), "refinery_work")
	}

	cfg.Only, err = parseOnly(o.Only, len(steps))
	if err != nil {
		return nil, err
	}

	s := &setup{cfg: cfg, lib: lib, steps: steps, dataDir: project.DataDir, verbose: project.Settings.Verbose}

	if project.Validator != "" {
		s.validator, err = validation.Load(project.Validator, cfg.Encodings)
		if err != nil {
			return nil, err
		}
	}

	s.strategy = batch.StrategyFixed
	if project.Strategy != "" {
		s.strategy, err = batch.ParseStrategy(project.Strategy)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (o projectOptions) project() (*config.Project, error) {
	path := o.ProjectPath
	if path == "" {
		if _, err := os.Stat(defaultProjectFile); err != nil {
			return &config.Project{}, nil
		}
		path = defaultProjectFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	return config.LoadProject(abs)
}

// parseOnly converts a 1-based list such as "1,3-5" into 0-based indices in the
// order written, bounded by total.
func parseOnly(value string, total int) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid step %q in --only", part)
		}
		last := first
		if isRange {
			last, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid step range %q in --only", part)
			}
		}
		if first < 1 || last < first {
			return nil, fmt.Errorf("invalid step range %q in --only", part)
		}
		if last > total {
			return nil, fmt.Errorf("step %d in --only exceeds the %d configured steps", last, total)
		}
		for n := first; n <= last; n++ {
			out = append(out, n-1)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("--only selects no steps")
	}
	return out, nil
}

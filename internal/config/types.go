package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/refinery/internal/template"
)

const (
	// DefaultTimeout bounds a single engine invocation.
	DefaultTimeout = time.Hour
	// DefaultMaxArtifacts is the number of step file sets kept on disk.
	DefaultMaxArtifacts = 5
	// DefaultStepCeiling auto-skips a step whose duration exceeds it.
	DefaultStepCeiling = 10000 * time.Second
	// DefaultRiseLimit is the number of consecutive shift increases tolerated.
	DefaultRiseLimit = 50
	// DefaultEqualLimit is the number of consecutive identical shifts tolerated.
	DefaultEqualLimit = 30
	// DefaultBlockInterval is the longest gap allowed between two shift markers.
	DefaultBlockInterval = 60 * time.Second
)

// DefaultArtifactExtensions lists every file the engine writes next to a control file.
var DefaultArtifactExtensions = []string{".out", ".prf", ".pcr", ".mic", ".dat", ".fst", ".log", ".sum"}

// ParameterDescriptor locates one refinable token inside the control file.
type ParameterDescriptor struct {
	ID       int     `yaml:"id" json:"id" validate:"min=1"`
	Name     string  `yaml:"name" json:"name" validate:"required"`
	Line     int     `yaml:"line" json:"line" validate:"min=1"`
	Position int     `yaml:"position" json:"position" validate:"min=0"`
	Phase    *int    `yaml:"phase,omitempty" json:"phase,omitempty"`
	Group    *string `yaml:"group,omitempty" json:"group,omitempty"`

	hasID bool
}

// UnmarshalYAML records whether the document set an id, so only missing ids are
// numbered by list position.
func (p *ParameterDescriptor) UnmarshalYAML(node *yaml.Node) error {
	type plain ParameterDescriptor
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*p = ParameterDescriptor(decoded)

	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "id" {
				p.hasID = true
			}
		}
	}
	return nil
}

// DisplayName appends the phase suffix when the parameter belongs to a phase.
func (p ParameterDescriptor) DisplayName() string {
	if p.Phase == nil {
		return p.Name
	}
	return fmt.Sprintf("%s_%d", p.Name, *p.Phase)
}

// ParameterLibrary is the full set of descriptors for one control file layout.
type ParameterLibrary struct {
	Parameters []ParameterDescriptor `yaml:"parameters_library" json:"parameters_library" validate:"required,min=1,dive"`

	byID map[int]int
}

// Lookup returns the descriptor registered under id.
func (l *ParameterLibrary) Lookup(id int) (ParameterDescriptor, bool) {
	if l == nil {
		return ParameterDescriptor{}, false
	}
	if l.byID == nil {
		l.index()
	}
	idx, ok := l.byID[id]
	if !ok {
		return ParameterDescriptor{}, false
	}
	return l.Parameters[idx], true
}

// Placements converts the library into the position map consumed by the template editor.
func (l *ParameterLibrary) Placements() []template.Placement {
	if l == nil {
		return nil
	}
	out := make([]template.Placement, 0, len(l.Parameters))
	for _, p := range l.Parameters {
		out = append(out, template.Placement{ID: p.ID, Line: p.Line, Position: p.Position})
	}
	return out
}

// DisplayNames resolves the display names of a step's active parameters.
func (l *ParameterLibrary) DisplayNames(step Step) []string {
	names := make([]string, 0, len(step.ActiveParams))
	for _, ap := range step.ActiveParams {
		if p, ok := l.Lookup(ap.ID); ok {
			names = append(names, p.DisplayName())
			continue
		}
		names = append(names, fmt.Sprintf("%d", ap.ID))
	}
	return names
}

func (l *ParameterLibrary) index() {
	l.byID = make(map[int]int, len(l.Parameters))
	for i, p := range l.Parameters {
		l.byID[p.ID] = i
	}
}

// ActiveParam sets one parameter to a target value for a step.
type ActiveParam struct {
	ID    int     `yaml:"id" json:"id" validate:"min=1"`
	Value float64 `yaml:"value" json:"value"`
}

// Step is one engine invocation activating a subset of parameters.
type Step struct {
	Name         string        `yaml:"name" json:"name" validate:"required,max=200"`
	ActiveParams []ActiveParam `yaml:"active_params" json:"active_params" validate:"dive"`
}

// Values maps parameter ids to their target values; later duplicates win.
func (s Step) Values() map[int]float64 {
	out := make(map[int]float64, len(s.ActiveParams))
	for _, ap := range s.ActiveParams {
		out[ap.ID] = ap.Value
	}
	return out
}

// StepConfig is the ordered step list document.
type StepConfig struct {
	Steps []Step `yaml:"steps" json:"steps" validate:"required,min=1,dive"`
}

// Project describes a refinement setup on disk; relative paths resolve against the project file.
type Project struct {
	Engine string `yaml:"engine" validate:"required"`
	// EngineArgs are passed to the engine before the control file name.
	EngineArgs []string `yaml:"engine_args,omitempty"`
	Template   string   `yaml:"template" validate:"required"`
	Data       string   `yaml:"data,omitempty"`
	DataDir    string   `yaml:"data_dir,omitempty"`
	Library    string   `yaml:"library" validate:"required"`
	Steps      string   `yaml:"steps" validate:"required"`
	WorkDir    string   `yaml:"work_dir,omitempty"`
	Validator  string   `yaml:"validator,omitempty"`
	Strategy   string   `yaml:"strategy,omitempty" validate:"omitempty,oneof=fixed recursive"`
	Settings   Settings `yaml:"settings,omitempty"`
}

// Settings holds tunables shared by single runs and batches.
type Settings struct {
	Timeout            int       `yaml:"timeout,omitempty" validate:"omitempty,min=1,max=360000"`
	MaxArtifacts       int       `yaml:"max_artifacts,omitempty" validate:"omitempty,min=1,max=1000"`
	StepCeiling        int       `yaml:"step_ceiling,omitempty" validate:"omitempty,min=1"`
	Encodings          []string  `yaml:"encodings,omitempty" validate:"omitempty,dive,encoding"`
	ArtifactExtensions []string  `yaml:"artifact_extensions,omitempty" validate:"omitempty,dive,extension"`
	Detection          Detection `yaml:"detection,omitempty"`
	Verbose            bool      `yaml:"verbose,omitempty"`
}

// Detection tunes the stagnation and stall detectors.
type Detection struct {
	Shift         *bool `yaml:"shift,omitempty"`
	Stall         *bool `yaml:"stall,omitempty"`
	RiseLimit     int   `yaml:"rise_limit,omitempty" validate:"omitempty,min=1"`
	EqualLimit    int   `yaml:"equal_limit,omitempty" validate:"omitempty,min=1"`
	BlockInterval int   `yaml:"block_interval,omitempty" validate:"omitempty,min=1"`
}

// DetectionConfig is the resolved form of Detection.
type DetectionConfig struct {
	ShiftEnabled  bool
	StallEnabled  bool
	RiseLimit     int
	EqualLimit    int
	BlockInterval time.Duration
}

// DefaultDetection returns the detector thresholds used when nothing is configured.
func DefaultDetection() DetectionConfig {
	return DetectionConfig{
		ShiftEnabled:  true,
		StallEnabled:  true,
		RiseLimit:     DefaultRiseLimit,
		EqualLimit:    DefaultEqualLimit,
		BlockInterval: DefaultBlockInterval,
	}
}

// Resolve applies defaults to unset detection fields.
func (d Detection) Resolve() DetectionConfig {
	out := DefaultDetection()
	if d.Shift != nil {
		out.ShiftEnabled = *d.Shift
	}
	if d.Stall != nil {
		out.StallEnabled = *d.Stall
	}
	if d.RiseLimit > 0 {
		out.RiseLimit = d.RiseLimit
	}
	if d.EqualLimit > 0 {
		out.EqualLimit = d.EqualLimit
	}
	if d.BlockInterval > 0 {
		out.BlockInterval = time.Duration(d.BlockInterval) * time.Second
	}
	return out
}

// RunConfig is everything a sequencer needs to refine one dataset.
type RunConfig struct {
	EnginePath              string
	EngineArgs              []string
	BaseTemplatePath        string
	DataFilePath            string
	ParameterLibraryPath    string
	WorkDir                 string
	Timeout                 time.Duration
	MaxRetainedArtifactSets int
	StepCeiling             time.Duration
	Detection               DetectionConfig
	Encodings               []string
	ArtifactExtensions      []string
	// Only restricts the run to these 0-based step indices; empty runs every step.
	Only []int
}

// WithDefaults fills zero-valued fields.
func (c RunConfig) WithDefaults() RunConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetainedArtifactSets <= 0 {
		c.MaxRetainedArtifactSets = DefaultMaxArtifacts
	}
	if c.StepCeiling <= 0 {
		c.StepCeiling = DefaultStepCeiling
	}
	if c.Detection == (DetectionConfig{}) {
		c.Detection = DefaultDetection()
	}
	if len(c.Encodings) == 0 {
		c.Encodings = append([]string(nil), template.DefaultEncodings...)
	}
	if len(c.ArtifactExtensions) == 0 {
		c.ArtifactExtensions = append([]string(nil), DefaultArtifactExtensions...)
	}
	return c
}

// RunConfig builds the per-dataset configuration from project settings.
func (s Settings) RunConfig() RunConfig {
	cfg := RunConfig{
		MaxRetainedArtifactSets: s.MaxArtifacts,
		Detection:               s.Detection.Resolve(),
		Encodings:               append([]string(nil), s.Encodings...),
		ArtifactExtensions:      append([]string(nil), s.ArtifactExtensions...),
	}
	if s.Timeout > 0 {
		cfg.Timeout = time.Duration(s.Timeout) * time.Second
	}
	if s.StepCeiling > 0 {
		cfg.StepCeiling = time.Duration(s.StepCeiling) * time.Second
	}
	return cfg.WithDefaults()
}

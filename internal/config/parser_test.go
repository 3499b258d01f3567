package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParameterLibrary(t *testing.T) {
	t.Parallel()

	jsonLib := `{"parameters_library": [
  {"name": "Scale", "line": 40, "position": 0, "phase": 1, "group": "profile"},
  {"name": "Zero", "line": 12, "position": 0},
  {"name": "Occ", "line": 55, "position": 6, "phase": 2}
]}`

	yamlLib := `parameters_library:
  - id: 10
    name: a
    line: 30
    position: 0
  - id: 11
    name: b
    line: 30
    position: 1
`

	duplicate := `parameters_library:
  - id: 3
    name: a
    line: 1
    position: 0
  - id: 3
    name: b
    line: 2
    position: 0
`

	zeroID := `parameters_library:
  - id: 0
    name: a
    line: 1
    position: 0
  - id: 1
    name: b
    line: 2
    position: 0
`

	badLine := `parameters_library:
  - name: a
    line: 0
    position: 0
`

	cases := []struct {
		name     string
		contents string
		assert   func(t *testing.T, lib *ParameterLibrary, err error)
	}{
		{
			name:     "json records receive positional ids",
			contents: jsonLib,
			assert: func(t *testing.T, lib *ParameterLibrary, err error) {
				require.NoError(t, err)
				require.Len(t, lib.Parameters, 3)
				p, ok := lib.Lookup(1)
				require.True(t, ok)
				require.Equal(t, "Scale_1", p.DisplayName())
				require.NotNil(t, p.Group)
				require.Equal(t, "profile", *p.Group)
				p, ok = lib.Lookup(2)
				require.True(t, ok)
				require.Equal(t, "Zero", p.DisplayName())
				require.Nil(t, p.Phase)
			},
		},
		{
			name:     "yaml records keep explicit ids and shared lines",
			contents: yamlLib,
			assert: func(t *testing.T, lib *ParameterLibrary, err error) {
				require.NoError(t, err)
				a, ok := lib.Lookup(10)
				require.True(t, ok)
				b, ok := lib.Lookup(11)
				require.True(t, ok)
				require.Equal(t, a.Line, b.Line)
				_, ok = lib.Lookup(1)
				require.False(t, ok)
			},
		},
		{
			name:     "duplicate ids are rejected",
			contents: duplicate,
			assert: func(t *testing.T, lib *ParameterLibrary, err error) {
				var validationErr *refinerrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				require.Contains(t, validationErr.Message, "duplicate id 3")
			},
		},
		{
			name:     "explicit id 0 is rejected rather than renumbered",
			contents: zeroID,
			assert: func(t *testing.T, lib *ParameterLibrary, err error) {
				var validationErr *refinerrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				require.Contains(t, validationErr.Field, "id")
				require.NotContains(t, validationErr.Message, "duplicate")
			},
		},
		{
			name:     "line numbers are 1-based",
			contents: badLine,
			assert: func(t *testing.T, lib *ParameterLibrary, err error) {
				var validationErr *refinerrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				require.Contains(t, validationErr.Field, "line")
			},
		},
		{
			name:     "malformed document returns parse error",
			contents: "parameters_library: [1, 2",
			assert: func(t *testing.T, lib *ParameterLibrary, err error) {
				var parseErr *refinerrors.ParseError
				require.ErrorAs(t, err, &parseErr)
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, t.TempDir(), "library.json", tc.contents)
			lib, err := LoadParameterLibrary(path)
			tc.assert(t, lib, err)
		})
	}
}

func TestLoadSteps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	libPath := writeFile(t, dir, "library.yaml", `parameters_library:
  - {name: scale, line: 3, position: 0}
  - {name: zero, line: 4, position: 1}
`)
	lib, err := LoadParameterLibrary(libPath)
	require.NoError(t, err)

	t.Run("valid steps", func(t *testing.T) {
		path := writeFile(t, dir, "steps.json", `{"steps": [
  {"name": "scale only", "active_params": [{"id": 1, "value": 1.0}]},
  {"name": "scale+zero", "active_params": [{"id": 1, "value": 1.0}, {"id": 2, "value": 2.5}]}
]}`)
		steps, err := LoadSteps(path, lib)
		require.NoError(t, err)
		require.Len(t, steps, 2)
		require.Equal(t, map[int]float64{1: 1.0, 2: 2.5}, steps[1].Values())
	})

	t.Run("unknown parameter id", func(t *testing.T) {
		path := writeFile(t, dir, "unknown.yaml", `steps:
  - name: broken
    active_params:
      - id: 9
        value: 1
`)
		_, err := LoadSteps(path, lib)
		var validationErr *refinerrors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Equal(t, "steps[0].active_params[0].id", validationErr.Field)
	})

	t.Run("empty step list", func(t *testing.T) {
		path := writeFile(t, dir, "empty.yaml", "steps: []\n")
		_, err := LoadSteps(path, lib)
		var validationErr *refinerrors.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSteps(filepath.Join(dir, "nope.yaml"), lib)
		var parseErr *refinerrors.ParseError
		require.ErrorAs(t, err, &parseErr)
	})
}

func TestStepValuesLastDuplicateWins(t *testing.T) {
	step := Step{Name: "dup", ActiveParams: []ActiveParam{{ID: 1, Value: 1}, {ID: 1, Value: 7}}}
	require.Equal(t, map[int]float64{1: 7}, step.Values())
}

func TestLoadProject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "refinery.yaml", `engine: /opt/fullprof/fp2k
template: base.pcr
data: sample.dat
library: library.json
steps: steps.json
work_dir: work
strategy: recursive
settings:
  timeout: 120
  max_artifacts: 3
  encodings: [utf-8, latin1]
  detection:
    stall: false
    equal_limit: 10
`)

	project, err := LoadProject(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/fullprof/fp2k", project.Engine)
	require.Equal(t, filepath.Join(dir, "base.pcr"), project.Template)
	require.Equal(t, filepath.Join(dir, "work"), project.WorkDir)
	require.Equal(t, "recursive", project.Strategy)

	cfg := project.Settings.RunConfig()
	require.Equal(t, 120*time.Second, cfg.Timeout)
	require.Equal(t, 3, cfg.MaxRetainedArtifactSets)
	require.Equal(t, DefaultStepCeiling, cfg.StepCeiling)
	require.True(t, cfg.Detection.ShiftEnabled)
	require.False(t, cfg.Detection.StallEnabled)
	require.Equal(t, 10, cfg.Detection.EqualLimit)
	require.Equal(t, DefaultRiseLimit, cfg.Detection.RiseLimit)
	require.Equal(t, []string{"utf-8", "latin1"}, cfg.Encodings)
	require.Equal(t, DefaultArtifactExtensions, cfg.ArtifactExtensions)
}

func TestLoadProjectRejectsUnknownEncoding(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "refinery.yaml", `engine: fp2k
template: base.pcr
library: library.json
steps: steps.json
settings:
  encodings: [ebcdic]
`)

	_, err := LoadProject(path)
	var validationErr *refinerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Message, "encoding")
}

func TestRunConfigWithDefaults(t *testing.T) {
	cfg := RunConfig{}.WithDefaults()
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultMaxArtifacts, cfg.MaxRetainedArtifactSets)
	require.Equal(t, DefaultStepCeiling, cfg.StepCeiling)
	require.Equal(t, DefaultDetection(), cfg.Detection)
	require.NotEmpty(t, cfg.Encodings)
}

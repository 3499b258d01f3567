package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixtureTemplate = `COMM refinery fixture
! Files => DAT-file: original.dat, PCR-file: original
  1.0000  0.25  0.00
END
`

const fixtureLibrary = `parameters_library:
  - id: 1
    name: Scale
    line: 3
    position: 0
  - id: 2
    name: Biso
    line: 3
    position: 1
    phase: 1
  - id: 3
    name: Zero
    line: 3
    position: 2
`

const fixtureSteps = `steps:
  - name: scale
    active_params:
      - id: 1
        value: 11
  - name: biso
    active_params:
      - id: 1
        value: 11
      - id: 2
        value: 21
`

const fixtureEngine = `base="${1%.pcr}"
echo " => Global user-weigthed Chi2 (Bragg contrib.):   3.10" > "$base.out"
echo " => Normal end, final calculations and writing..."
`

type projectFixture struct {
	dir     string
	project string
}

// newProjectFixture lays out a complete project whose engine is a shell script.
func newProjectFixture(t *testing.T) projectFixture {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"base.pcr":     fixtureTemplate,
		"library.yaml": fixtureLibrary,
		"steps.yaml":   fixtureSteps,
		"engine.sh":    fixtureEngine,
		"sample.dat":   "10.0 100\n10.1 120\n",
		"refinery.yaml": `engine: /bin/sh
engine_args: ["` + filepath.Join(dir, "engine.sh") + `"]
template: base.pcr
data: sample.dat
library: library.yaml
steps: steps.yaml
work_dir: work
settings:
  timeout: 30
  max_artifacts: 2
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return projectFixture{dir: dir, project: filepath.Join(dir, "refinery.yaml")}
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engines are shell scripts")
	}
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// LoadParameterLibrary reads a YAML or JSON parameter library and validates it.
// Records without an id receive their 1-based list position.
func LoadParameterLibrary(path string) (*ParameterLibrary, error) {
	var lib ParameterLibrary
	if err := decodeFile(path, &lib); err != nil {
		return nil, err
	}

	for i := range lib.Parameters {
		if !lib.Parameters[i].hasID {
			lib.Parameters[i].ID = i + 1
		}
	}

	if err := ValidateLibrary(&lib); err != nil {
		return nil, err
	}

	lib.index()
	return &lib, nil
}

// LoadSteps reads a YAML or JSON step configuration. When lib is non-nil every
// active parameter id must exist in it.
func LoadSteps(path string, lib *ParameterLibrary) ([]Step, error) {
	var cfg StepConfig
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}

	if err := ValidateSteps(cfg.Steps, lib); err != nil {
		return nil, err
	}

	return cfg.Steps, nil
}

// LoadProject reads a project file and resolves its relative paths.
func LoadProject(path string) (*Project, error) {
	var project Project
	if err := decodeFile(path, &project); err != nil {
		return nil, err
	}

	if err := validatorInstance().Struct(&project); err != nil {
		return nil, convertValidationError(err)
	}

	base := filepath.Dir(path)
	for _, p := range []*string{&project.Template, &project.Data, &project.DataDir, &project.Library, &project.Steps, &project.WorkDir, &project.Validator} {
		*p = resolvePath(base, *p)
	}
	project.Engine = resolveCommand(base, project.Engine)

	return &project, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return refinerrors.NewParseError(path, 0, err)
	}

	// JSON documents are valid YAML, so one decoder serves both formats.
	if err := yaml.Unmarshal(data, out); err != nil {
		return refinerrors.NewParseError(path, extractLine(err), err)
	}
	return nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// resolveCommand leaves bare command names for PATH lookup.
func resolveCommand(base, cmd string) string {
	if !strings.ContainsAny(cmd, `/\`) {
		return cmd
	}
	return resolvePath(base, cmd)
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}

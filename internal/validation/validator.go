// Package validation checks a finished step's control file against parameter limits.
package validation

import (
	"context"
	"path/filepath"
	"strings"
)

// Validator inspects a control file written by a successful engine run and returns
// one message per violation. An error means the check itself could not run.
type Validator interface {
	Validate(ctx context.Context, controlFile string) ([]string, error)
}

// Load builds the validator described by path: a .yaml, .yml or .json file is a
// range-limit document, anything else is an external checker command.
func Load(path string, encodings []string) (Validator, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return LoadRangeFile(path, encodings)
	default:
		return NewCommand(path), nil
	}
}

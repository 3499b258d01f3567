package validation

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/refinery/internal/template"
	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

// Limit bounds the token at Line (1-based) and Position (0-based) to [Min, Max].
type Limit struct {
	Name     string  `yaml:"name" json:"name" validate:"required"`
	Line     int     `yaml:"line" json:"line" validate:"min=1"`
	Position int     `yaml:"position" json:"position" validate:"min=0"`
	Min      float64 `yaml:"min" json:"min"`
	Max      float64 `yaml:"max" json:"max" validate:"gtefield=Min"`
}

type rangeDocument struct {
	Limits []Limit `yaml:"limits" json:"limits" validate:"required,min=1,dive"`
}

// RangeValidator checks control-file tokens against inclusive limits.
type RangeValidator struct {
	Limits    []Limit
	Encodings []string
}

// LoadRangeFile reads a YAML or JSON limits document.
func LoadRangeFile(path string, encodings []string) (*RangeValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, refinerrors.NewParseError(path, 0, err)
	}

	var doc rangeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, refinerrors.NewParseError(path, 0, err)
	}
	if err := validator.New().Struct(&doc); err != nil {
		return nil, refinerrors.NewValidationError("limits", err.Error(), err)
	}

	return &RangeValidator{Limits: doc.Limits, Encodings: encodings}, nil
}

// Validate implements Validator.
func (v *RangeValidator) Validate(_ context.Context, controlFile string) ([]string, error) {
	lines, _, err := template.ReadLines(controlFile, v.Encodings)
	if err != nil {
		return nil, err
	}

	var violations []string
	for _, limit := range v.Limits {
		if msg := checkLimit(lines, limit); msg != "" {
			violations = append(violations, msg)
		}
	}
	return violations, nil
}

func checkLimit(lines []string, limit Limit) string {
	if limit.Line < 1 || limit.Line > len(lines) {
		return fmt.Sprintf("%s: line %d is outside the control file", limit.Name, limit.Line)
	}

	line := strings.TrimSpace(lines[limit.Line-1])
	if strings.HasPrefix(line, "!") {
		return fmt.Sprintf("%s: line %d is a comment line", limit.Name, limit.Line)
	}

	tokens := strings.Fields(line)
	if limit.Position < 0 || limit.Position >= len(tokens) {
		return fmt.Sprintf("%s: line %d has no token at position %d", limit.Name, limit.Line, limit.Position)
	}

	value, err := strconv.ParseFloat(tokens[limit.Position], 64)
	if err != nil {
		return fmt.Sprintf("%s: token %q at line %d position %d is not numeric", limit.Name, tokens[limit.Position], limit.Line, limit.Position)
	}

	if value < limit.Min || value > limit.Max {
		return fmt.Sprintf("%s = %g is outside [%g, %g]", limit.Name, value, limit.Min, limit.Max)
	}
	return ""
}

package components

import (
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/refinery/internal/model"
)

// StepList formats step results one per line.
type StepList struct {
	results []model.StepResult
}

// NewStepList constructs a step list component.
func NewStepList(results []model.StepResult) StepList {
	return StepList{results: model.CloneResults(results)}
}

// Len returns the number of steps.
func (s StepList) Len() int {
	return len(s.results)
}

// Results returns the listed results.
func (s StepList) Results() []model.StepResult {
	return model.CloneResults(s.results)
}

// Describe renders everything after the status icon for one result.
func Describe(r model.StepResult) string {
	line := fmt.Sprintf("%2d. %s", r.Index, r.Name)
	if len(r.ParamNames) > 0 {
		line += " [" + strings.Join(r.ParamNames, ", ") + "]"
	}
	if r.Status != model.StatusWaiting {
		line += fmt.Sprintf(" %ds", r.DurationSeconds)
	}
	if r.FitQuality != nil {
		line += fmt.Sprintf(" chi2=%.2f", *r.FitQuality)
	}
	if r.Reason != "" {
		line += " : " + r.Reason
	}
	return line
}

package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/refinery/internal/model"
)

// ReportName is the per-dataset overview written after every run.
const ReportName = "step_overview.txt"

// Report is the overview of one dataset's run.
type Report struct {
	RunID    string
	Strategy Strategy
	// Dataset and Template are reported as absolute paths.
	Dataset  string
	Template string
	Results  []model.StepResult
	Elapsed  time.Duration
}

// Lines renders the report. Waiting steps are omitted.
func (r Report) Lines() []string {
	template, dataset := absPath(r.Template), absPath(r.Dataset)

	lines := []string{
		fmt.Sprintf("strategy [%s], refining %s, initial template %s", r.Strategy.Label(), dataset, template),
	}
	if r.RunID != "" {
		lines = append(lines, "run "+r.RunID)
	}
	lines = append(lines, strings.Repeat("-", 60))

	for _, res := range r.Results {
		if res.Status == model.StatusWaiting {
			continue
		}
		line := fmt.Sprintf("step %d: %s", res.Index, res.Name)
		if len(res.ParamNames) > 0 {
			line += " | params: " + strings.Join(res.ParamNames, ", ")
		}
		line += fmt.Sprintf(" | status: %s | duration: %ds", res.Status, res.DurationSeconds)
		switch res.Status {
		case model.StatusFailed, model.StatusSkipped:
			line += " | reason: " + res.Reason
		case model.StatusSuccess:
			line += " | refinement succeeded"
			if res.FitQuality != nil {
				line += fmt.Sprintf(" | Chi2: %.2f", *res.FitQuality)
			}
			if res.Rwp != nil {
				line += fmt.Sprintf(" | Rwp: %.2f", *res.Rwp)
			}
		}
		lines = append(lines, line)
	}

	lines = append(lines, fmt.Sprintf("total elapsed for this dataset: %.1f s", r.Elapsed.Seconds()))
	return lines
}

// Write stores the report as dir/step_overview.txt and returns its path.
func (r Report) Write(dir string) (string, error) {
	path := filepath.Join(dir, ReportName)
	content := strings.Join(r.Lines(), "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

package components

import (
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/refinery/internal/model"
)

// SummaryData aggregates counts for rendering summaries.
type SummaryData struct {
	Summary  model.Summary
	Finished bool
	Stopped  bool
	Err      string
}

// Summary renders a textual run summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a new Summary component.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary.
func (s Summary) View() string {
	var lines []string
	sum := s.data.Summary
	if sum.Total > 0 {
		lines = append(lines, fmt.Sprintf("Steps: %d/%d done (%d succeeded, %d failed, %d skipped)",
			sum.Completed(), sum.Total, sum.Succeeded, sum.Failed, sum.Skipped))
	}

	switch {
	case s.data.Err != "":
		lines = append(lines, "Run aborted: "+s.data.Err)
	case s.data.Stopped && s.data.Finished:
		lines = append(lines, "Run stopped")
	case s.data.Stopped:
		lines = append(lines, "Stopping after the current step...")
	case s.data.Finished:
		lines = append(lines, "Run finished")
	}

	return strings.Join(lines, "\n")
}

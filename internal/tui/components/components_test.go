package components

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/refinery/internal/model"
)

func TestProgressPercent(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, NewProgress(0).Percent(3))
	require.Equal(t, 50, NewProgress(4).Percent(2))
	require.Equal(t, 100, NewProgress(2).Percent(5))
	require.Contains(t, NewProgress(4).View(1), "1/4 (25%)")
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	chi2 := 3.14159
	tests := []struct {
		name   string
		result model.StepResult
		want   string
	}{
		{"waiting", model.StepResult{Index: 1, Name: "scale", ParamNames: []string{"scale_1"}, Status: model.StatusWaiting}, " 1. scale [scale_1]"},
		{"success", model.StepResult{Index: 2, Name: "cell", Status: model.StatusSuccess, DurationSeconds: 12, FitQuality: &chi2}, " 2. cell 12s chi2=3.14"},
		{"failed", model.StepResult{Index: 10, Name: "atoms", Status: model.StatusFailed, DurationSeconds: 4, Reason: "singular matrix"}, "10. atoms 4s : singular matrix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Describe(tt.result))
		})
	}
}

func TestStepListCopiesResults(t *testing.T) {
	t.Parallel()

	in := []model.StepResult{{Index: 1, Name: "a", ParamNames: []string{"x"}}}
	list := NewStepList(in)
	in[0].ParamNames[0] = "changed"

	require.Equal(t, 1, list.Len())
	require.Equal(t, "x", list.Results()[0].ParamNames[0])
}

func TestSummaryView(t *testing.T) {
	t.Parallel()

	sum := model.Summary{Total: 4, Succeeded: 2, Failed: 1, Waiting: 1}
	view := NewSummary(SummaryData{Summary: sum, Finished: true}).View()
	require.Contains(t, view, "Steps: 3/4 done (2 succeeded, 1 failed, 0 skipped)")
	require.Contains(t, view, "Run finished")

	require.Contains(t, NewSummary(SummaryData{Summary: sum, Stopped: true}).View(), "Stopping after the current step")
	require.Contains(t, NewSummary(SummaryData{Err: "boom"}).View(), "Run aborted: boom")
	require.Empty(t, NewSummary(SummaryData{}).View())
}

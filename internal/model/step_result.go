package model

// Status is the lifecycle state of a refinement step within one run.
type Status string

const (
	// StatusWaiting indicates a step has not started yet.
	StatusWaiting Status = "waiting"
	// StatusRunning indicates a step is actively executing.
	StatusRunning Status = "running"
	// StatusSuccess marks a successful step execution.
	StatusSuccess Status = "success"
	// StatusFailed marks a failure during step execution.
	StatusFailed Status = "failed"
	// StatusSkipped indicates the step was abandoned by a skip request.
	StatusSkipped Status = "skipped"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

// StepResult captures the progress and outcome of a single step.
type StepResult struct {
	Index           int      `json:"index"`
	Name            string   `json:"name"`
	ParamNames      []string `json:"params"`
	Status          Status   `json:"status"`
	DurationSeconds int      `json:"duration_seconds"`
	Reason          string   `json:"reason,omitempty"`
	ControlFile     string   `json:"control_file,omitempty"`
	FitQuality      *float64 `json:"chi2,omitempty"`
	Rwp             *float64 `json:"rwp,omitempty"`
}

// Clone returns a deep copy safe to hand to observers.
func (r StepResult) Clone() StepResult {
	out := r
	out.ParamNames = append([]string(nil), r.ParamNames...)
	out.FitQuality = cloneFloat(r.FitQuality)
	out.Rwp = cloneFloat(r.Rwp)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// CloneResults deep-copies a result list.
func CloneResults(in []StepResult) []StepResult {
	out := make([]StepResult, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// LastSuccess returns the last successful result, if any.
func LastSuccess(results []StepResult) (StepResult, bool) {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Status == StatusSuccess {
			return results[i], true
		}
	}
	return StepResult{}, false
}

// Summary counts results per status.
type Summary struct {
	Total     int
	Waiting   int
	Succeeded int
	Failed    int
	Skipped   int
}

// Summarize aggregates a result list.
func Summarize(results []StepResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusWaiting:
			s.Waiting++
		}
	}
	return s
}

// Completed returns the number of steps in a terminal state.
func (s Summary) Completed() int {
	return s.Succeeded + s.Failed + s.Skipped
}

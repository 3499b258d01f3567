package sequencer

import "github.com/alexisbeaulieu97/refinery/internal/model"

// Observer receives progress from a running sequencer. Calls come from the
// sequencer goroutine and from the engine output reader, so implementations must be
// safe for concurrent use and must not block for long.
type Observer interface {
	// OnStepResults receives a fresh copy of every result after each transition.
	OnStepResults(results []model.StepResult)
	// OnEngineLine receives each engine output line of the step at index (0-based).
	OnEngineLine(index int, line string)
}

// Observers fans every notification out to each member in order.
type Observers []Observer

// OnStepResults implements Observer.
func (o Observers) OnStepResults(results []model.StepResult) {
	for _, obs := range o {
		if obs != nil {
			obs.OnStepResults(model.CloneResults(results))
		}
	}
}

// OnEngineLine implements Observer.
func (o Observers) OnEngineLine(index int, line string) {
	for _, obs := range o {
		if obs != nil {
			obs.OnEngineLine(index, line)
		}
	}
}

type nopObserver struct{}

func (nopObserver) OnStepResults([]model.StepResult) {}
func (nopObserver) OnEngineLine(int, string)         {}

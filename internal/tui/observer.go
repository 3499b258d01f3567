package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/refinery/internal/model"
)

// Sender is the part of *tea.Program the observer needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards sequencer notifications into a running program.
type Observer struct {
	sender Sender
}

// NewObserver wraps a program (or any Sender).
func NewObserver(sender Sender) *Observer {
	return &Observer{sender: sender}
}

// OnStepResults implements sequencer.Observer.
func (o *Observer) OnStepResults(results []model.StepResult) {
	o.sender.Send(ResultsMsg{Results: model.CloneResults(results)})
}

// OnEngineLine implements sequencer.Observer.
func (o *Observer) OnEngineLine(index int, line string) {
	o.sender.Send(LineMsg{Index: index, Line: line})
}

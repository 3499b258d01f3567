package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/refinery/internal/control"
	"github.com/alexisbeaulieu97/refinery/internal/model"
)

// LogTailSize is the number of engine output lines kept on screen.
const LogTailSize = 8

// ResultsMsg carries a fresh snapshot of the step results.
type ResultsMsg struct {
	Results []model.StepResult
}

// LineMsg carries one engine output line of the step at Index (0-based).
type LineMsg struct {
	Index int
	Line  string
}

// DatasetMsg announces the dataset now being refined.
type DatasetMsg struct {
	Index    int
	Total    int
	Name     string
	Template string
}

// DoneMsg reports that the run ended. Err is nil on normal completion.
type DoneMsg struct {
	Err     error
	Stopped bool
}

// Model is the Bubbletea state of the live refinement view.
type Model struct {
	title    string
	signals  *control.Signals
	results  []model.StepResult
	tail     []string
	dataset  DatasetMsg
	width    int
	finished bool
	stopped  bool
	err      error
}

// NewModel constructs the view. Key presses are forwarded to signals.
func NewModel(title string, signals *control.Signals) Model {
	if signals == nil {
		signals = control.New()
	}
	return Model{title: title, signals: signals}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Results returns the last received results.
func (m Model) Results() []model.StepResult {
	return model.CloneResults(m.results)
}

// Tail returns the retained engine output lines, oldest first.
func (m Model) Tail() []string {
	return append([]string(nil), m.tail...)
}

// IsFinished reports whether the run has ended.
func (m Model) IsFinished() bool {
	return m.finished
}

func (m *Model) appendLine(line string) {
	m.tail = append(m.tail, line)
	if extra := len(m.tail) - LogTailSize; extra > 0 {
		m.tail = append([]string(nil), m.tail[extra:]...)
	}
}

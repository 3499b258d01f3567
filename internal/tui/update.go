package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles Bubbletea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ResultsMsg:
		m.results = msg.Results
		return m, nil
	case LineMsg:
		m.appendLine(msg.Line)
		return m, nil
	case DatasetMsg:
		m.dataset = msg
		m.tail = nil
		return m, nil
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		m.stopped = m.stopped || msg.Stopped
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.finished {
		switch msg.String() {
		case "q", "ctrl+c", "esc", "enter":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "p":
		m.signals.Pause()
	case "r":
		m.signals.Resume()
	case "s":
		m.signals.Skip()
	case "q", "ctrl+c":
		// Resume too so a paused run reaches the stop check.
		m.stopped = true
		m.signals.Stop()
		m.signals.Resume()
	}
	return m, nil
}

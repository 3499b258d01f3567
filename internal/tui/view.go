package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/refinery/internal/model"
	"github.com/alexisbeaulieu97/refinery/internal/tui/components"
)

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render(fmt.Sprintf("refinery • %s", m.heading())))
	if m.dataset.Name != "" {
		sections = append(sections, datasetStyle.Render(fmt.Sprintf("dataset %d/%d: %s (from %s)",
			m.dataset.Index, m.dataset.Total, m.dataset.Name, m.dataset.Template)))
	}

	summary := model.Summarize(m.results)
	sections = append(sections, sectionStyle.Render("Progress"), components.NewProgress(summary.Total).View(summary.Completed()))

	list := components.NewStepList(m.results)
	if list.Len() > 0 {
		sections = append(sections, sectionStyle.Render("Steps"), renderSteps(list.Results()))
	}

	if len(m.tail) > 0 {
		sections = append(sections, sectionStyle.Render("Engine output"), tailStyle.Render(m.renderTail()))
	}

	errText := ""
	if m.err != nil {
		errText = m.err.Error()
	}
	status := components.NewSummary(components.SummaryData{
		Summary:  summary,
		Finished: m.finished,
		Stopped:  m.stopped,
		Err:      errText,
	}).View()
	if strings.TrimSpace(status) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(status))
	}

	sections = append(sections, helpStyle.Render(m.help()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderSteps(results []model.StepResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf(" %s %s", StatusIcon(r.Status), components.Describe(r)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTail() string {
	lines := m.tail
	if m.width > 4 {
		lines = make([]string, len(m.tail))
		for i, line := range m.tail {
			if len(line) > m.width-2 {
				line = line[:m.width-2]
			}
			lines[i] = line
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) heading() string {
	state := "running"
	switch {
	case m.finished:
		state = "finished"
	case m.stopped:
		state = "stopping"
	case m.signals.Paused():
		state = "paused"
	}
	if strings.TrimSpace(m.title) == "" {
		return state
	}
	return m.title + " (" + state + ")"
}

func (m Model) help() string {
	if m.finished {
		return "q quit"
	}
	return "p pause • r resume • s skip step • q stop"
}

// StatusIcon returns the glyph representing a step status.
func StatusIcon(status model.Status) string {
	switch status {
	case model.StatusSuccess:
		return successStyle.Render("✓")
	case model.StatusRunning:
		return runningStyle.Render("⏳")
	case model.StatusFailed:
		return failureStyle.Render("✗")
	case model.StatusSkipped:
		return skippedStyle.Render("⊘")
	default:
		return pendingStyle.Render("…")
	}
}

package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Progress renders the share of steps that reached a terminal status.
type Progress struct {
	bar   progress.Model
	total int
}

// NewProgress creates a progress component for the given total.
func NewProgress(total int) Progress {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30
	return Progress{bar: bar, total: total}
}

// Percent is the completion percentage, 0 when nothing is planned.
func (p Progress) Percent(completed int) int {
	if p.total <= 0 {
		return 0
	}
	return int(math.Min(1.0, float64(completed)/float64(p.total)) * 100)
}

// View renders the bar with a "done/total (pct%)" label.
func (p Progress) View(completed int) string {
	label := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d/%d (%d%%)", completed, p.total, p.Percent(completed)))
	return lipgloss.JoinHorizontal(lipgloss.Left, label, " ", p.bar.ViewAs(float64(p.Percent(completed))/100))
}

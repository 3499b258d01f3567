package tui

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/refinery/internal/control"
	"github.com/alexisbeaulieu97/refinery/internal/model"
)

func key(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestModelTracksResults(t *testing.T) {
	m := NewModel("LiYCl", nil)
	require.Nil(t, m.Init())

	results := []model.StepResult{
		{Index: 1, Name: "scale", Status: model.StatusSuccess},
		{Index: 2, Name: "cell", Status: model.StatusRunning},
	}
	m, cmd := update(t, m, ResultsMsg{Results: results})
	require.Nil(t, cmd)
	require.Equal(t, results, m.Results())
}

func TestModelKeepsLogTail(t *testing.T) {
	m := NewModel("", nil)
	for i := 0; i < LogTailSize+3; i++ {
		m, _ = update(t, m, LineMsg{Line: fmt.Sprintf("line %d", i)})
	}

	tail := m.Tail()
	require.Len(t, tail, LogTailSize)
	require.Equal(t, "line 3", tail[0])
	require.Equal(t, fmt.Sprintf("line %d", LogTailSize+2), tail[len(tail)-1])

	m, _ = update(t, m, DatasetMsg{Index: 2, Total: 3, Name: "b.dat"})
	require.Empty(t, m.Tail(), "a new dataset clears the tail")
}

func TestKeysDriveSignals(t *testing.T) {
	signals := control.New()
	m := NewModel("", signals)

	m, _ = update(t, m, key("p"))
	require.True(t, signals.Paused())

	m, _ = update(t, m, key("r"))
	require.False(t, signals.Paused())

	m, _ = update(t, m, key("s"))
	require.True(t, signals.SkipRequested())

	m, _ = update(t, m, key("p"))
	m, cmd := update(t, m, key("q"))
	require.Nil(t, cmd, "stop waits for the run to end")
	require.True(t, signals.Stopped())
	require.False(t, signals.Paused())
	require.False(t, m.IsFinished())
}

func TestDoneQuits(t *testing.T) {
	m := NewModel("", nil)

	m, cmd := update(t, m, DoneMsg{Err: errors.New("engine missing")})
	require.True(t, m.IsFinished())
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func TestObserverForwardsMessages(t *testing.T) {
	sender := &recordingSender{}
	obs := NewObserver(sender)

	results := []model.StepResult{{Index: 1, Name: "scale", ParamNames: []string{"scale_1"}}}
	obs.OnStepResults(results)
	obs.OnEngineLine(0, " => Cycle: 1")
	results[0].ParamNames[0] = "mutated"

	require.Len(t, sender.msgs, 2)
	require.Equal(t, "scale_1", sender.msgs[0].(ResultsMsg).Results[0].ParamNames[0])
	require.Equal(t, LineMsg{Index: 0, Line: " => Cycle: 1"}, sender.msgs[1])
}

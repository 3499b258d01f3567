package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConsumeSkipClearsFlag(t *testing.T) {
	s := New()
	require.False(t, s.ConsumeSkip())

	s.Skip()
	require.True(t, s.SkipRequested())
	require.True(t, s.ConsumeSkip())
	require.False(t, s.SkipRequested())
	require.False(t, s.ConsumeSkip())
}

func TestWaitWhilePausedReturnsOnResume(t *testing.T) {
	s := New()
	s.Pause()

	done := make(chan bool, 1)
	go func() { done <- s.WaitWhilePaused(context.Background()) }()

	select {
	case <-done:
		t.Fatal("wait returned while still paused")
	case <-time.After(2 * PollInterval):
	}

	s.Resume()
	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(5 * PollInterval):
		t.Fatal("wait did not return after resume")
	}
}

func TestWaitWhilePausedAbortsOnStop(t *testing.T) {
	s := New()
	s.Pause()

	done := make(chan bool, 1)
	go func() { done <- s.WaitWhilePaused(context.Background()) }()
	s.Stop()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(5 * PollInterval):
		t.Fatal("wait did not observe stop")
	}
}

func TestWaitWhilePausedAbortsOnCancel(t *testing.T) {
	s := New()
	s.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, s.WaitWhilePaused(ctx))
}

func TestReset(t *testing.T) {
	s := New()
	s.Pause()
	s.Stop()
	s.Skip()
	s.Reset()
	require.False(t, s.Paused())
	require.False(t, s.Stopped())
	require.False(t, s.SkipRequested())
}

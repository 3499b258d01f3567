// Package control carries the cooperative pause/stop/skip requests shared between
// a running sequencer and whatever drives it (TUI, HTTP API, signal handlers).
package control

import (
	"context"
	"sync/atomic"
	"time"
)

// PollInterval is how often blocked waiters re-check the flags.
const PollInterval = 200 * time.Millisecond

// Signals is safe for concurrent use. The zero value is ready to use.
type Signals struct {
	paused  atomic.Bool
	stopped atomic.Bool
	skip    atomic.Bool
}

// New returns a fresh signal set.
func New() *Signals {
	return &Signals{}
}

// Pause asks the sequencer to wait at the next step boundary.
func (s *Signals) Pause() { s.paused.Store(true) }

// Resume releases a pending pause.
func (s *Signals) Resume() { s.paused.Store(false) }

// Stop asks the sequencer to halt before starting another step.
func (s *Signals) Stop() { s.stopped.Store(true) }

// Skip asks for the current step to be abandoned, killing its engine process.
func (s *Signals) Skip() { s.skip.Store(true) }

// Paused reports whether a pause is pending.
func (s *Signals) Paused() bool { return s.paused.Load() }

// Stopped reports whether stop was requested.
func (s *Signals) Stopped() bool { return s.stopped.Load() }

// SkipRequested reports whether a skip is pending without consuming it.
func (s *Signals) SkipRequested() bool { return s.skip.Load() }

// ConsumeSkip clears a pending skip and reports whether one was set.
func (s *Signals) ConsumeSkip() bool { return s.skip.CompareAndSwap(true, false) }

// Reset clears every flag; used between datasets of a batch.
func (s *Signals) Reset() {
	s.paused.Store(false)
	s.stopped.Store(false)
	s.skip.Store(false)
}

// WaitWhilePaused blocks while paused. It returns early on stop or context
// cancellation, reporting false in those cases.
func (s *Signals) WaitWhilePaused(ctx context.Context) bool {
	if !s.Paused() {
		return !s.Stopped()
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for s.Paused() {
		if s.Stopped() {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return !s.Stopped()
}

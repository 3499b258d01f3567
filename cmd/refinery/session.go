package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/refinery/internal/batch"
	"github.com/alexisbeaulieu97/refinery/internal/control"
	"github.com/alexisbeaulieu97/refinery/internal/logger"
	"github.com/alexisbeaulieu97/refinery/internal/model"
	"github.com/alexisbeaulieu97/refinery/internal/sequencer"
	"github.com/alexisbeaulieu97/refinery/internal/statusapi"
	"github.com/alexisbeaulieu97/refinery/internal/tui"
	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

// LogFileName receives the logs while the terminal UI owns the screen.
const LogFileName = "refinery.log"

// session carries what a command body needs to run sequencers.
type session struct {
	runID    string
	log      *logger.Logger
	signals  *control.Signals
	observer sequencer.Observer
	out      io.Writer

	onDataset []func(batch.Dataset)
}

// datasetStarted forwards a batch dataset announcement to the UI and status API.
func (s *session) datasetStarted(ds batch.Dataset) {
	for _, fn := range s.onDataset {
		fn(ds)
	}
}

// sequencerOptions builds the sequencer collaborators for one run.
func (s *session) sequencerOptions(st *setup) sequencer.Options {
	return sequencer.Options{
		Signals:   s.signals,
		Observer:  s.observer,
		Validator: st.validator,
		Logger:    s.log,
		RunID:     s.runID,
	}
}

// execute wires logging, signals, the optional status API and either the terminal
// UI or plain console progress around body.
func execute(cmd *cobra.Command, root *rootFlags, st *setup, title string, body func(ctx context.Context, s *session) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := !root.noTUI && term.IsTerminal(int(os.Stdout.Fd()))

	level := "info"
	if root.verbose || st.verbose {
		level = "debug"
	}
	logOpts := logger.Options{Level: level, HumanReadable: true, Writer: cmd.ErrOrStderr()}
	if interactive {
		if err := os.MkdirAll(st.cfg.WorkDir, 0o755); err != nil {
			return fmt.Errorf("create work directory: %w", err)
		}
		logOpts.File = filepath.Join(st.cfg.WorkDir, LogFileName)
	}
	log, err := logger.New(logOpts)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	s := &session{
		runID:   uuid.NewString(),
		signals: control.New(),
		out:     cmd.OutOrStdout(),
	}
	if interactive {
		// The view owns stdout until the program exits.
		s.out = io.Discard
	}
	s.log = log.With("run", s.runID)

	var observers sequencer.Observers

	if root.statusAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		server := statusapi.NewServer(s.runID, s.signals, s.log)
		observers = append(observers, server)
		s.onDataset = append(s.onDataset, func(ds batch.Dataset) {
			server.SetDataset(statusapi.DatasetInfo{Index: ds.Index, Total: ds.Total, Name: ds.Name, Template: ds.Template})
		})

		serverCtx, cancelServer := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Serve(serverCtx, root.statusAddr); err != nil {
				s.log.Error(err, "status API stopped")
			}
		}()
		defer func() {
			cancelServer()
			wg.Wait()
		}()
	}

	if !interactive {
		observers = append(observers, newConsoleObserver(s.out, root.verbose))
		s.observer = observers
		return finish(cmd.OutOrStdout(), s.log, body(ctx, s))
	}

	program := tea.NewProgram(tui.NewModel(title, s.signals), tea.WithContext(ctx))
	observers = append(observers, tui.NewObserver(program))
	s.observer = observers
	s.onDataset = append(s.onDataset, func(ds batch.Dataset) {
		program.Send(tui.DatasetMsg{Index: ds.Index, Total: ds.Total, Name: ds.Name, Template: ds.Template})
	})

	bodyCtx, cancelBody := context.WithCancel(ctx)
	defer cancelBody()

	done := make(chan error, 1)
	go func() {
		err := body(bodyCtx, s)
		program.Send(tui.DoneMsg{Err: err, Stopped: errors.Is(err, refinerrors.ErrUserStop)})
		done <- err
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancelBody()
		<-done
		return fmt.Errorf("terminal UI failed: %w", err)
	}

	// The view can be closed while the run is still going.
	cancelBody()
	return finish(cmd.OutOrStdout(), s.log, <-done)
}

// finish maps a user stop to a clean exit.
func finish(out io.Writer, log *logger.Logger, err error) error {
	if errors.Is(err, refinerrors.ErrUserStop) {
		log.Info("run stopped by user")
		fmt.Fprintln(out, "stopped by user")
		return nil
	}
	return err
}

// consoleObserver prints status transitions when no terminal UI is shown.
type consoleObserver struct {
	out     io.Writer
	verbose bool

	mu   sync.Mutex
	last map[int]model.Status
}

func newConsoleObserver(out io.Writer, verbose bool) *consoleObserver {
	return &consoleObserver{out: out, verbose: verbose, last: make(map[int]model.Status)}
}

func (c *consoleObserver) OnStepResults(results []model.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range results {
		prev, seen := c.last[r.Index]
		c.last[r.Index] = r.Status
		if r.Status == model.StatusWaiting || (seen && prev == r.Status) {
			continue
		}
		line := fmt.Sprintf("[%d/%d] %s: %s", r.Index, len(results), r.Name, r.Status)
		if r.Reason != "" {
			line += " (" + r.Reason + ")"
		}
		if r.Status.Finished() {
			line += fmt.Sprintf(" after %ds", r.DurationSeconds)
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *consoleObserver) OnEngineLine(_ int, line string) {
	if !c.verbose {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, "  | "+line)
}

// Package statusapi exposes the progress of a run over HTTP and accepts the same
// pause, resume, skip and stop requests as the terminal UI.
package statusapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alexisbeaulieu97/refinery/internal/control"
	"github.com/alexisbeaulieu97/refinery/internal/logger"
	"github.com/alexisbeaulieu97/refinery/internal/model"
)

const (
	tailSize        = 200
	shutdownTimeout = 5 * time.Second
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// DatasetInfo describes the dataset being refined.
type DatasetInfo struct {
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Name     string `json:"name"`
	Template string `json:"template"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	RunID    string             `json:"run_id"`
	Started  time.Time          `json:"started"`
	Paused   bool               `json:"paused"`
	Stopping bool               `json:"stopping"`
	Percent  int                `json:"percent"`
	Dataset  *DatasetInfo       `json:"dataset,omitempty"`
	Summary  model.Summary      `json:"summary"`
	Steps    []model.StepResult `json:"steps"`
}

// Server keeps the latest snapshot pushed by the sequencer.
type Server struct {
	runID   string
	started time.Time
	signals *control.Signals
	log     *logger.Logger

	mu      sync.RWMutex
	results []model.StepResult
	dataset *DatasetInfo
	tail    []string
}

// NewServer creates a server controlling signals.
func NewServer(runID string, signals *control.Signals, log *logger.Logger) *Server {
	if signals == nil {
		signals = control.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{runID: runID, started: time.Now(), signals: signals, log: log}
}

// OnStepResults implements sequencer.Observer.
func (s *Server) OnStepResults(results []model.StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = model.CloneResults(results)
}

// OnEngineLine implements sequencer.Observer.
func (s *Server) OnEngineLine(_ int, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tail = append(s.tail, line)
	if extra := len(s.tail) - tailSize; extra > 0 {
		s.tail = append([]string(nil), s.tail[extra:]...)
	}
}

// SetDataset records the dataset now being refined and clears the output tail.
func (s *Server) SetDataset(info DatasetInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = &info
	s.tail = nil
}

// SetupRoutes configures and returns the HTTP router.
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", s.handleHealth)
	router.GET("/status", s.handleStatus)
	router.GET("/status/log", s.handleLog)

	ctl := router.Group("/control")
	{
		ctl.POST("/:action", s.handleControl)
	}

	return router
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info(fmt.Sprintf("status API listening on %s", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(map[string]any{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("status API request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "run_id": s.runID})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Snapshot())
}

// Snapshot builds the current status.
func (s *Server) Snapshot() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := model.Summarize(s.results)
	percent := 0
	if summary.Total > 0 {
		percent = summary.Completed() * 100 / summary.Total
	}

	resp := StatusResponse{
		RunID:    s.runID,
		Started:  s.started,
		Paused:   s.signals.Paused(),
		Stopping: s.signals.Stopped(),
		Percent:  percent,
		Summary:  summary,
		Steps:    model.CloneResults(s.results),
	}
	if s.dataset != nil {
		ds := *s.dataset
		resp.Dataset = &ds
	}
	return resp
}

func (s *Server) handleLog(c *gin.Context) {
	s.mu.RLock()
	lines := append([]string(nil), s.tail...)
	s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"lines": lines, "count": len(lines)})
}

func (s *Server) handleControl(c *gin.Context) {
	action := c.Param("action")
	switch action {
	case "pause":
		s.signals.Pause()
	case "resume":
		s.signals.Resume()
	case "skip":
		s.signals.Skip()
	case "stop":
		s.signals.Stop()
		s.signals.Resume()
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  fmt.Sprintf("unknown action %q (want pause, resume, skip or stop)", action),
			Status: http.StatusBadRequest,
		})
		return
	}

	s.log.Info("control request: " + action)
	c.JSON(http.StatusAccepted, gin.H{"action": action})
}

// Package server exposes Prometheus metrics and the most recent run over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"giftprobe/internal/async"
	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/logging"
	"giftprobe/internal/report"
)

const shutdownTimeout = 10 * time.Second

// Config configures the HTTP server.
type Config struct {
	Addr      string
	OutputDir string
	Debug     bool
}

// Server serves /healthz, /metrics and the /api/runs endpoints.
type Server struct {
	cfg    Config
	engine *gin.Engine
	logger logging.Logger
}

// New builds the router. gatherer backs /metrics; nil uses the default registry.
func New(cfg Config, gatherer prometheus.Gatherer, logger logging.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:    cfg,
		engine: gin.New(),
		logger: logging.OrNop(logger),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	api := s.engine.Group("/api/runs/latest")
	api.GET("", s.handleLatest)
	api.GET("/summary", s.handleSummary)
	api.GET("/cases/:id", s.handleCase)
	return s
}

// Handler returns the router for embedding or tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	async.Go(s.logger, "server.listen", func() {
		s.logger.Info("Server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	})

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		shutdownErr := srv.Shutdown(shutdownCtx)
		if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", serveErr)
		}
		if shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		s.logger.Debug("route=%s method=%s status=%d latency_ms=%.2f",
			route, c.Request.Method, c.Writer.Status(), float64(time.Since(start).Microseconds())/1000.0)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleLatest(c *gin.Context) {
	run, ok := s.latest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "summary": report.Summarize(run)})
}

func (s *Server) handleSummary(c *gin.Context) {
	run, ok := s.latest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report.Summarize(run))
}

func (s *Server) handleCase(c *gin.Context) {
	run, ok := s.latest(c)
	if !ok {
		return
	}
	id := c.Param("id")
	for _, rec := range run.Records {
		if rec.TestCaseID == id {
			c.JSON(http.StatusOK, rec)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no test case %q in run %s", id, run.ID)})
}

// latest loads run.json on every request so a concurrent `run` is picked up
// without a restart.
func (s *Server) latest(c *gin.Context) (catalog.Run, bool) {
	run, err := report.LoadRun(filepath.Join(s.cfg.OutputDir, report.FileRun))
	switch {
	case err == nil:
		return run, true
	case errors.Is(err, fs.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded yet"})
	default:
		s.logger.Warn("load latest run: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "latest run is unreadable"})
	}
	return catalog.Run{}, false
}

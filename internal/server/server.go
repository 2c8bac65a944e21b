// Package server exposes a small diagnostics surface beside the consumer
// loop: liveness of the counter database and a read-only view of the
// aggregate. Readers share the loop's stores and must tolerate a mirror
// that is transiently one increment behind.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buzzline-lab/buzztrack/internal/core/storage"
)

type Server struct {
	Engine *gin.Engine
	Addr   string
	db     *sql.DB
	store  storage.CounterStore
	state  func() string
}

// New builds the diagnostics server. state reports the consumer lifecycle;
// db is the counter database shared with the store (may be nil in tests).
func New(addr string, db *sql.DB, store storage.CounterStore, state func() string, mode string) *Server {
	// Set Gin mode based on configuration
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	s := &Server{
		Engine: r,
		Addr:   addr,
		db:     db,
		store:  store,
		state:  state,
	}

	r.GET("/health", s.healthHandler)
	r.GET("/counts", s.countsHandler)

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	// Check database connectivity
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			slog.Error("Health check failed: database unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"consumer_state": s.state(),
	})
}

func (s *Server) countsHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	counts, err := s.store.GetAll(ctx)
	if err != nil {
		slog.Error("Counts read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "could not read counts",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"consumer_state": s.state(),
		"counts":         counts,
	})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	slog.Info("Starting HTTP Server...", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("Stopping HTTP Server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP Server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

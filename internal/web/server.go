// Package web exposes the scan trigger and health endpoints over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/julianstephens/questbot/internal/logger"
	"github.com/julianstephens/questbot/internal/models"
	"github.com/julianstephens/questbot/internal/scheduler"
	"github.com/julianstephens/questbot/internal/utils"
)

// Trigger is the part of the scheduler the server drives
type Trigger interface {
	Fire(ctx context.Context, now time.Time) (scheduler.Result, bool)
	State() scheduler.State
	LastResult() *scheduler.Result
}

// StatusReader answers per-user status queries
type StatusReader interface {
	Status(ctx context.Context, userID string) models.Status
}

// Server is the questbot HTTP server
type Server struct {
	trigger Trigger
	status  StatusReader
	clock   utils.Clock
	token   string
	router  *gin.Engine
}

// NewServer wires the routes. An empty token leaves the scan trigger open,
// which is only sensible on a loopback address.
func NewServer(trigger Trigger, status StatusReader, clock utils.Clock, token string) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		trigger: trigger,
		status:  status,
		clock:   clock,
		token:   token,
		router:  router,
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/scan", s.requireToken(), s.handleScan)
		api.GET("/users/:id/status", s.requireToken(), s.handleUserStatus)
	}

	return s
}

// Handler returns the underlying http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("HTTP server stopped")
		return nil
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

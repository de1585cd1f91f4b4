// Package api exposes the simulation engine over HTTP. It is a thin
// presentation layer: every route maps onto one engine method and no
// scheduling logic lives here.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JBoggsy/ues-sub000/internal/sim"
)

// Server serves the REST API for one simulation engine.
type Server struct {
	Engine *gin.Engine
	Addr   string
	sim    *sim.Engine
}

// New creates the HTTP server and registers all routes.
func New(addr string, engine *sim.Engine, mode string) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	s := &Server{
		Engine: r,
		Addr:   addr,
		sim:    engine,
	}

	r.GET("/health", s.healthHandler)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/simulation", s.snapshotHandler)
		v1.GET("/simulation/validate", s.validateHandler)
		v1.POST("/simulation/start", s.startHandler)
		v1.POST("/simulation/stop", s.stopHandler)
		v1.POST("/simulation/reset", s.resetHandler)
		v1.POST("/simulation/pause", s.pauseHandler)
		v1.POST("/simulation/resume", s.resumeHandler)
		v1.POST("/simulation/advance", s.advanceHandler)
		v1.POST("/simulation/time", s.setTimeHandler)
		v1.POST("/simulation/skip-next", s.skipNextHandler)
		v1.POST("/simulation/execute-due", s.executeDueHandler)

		v1.POST("/events", s.addEventHandler)
		v1.GET("/events", s.queryEventsHandler)

		v1.GET("/state", s.listModalitiesHandler)
		v1.GET("/state/:name", s.modalityStateHandler)
	}

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"simulation_id": s.sim.ID(),
		"running":       s.sim.Running(),
	})
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	slog.Info("starting HTTP server", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

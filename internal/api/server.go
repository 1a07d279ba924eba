// Package api exposes the REST and realtime request surface over the core
// services. Handlers stay thin: they parse, dispatch, and map errors.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ticketto/dealroom/internal/catalog"
	"github.com/ticketto/dealroom/internal/negotiation"
	"github.com/ticketto/dealroom/internal/realtime"
	"gorm.io/gorm"
)

// Server wires the core services behind the HTTP surface.
type Server struct {
	db      *gorm.DB
	hub     *realtime.Hub
	machine *negotiation.Machine
	rooms   *catalog.Catalog
	log     *slog.Logger
}

// Opts holds dependencies for creating a Server.
type Opts struct {
	DB      *gorm.DB
	Hub     *realtime.Hub
	Machine *negotiation.Machine
	Catalog *catalog.Catalog
	Logger  *slog.Logger // optional
}

// NewServer creates a Server.
func NewServer(opts Opts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("api: hub is required")
	}
	if opts.Machine == nil {
		return nil, fmt.Errorf("api: negotiation machine is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("api: catalog is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		db:      opts.DB,
		hub:     opts.Hub,
		machine: opts.Machine,
		rooms:   opts.Catalog,
		log:     logger,
	}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)
	return router
}

// Start runs the HTTP server on the given port. It blocks until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	if port <= 0 {
		port = 8080
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.hub.Close()
	}()

	s.log.Info("server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

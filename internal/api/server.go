// Package api exposes the medication-risk engine over HTTP: profile
// import, medication management, vitals ingest and the analysis
// endpoint itself.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pgx-med-guard-server/internal/database"
	"github.com/pgx-med-guard-server/internal/domain"
	"github.com/pgx-med-guard-server/internal/genetics"
	"github.com/pgx-med-guard-server/internal/service"
	"github.com/pgx-med-guard-server/internal/vitals"
)

// Server is the HTTP server wiring handlers to the engine, store and
// vitals provider.
type Server struct {
	cfg      *domain.Config
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
	store    domain.Store
	analyzer *service.AnalyzerService
	parser   *genetics.Parser
	vitals   *vitals.ChannelProvider

	// db is set only for the postgres backend; /health reports pool
	// connectivity when present.
	db *database.DB
}

// WithDatabaseHealth attaches a connection pool whose health is
// reported by the health endpoint.
func (s *Server) WithDatabaseHealth(db *database.DB) *Server {
	s.db = db
	return s
}

// NewServer creates a new HTTP server instance.
func NewServer(
	cfg *domain.Config,
	logger *logrus.Logger,
	store domain.Store,
	analyzer *service.AnalyzerService,
	parser *genetics.Parser,
	provider *vitals.ChannelProvider,
) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	server := &Server{
		cfg:      cfg,
		logger:   logger,
		router:   router,
		store:    store,
		analyzer: analyzer,
		parser:   parser,
		vitals:   provider,
	}

	server.setupRoutes()

	return server
}

// Router exposes the gin engine, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)

		v1.POST("/profile/import", s.handleProfileImport)
		v1.GET("/profile", s.handleGetProfile)

		v1.GET("/medications", s.handleListMedications)
		v1.POST("/medications", s.handleAddMedication)
		v1.DELETE("/medications/:id", s.handleRemoveMedication)

		v1.GET("/vitals/latest", s.handleLatestVitals)
		v1.GET("/vitals/stream", s.handleVitalsStream)
		v1.GET("/vitals/watch", s.handleVitalsWatch)
	}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"backend":   s.cfg.Store.Backend,
	}

	if s.db != nil {
		if err := s.db.Health(c.Request.Context()); err != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}

	c.JSON(http.StatusOK, body)
}

// userID resolves the acting user from the X-User-ID header. The
// engine is single-tenant by default.
func userID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return "default"
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-User-ID, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

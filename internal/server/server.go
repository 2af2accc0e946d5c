package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/hakari/internal/auth"
	"github.com/ashita-ai/hakari/internal/model"
	"github.com/ashita-ai/hakari/internal/ratelimit"
	"github.com/ashita-ai/hakari/internal/service/runstats"
)

// MetricStore is the persistence the metric endpoints need.
// *storage.DB satisfies it.
type MetricStore interface {
	CreateMetrics(ctx context.Context, projectID string, inputs []model.CreateMetricInput) ([]model.Metric, error)
	GetMetric(ctx context.Context, projectID string, id uuid.UUID) (model.Metric, error)
	ListMetrics(ctx context.Context, projectID string, filter model.MetricFilter) ([]model.Metric, error)
	UpdateMetric(ctx context.Context, projectID string, in model.UpdateMetricInput) (model.Metric, error)
	UpdateMetrics(ctx context.Context, projectID string, inputs []model.UpdateMetricInput) ([]model.Metric, error)
	Ping(ctx context.Context) error
}

// Server is the Hakari HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	Store    MetricStore
	RunStats *runstats.Service
	JWTMgr   *auth.JWTManager
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	MaxBatchSize        int
}

// metricsBase is the path prefix of the metric record API.
const metricsBase = "/preview/evaluations/metrics/"

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:               cfg.Store,
		RunStats:            cfg.RunStats,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		MaxBatchSize:        cfg.MaxBatchSize,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// Reads and writes draw from separate buckets per subject.
	writeRL := ratelimit.Middleware(cfg.Limiter, subjectKeyFunc("write"), reqIDFunc, cfg.Logger)
	readRL := ratelimit.Middleware(cfg.Limiter, subjectKeyFunc("read"), reqIDFunc, cfg.Logger)

	readRole := requireRole(model.RoleReader)
	writeRole := requireRole(model.RoleWriter)

	mux := http.NewServeMux()

	// Metric records.
	mux.Handle("POST "+metricsBase+"{$}", writeRL(writeRole(http.HandlerFunc(h.HandleCreateMetrics))))
	mux.Handle("GET "+metricsBase+"{$}", readRL(readRole(http.HandlerFunc(h.HandleListMetrics))))
	mux.Handle("PATCH "+metricsBase+"{$}", writeRL(writeRole(http.HandlerFunc(h.HandleUpdateMetrics))))
	mux.Handle("GET "+metricsBase+"{metric_id}", readRL(readRole(http.HandlerFunc(h.HandleGetMetric))))
	mux.Handle("PATCH "+metricsBase+"{metric_id}", writeRL(writeRole(http.HandlerFunc(h.HandleUpdateMetric))))

	// Aggregation (reader+; stateless or read-only).
	mux.Handle("POST "+metricsBase+"aggregate", readRL(readRole(http.HandlerFunc(h.HandleAggregate))))
	mux.Handle("GET /preview/evaluations/runs/{run_id}/stats", readRL(readRole(http.HandlerFunc(h.HandleRunStats))))

	// MCP StreamableHTTP transport (auth required, reader+).
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", readRole(mcpHTTP))
	}

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// subjectKeyFunc returns a rate limit key function for the given bucket
// class. Admins are exempt.
func subjectKeyFunc(class string) ratelimit.KeyFunc {
	return func(r *http.Request) string {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			return ""
		}
		if model.RoleAtLeast(claims.Role, model.RoleAdmin) {
			return ""
		}
		return class + ":" + claims.Subject
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

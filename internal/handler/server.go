// Package handler implements the HTTP handlers for the daily stats collector.
// All handlers are methods on Server. Routes wires them, together with the
// middleware stack, into a chi router.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/digit-srl/diarycollector/internal/domain"
	"github.com/digit-srl/diarycollector/internal/middleware"
	"github.com/digit-srl/diarycollector/spec"
)

// IngestServicer defines the business operation the upload handler depends on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or the voucher platform.
type IngestServicer interface {
	Ingest(ctx context.Context, sub domain.DailyStatsSubmission) (domain.UploadConfirmation, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	ingest IngestServicer
	logger *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(ingest IngestServicer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ingest: ingest, logger: logger}
}

// RouterConfig carries the settings the middleware stack needs.
type RouterConfig struct {
	CORSOrigins        []string
	APIKeys            []string
	MaxBodyBytes       int64
	RateLimitPerMinute int

	// Metrics serves GET /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler
}

// Routes builds the full router.
//
// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer →
// CORS → MaxBodySize. Routes under /api additionally require an API key and
// are rate limited per client IP.
func (s *Server) Routes(cfg RouterConfig) http.Handler {
	metricsHandler := cfg.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	}

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", serveOpenAPI)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(cfg.APIKeys, s.logger))
		if cfg.RateLimitPerMinute > 0 {
			r.Use(middleware.NewRateLimiter(cfg.RateLimitPerMinute).Handler)
		}
		r.Post("/upload", s.Upload)
	})

	return r
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(spec.OpenAPI)
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agentleague/league/internal/audit"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/referee"
)

// RefereeRouterConfig holds the dependencies needed to build a referee
// agent's HTTP router: POST /mcp for MATCH_ASSIGN, GET /health and GET
// /metrics for operability.
type RefereeRouterConfig struct {
	Referee   *referee.Referee
	Validator *protocol.Validator
	Audit     *audit.Logger
	StartedAt time.Time
	Logger    *zap.Logger
}

// NewRefereeRouter builds a referee agent's Chi router. A referee has no
// database of its own, so its health check is dependency-free.
func NewRefereeRouter(cfg RefereeRouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	mcpHandler := NewRefereeHandler(cfg.Referee, cfg.Validator, cfg.Audit, cfg.Logger)
	healthHandler := NewHealthHandler("referee", nil, cfg.StartedAt)

	r.Post("/mcp", mcpHandler.ServeMCP)
	r.Get("/health", healthHandler.ServeHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

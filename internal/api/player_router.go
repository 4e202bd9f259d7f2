package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agentleague/league/internal/audit"
	"github.com/agentleague/league/internal/player"
	"github.com/agentleague/league/internal/protocol"
)

// PlayerRouterConfig holds the dependencies needed to build a player
// agent's HTTP router: POST /mcp for GAME_INVITE/MOVE_REQUEST/GAME_OVER,
// GET /health and GET /metrics for operability.
type PlayerRouterConfig struct {
	Player    *player.Player
	Validator *protocol.Validator
	Audit     *audit.Logger
	StartedAt time.Time
	Logger    *zap.Logger
}

// NewPlayerRouter builds a player agent's Chi router. A player has no
// database of its own, so its health check is dependency-free.
func NewPlayerRouter(cfg PlayerRouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	mcpHandler := NewPlayerHandler(cfg.Player, cfg.Validator, cfg.Audit, cfg.Logger)
	healthHandler := NewHealthHandler("player", nil, cfg.StartedAt)

	r.Post("/mcp", mcpHandler.ServeMCP)
	r.Get("/health", healthHandler.ServeHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agentleague/league/internal/audit"
	"github.com/agentleague/league/internal/manager"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/websocket"
)

// ManagerRouterConfig holds the dependencies needed to build the League
// Manager's HTTP router: POST /mcp for the protocol, GET /health and GET
// /metrics for operability, and GET /ws for the optional observer feed.
type ManagerRouterConfig struct {
	Coordinator *manager.Coordinator
	Validator   *protocol.Validator
	Audit       *audit.Logger
	DB          *gorm.DB
	Hub         *websocket.Hub
	LeagueID    string
	StartedAt   time.Time
	Logger      *zap.Logger
}

// NewManagerRouter builds the League Manager's Chi router.
func NewManagerRouter(cfg ManagerRouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	mcpHandler := NewManagerHandler(cfg.Coordinator, cfg.Validator, cfg.Audit, cfg.Logger)
	healthHandler := NewHealthHandler("league_manager", cfg.DB, cfg.StartedAt)

	r.Post("/mcp", mcpHandler.ServeMCP)
	r.Get("/health", healthHandler.ServeHealth)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Hub != nil {
		wsHandler := NewWSHandler(cfg.Hub, cfg.LeagueID, cfg.Logger)
		r.Get("/ws", wsHandler.ServeWS)
	}

	return r
}

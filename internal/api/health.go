package api

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/agentleague/league/internal/db"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Database      string `json:"database"`
}

// HealthHandler serves GET /health for any of the three services.
type HealthHandler struct {
	service   string
	db        *gorm.DB
	startedAt time.Time
}

// NewHealthHandler builds a HealthHandler that reports uptime relative to
// startedAt and pings db (nil if this service has no database, e.g. a
// Player harness) on every request.
func NewHealthHandler(service string, db *gorm.DB, startedAt time.Time) *HealthHandler {
	return &HealthHandler{service: service, db: db, startedAt: startedAt}
}

func (h *HealthHandler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	database := "n/a"
	status := "ok"
	if h.db != nil {
		database = "ok"
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, h.db); err != nil {
			database = "unreachable"
			status = "degraded"
		}
	}

	JSON(w, http.StatusOK, healthResponse{
		Status:        status,
		Service:       h.service,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Database:      database,
	})
}

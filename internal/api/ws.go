package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/agentleague/league/internal/websocket"
)

// WSHandler handles the WebSocket upgrade endpoint GET /ws on the League
// Manager. It is a read-only observer feed: round announcements and
// standings publications are pushed here for dashboards, but referees and
// players never receive their protocol messages through it.
type WSHandler struct {
	hub      *websocket.Hub
	leagueID string
	logger   *zap.Logger
}

// NewWSHandler creates a new WSHandler subscribing every connection to the
// single league topic this Manager process serves.
func NewWSHandler(hub *websocket.Hub, leagueID string, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, leagueID: leagueID, logger: logger.Named("ws_handler")}
}

// ServeWS upgrades the connection and subscribes it to this league's topic.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	client, err := websocket.NewClient(h.hub, w, r, []string{"league:" + h.leagueID}, h.logger)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	h.logger.Info("ws: observer connected", zap.String("remote_addr", r.RemoteAddr))
	client.Run()
	h.logger.Info("ws: observer disconnected", zap.String("remote_addr", r.RemoteAddr))
}

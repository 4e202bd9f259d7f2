package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/agentleague/league/internal/audit"
	"github.com/agentleague/league/internal/player"
	"github.com/agentleague/league/internal/protocol"
)

// PlayerHandler implements a player agent's single /mcp endpoint: it
// answers GAME_INVITE, MOVE_REQUEST, and GAME_OVER synchronously, per the
// request/response model of section 3.
type PlayerHandler struct {
	player    *player.Player
	validator *protocol.Validator
	audit     *audit.Logger
	logger    *zap.Logger
}

// NewPlayerHandler builds a PlayerHandler. auditLogger may be nil.
func NewPlayerHandler(p *player.Player, validator *protocol.Validator, auditLogger *audit.Logger, logger *zap.Logger) *PlayerHandler {
	return &PlayerHandler{player: p, validator: validator, audit: auditLogger, logger: logger.Named("player_handler")}
}

// ServeMCP handles POST /mcp.
func (h *PlayerHandler) ServeMCP(w http.ResponseWriter, r *http.Request) {
	var req protocol.RPCRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.JSONRPC != "2.0" || req.Method != protocol.HandleMethod {
		JSON(w, http.StatusOK, protocol.NewRPCError(req.ID, protocol.CodeMethodNotFound, "unsupported method"))
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(req.Params, &msg); err != nil {
		JSON(w, http.StatusOK, protocol.NewRPCError(req.ID, protocol.CodeInvalidParams, "params must decode as an envelope+payload message"))
		return
	}

	// Like a referee, a player has no state to check match_id ownership
	// against beyond what the referee driving the match already enforces.
	if _, err := h.validator.Validate(msg.Envelope, noContextCheck{}); err != nil {
		leagueErr := translateValidationError(err)
		recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "player", req.Params, audit.Rejected(string(leagueErr.Code)))
		JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, leagueErr))
		return
	}

	out, err := h.dispatch(msg)
	if err != nil {
		leagueErr := leagueErrorFrom(err)
		recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "player", req.Params, audit.Rejected(string(leagueErr.Code)))
		JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, leagueErr))
		return
	}

	recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "player", req.Params, audit.OutcomeAccepted)
	recordAudit(h.audit, audit.DirectionOut, "player", msg.Envelope.Sender, req.Params, audit.OutcomeAccepted)
	JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, out))
}

func (h *PlayerHandler) dispatch(msg protocol.Message) (any, error) {
	switch msg.Envelope.MessageType {
	case protocol.MsgGameInvite:
		var p protocol.GameInvitePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "malformed game_invite payload")
		}
		if _, ok := h.player.Strategies().Get(p.GameType); !ok {
			return protocol.InviteDeclinePayload{MatchID: p.MatchID, PlayerID: h.player.AgentID(), Reason: "unsupported game_type"}, nil
		}
		return protocol.InviteAcceptPayload{MatchID: p.MatchID, PlayerID: h.player.AgentID()}, nil

	case protocol.MsgMoveRequest:
		var p protocol.MoveRequestPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "malformed move_request payload")
		}
		strategy, ok := h.player.Strategies().Get(msg.Envelope.GameType)
		if !ok {
			return nil, protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "no strategy registered for game_type "+msg.Envelope.GameType)
		}
		move, err := strategy.ChooseMove(p.Snapshot, "")
		if err != nil {
			return nil, protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, err.Error())
		}
		return protocol.MoveResponsePayload{MatchID: p.MatchID, PlayerID: h.player.AgentID(), Move: move}, nil

	case protocol.MsgGameOver:
		return protocol.GameOverAckPayload{}, nil

	default:
		return nil, protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "message_type not accepted by a player")
	}
}

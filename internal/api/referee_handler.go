package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agentleague/league/internal/audit"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/referee"
)

// RefereeHandler implements the referee agent's single /mcp endpoint. The
// only inbound message_type a referee accepts is MATCH_ASSIGN, sent by the
// Manager; everything else is a protocol error.
type RefereeHandler struct {
	referee   *referee.Referee
	validator *protocol.Validator
	audit     *audit.Logger
	logger    *zap.Logger
}

// NewRefereeHandler builds a RefereeHandler. auditLogger may be nil.
func NewRefereeHandler(ref *referee.Referee, validator *protocol.Validator, auditLogger *audit.Logger, logger *zap.Logger) *RefereeHandler {
	return &RefereeHandler{referee: ref, validator: validator, audit: auditLogger, logger: logger.Named("referee_handler")}
}

// ServeMCP handles POST /mcp.
func (h *RefereeHandler) ServeMCP(w http.ResponseWriter, r *http.Request) {
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

	// A referee has no roster or match table to validate context against
	// (section 3: "holds at most one active match, no global roster"), so
	// only the envelope shape and token signature are checked here, not
	// match membership.
	if _, err := h.validator.Validate(msg.Envelope, noContextCheck{}); err != nil {
		leagueErr := translateValidationError(err)
		recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "referee", req.Params, audit.Rejected(string(leagueErr.Code)))
		JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, leagueErr))
		return
	}

	if msg.Envelope.MessageType != protocol.MsgMatchAssign {
		leagueErr := protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "message_type not accepted by a referee")
		recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "referee", req.Params, audit.Rejected(string(leagueErr.Code)))
		JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, leagueErr))
		return
	}

	var assign protocol.MatchAssignPayload
	if err := json.Unmarshal(msg.Payload, &assign); err != nil {
		leagueErr := protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "malformed match_assign payload")
		recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "referee", req.Params, audit.Rejected(string(leagueErr.Code)))
		JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, leagueErr))
		return
	}

	// MATCH_ASSIGN is fire-and-forget: the referee's commitment is the
	// eventual RESULT_REPORT, not this call's reply, so Run happens in its
	// own goroutine detached from the request context.
	h.referee.AssignMatch(assign)

	recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "referee", req.Params, audit.OutcomeAccepted)
	recordAudit(h.audit, audit.DirectionOut, "referee", msg.Envelope.Sender, req.Params, audit.OutcomeAccepted)
	JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, protocol.MatchAssignAckPayload{MatchID: assign.MatchID}))
}

// noContextCheck satisfies protocol.ContextChecker for agents that have no
// per-match state to check the envelope's match_id against.
type noContextCheck struct{}

func (noContextCheck) CheckContext(protocol.TokenBinding, protocol.Envelope) error { return nil }

func recordAudit(logger *audit.Logger, dir audit.Direction, from, to string, envelope json.RawMessage, outcome audit.Outcome) {
	if logger == nil {
		return
	}
	if outcome == "" {
		outcome = audit.OutcomeAccepted
	}
	logger.Record(audit.Record{
		Timestamp: time.Now().UTC(),
		Direction: dir,
		From:      from,
		To:        to,
		Envelope:  envelope,
		Outcome:   outcome,
	})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/agentleague/league/internal/audit"
	"github.com/agentleague/league/internal/manager"
	"github.com/agentleague/league/internal/protocol"
)

// ManagerHandler implements the League Manager's single /mcp endpoint: it
// unwraps a JSON-RPC league.handle call into a protocol.Message, runs the
// fail-fast validation chain, dispatches the accepted operation to the
// Coordinator, and wraps the result back into a JSON-RPC response.
type ManagerHandler struct {
	coord     *manager.Coordinator
	validator *protocol.Validator
	audit     *audit.Logger
	logger    *zap.Logger
}

// NewManagerHandler builds a ManagerHandler. audit may be nil to disable
// audit logging (tests).
func NewManagerHandler(coord *manager.Coordinator, validator *protocol.Validator, auditLogger *audit.Logger, logger *zap.Logger) *ManagerHandler {
	return &ManagerHandler{coord: coord, validator: validator, audit: auditLogger, logger: logger.Named("manager_handler")}
}

// ServeMCP handles POST /mcp.
func (h *ManagerHandler) ServeMCP(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.validator.Validate(msg.Envelope, h.coord)
	if err != nil {
		if errors.Is(err, protocol.ErrTokenInvalid) {
			if kind, agentID, ok := msg.Envelope.ParsedSender(); ok {
				h.coord.RecordAuthFailure(r.Context(), kind, agentID)
			}
		}
		leagueErr := translateValidationError(err)
		recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "league_manager", req.Params, audit.Rejected(string(leagueErr.Code)))
		JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, leagueErr))
		return
	}
	if res.Kind == protocol.SenderReferee || res.Kind == protocol.SenderPlayer {
		h.coord.RecordAuthSuccess(r.Context(), res.Kind, res.AgentID)
	}

	out, opErr := h.dispatch(r.Context(), msg)
	if opErr != nil {
		recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "league_manager", req.Params, audit.Rejected(opErr.Error()))
		JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, leagueErrorFrom(opErr)))
		return
	}

	recordAudit(h.audit, audit.DirectionIn, msg.Envelope.Sender, "league_manager", req.Params, audit.OutcomeAccepted)
	recordAudit(h.audit, audit.DirectionOut, "league_manager", msg.Envelope.Sender, req.Params, audit.OutcomeAccepted)
	JSON(w, http.StatusOK, protocol.NewRPCResult(req.ID, out))
}

// dispatch routes a validated message to the Coordinator operation that
// handles its message_type, and shapes the reply payload.
func (h *ManagerHandler) dispatch(ctx context.Context, msg protocol.Message) (any, error) {
	switch msg.Envelope.MessageType {
	case protocol.MsgRegisterReferee:
		var p protocol.RegisterRefereePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "malformed payload")
		}
		res, err := h.coord.RegisterReferee(ctx, msg.Envelope.ConversationID, p.AgentID, p.Endpoint)
		if err != nil {
			return nil, err
		}
		return protocol.RegistrationResponsePayload{AuthToken: res.AuthToken, LeagueID: res.LeagueID}, nil

	case protocol.MsgRegisterPlayer:
		var p protocol.RegisterPlayerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "malformed payload")
		}
		res, err := h.coord.RegisterPlayer(ctx, msg.Envelope.ConversationID, p.AgentID, p.Endpoint)
		if err != nil {
			return nil, err
		}
		return protocol.RegistrationResponsePayload{AuthToken: res.AuthToken, LeagueID: res.LeagueID}, nil

	case protocol.MsgResultReport:
		var p protocol.ResultReportPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "malformed payload")
		}
		_, agentID, _ := msg.Envelope.ParsedSender()
		in := manager.ReportResultInput{
			MatchID:      p.MatchID,
			PlayerA:      manager.PlayerOutcomeInput{PlayerID: p.PlayerA.PlayerID, Outcome: p.PlayerA.Outcome, Points: p.PlayerA.Points},
			PlayerB:      manager.PlayerOutcomeInput{PlayerID: p.PlayerB.PlayerID, Outcome: p.PlayerB.Outcome, Points: p.PlayerB.Points},
			Forfeited:    p.Forfeited,
			GameMetadata: json.RawMessage(p.GameMetadata),
		}
		if err := h.coord.ReportResult(ctx, agentID, in); err != nil {
			return nil, err
		}
		return protocol.ResultAckPayload{MatchID: p.MatchID}, nil

	case protocol.MsgQueryStandings:
		res, err := h.coord.QueryStandings(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]protocol.StandingsRow, len(res.Rows))
		for i, row := range res.Rows {
			rows[i] = protocol.StandingsRow{
				Rank: row.Rank, PlayerID: row.PlayerID, Points: row.Points,
				Wins: row.Wins, Losses: row.Losses, Draws: row.Draws, PointDiff: row.PointDiff,
			}
		}
		return protocol.StandingsResponsePayload{RoundID: res.RoundIndex, Rows: rows}, nil

	case protocol.MsgLeagueAdvance:
		// There is no separate wire message for computing the schedule, so
		// the one operator-facing advance call both forces
		// REGISTRATION -> SCHEDULING and immediately runs the round-robin
		// generator that takes the league to ACTIVE.
		if err := h.coord.LeagueAdvance(ctx); err != nil {
			return nil, err
		}
		if err := h.coord.GenerateSchedule(ctx); err != nil {
			return nil, err
		}
		return protocol.LeagueAdvancePayload{}, nil

	default:
		return nil, protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "message_type not accepted by the Manager")
	}
}

// translateValidationError maps a sentinel validation error into the
// league-level error code the wire protocol expects. AUTH_REQUIRED is for
// a missing auth_token; AUTH_INVALID is for one that is present but fails
// verification or binding — the two distinct codes section 6/7 require.
func translateValidationError(err error) *protocol.LeagueError {
	switch {
	case errors.Is(err, protocol.ErrTokenMissing):
		return protocol.NewLeagueError(protocol.ErrAuthRequired, err.Error())
	case errors.Is(err, protocol.ErrTokenInvalid):
		return protocol.NewLeagueError(protocol.ErrAuthInvalid, err.Error())
	default:
		return protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, err.Error())
	}
}

// leagueErrorFrom converts a Coordinator operation error into a
// LeagueError. Coordinator operations already return *protocol.LeagueError
// for business-rule rejections; anything else is an unexpected internal
// failure and is reported generically rather than leaking details.
func leagueErrorFrom(err error) *protocol.LeagueError {
	var le *protocol.LeagueError
	if errors.As(err, &le) {
		return le
	}
	return protocol.NewLeagueError(protocol.ErrInternal, "internal error processing request")
}

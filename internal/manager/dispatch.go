package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/transport"
)

// OutboundMeta carries the contextual envelope fields the Manager's
// validator-facing peers (referees, players) require on every
// post-registration message: league_id always, round_id/match_id/game_type
// only for the message types that need them (section 4.1 step 6).
type OutboundMeta struct {
	LeagueID  string
	AuthToken string
	RoundID   int
	MatchID   string
	GameType  string
}

// Dispatcher delivers outbound protocol messages from the Manager to
// referees and players. The production implementation posts a
// league.handle JSON-RPC request to the target's /mcp endpoint; tests use
// a fake that records calls.
type Dispatcher interface {
	AnnounceRound(ctx context.Context, endpoint string, meta OutboundMeta, payload protocol.RoundAnnouncePayload) error
	AssignMatch(ctx context.Context, endpoint string, meta OutboundMeta, payload protocol.MatchAssignPayload) error
}

// httpDispatcher is the production Dispatcher, backed by
// internal/transport.Client's retry-with-backoff POST.
type httpDispatcher struct {
	client *transport.Client
}

// NewHTTPDispatcher creates a Dispatcher backed by an HTTP transport.Client.
func NewHTTPDispatcher(client *transport.Client) Dispatcher {
	return &httpDispatcher{client: client}
}

func (d *httpDispatcher) AnnounceRound(ctx context.Context, endpoint string, meta OutboundMeta, payload protocol.RoundAnnouncePayload) error {
	return d.send(ctx, endpoint, protocol.MsgRoundAnnounce, meta, payload)
}

func (d *httpDispatcher) AssignMatch(ctx context.Context, endpoint string, meta OutboundMeta, payload protocol.MatchAssignPayload) error {
	return d.send(ctx, endpoint, protocol.MsgMatchAssign, meta, payload)
}

func (d *httpDispatcher) send(ctx context.Context, endpoint string, msgType protocol.MessageType, meta OutboundMeta, payload any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("manager: marshaling %s payload: %w", msgType, err)
	}

	env := protocol.Envelope{
		Protocol:       protocol.ProtocolVersion,
		MessageType:    msgType,
		Sender:         string(protocol.SenderManager),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConversationID: uuid.NewString(),
		MessageSeq:     1,
		AuthToken:      meta.AuthToken,
		LeagueID:       meta.LeagueID,
		RoundID:        meta.RoundID,
		MatchID:        meta.MatchID,
		GameType:       meta.GameType,
	}

	req := protocol.RPCRequest{
		JSONRPC: "2.0",
		Method:  protocol.HandleMethod,
		ID:      json.RawMessage(`"` + env.ConversationID + `"`),
	}
	params, err := json.Marshal(protocol.Message{Envelope: env, Payload: payloadBytes})
	if err != nil {
		return fmt.Errorf("manager: marshaling %s params: %w", msgType, err)
	}
	req.Params = params

	var resp protocol.RPCResponse
	if err := d.client.PostJSON(ctx, endpoint+"/mcp", req, &resp); err != nil {
		return fmt.Errorf("manager: dispatching %s to %s: %w", msgType, endpoint, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("manager: %s rejected by %s: %s", msgType, endpoint, resp.Error.Message)
	}
	return nil
}

package referee

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/transport"
)

// PlayerClient delivers a referee-originated message to a player's /mcp
// endpoint and returns its reply payload, per the request/response model of
// section 3: every exchange is one HTTP call, the reply is the JSON-RPC
// result of that same call, never a separate callback.
type PlayerClient interface {
	Invite(ctx context.Context, endpoint string, roundID int, payload protocol.GameInvitePayload) (inviteReply, error)
	RequestMove(ctx context.Context, endpoint string, roundID int, payload protocol.MoveRequestPayload) (protocol.MoveResponsePayload, error)
	NotifyGameOver(ctx context.Context, endpoint string, roundID int, payload protocol.GameOverPayload) error
}

// ManagerClient reports a completed match's result to the League Manager.
type ManagerClient interface {
	ReportResult(ctx context.Context, endpoint string, roundID int, payload protocol.ResultReportPayload) error
}

// inviteReply is the decoded shape of a GAME_INVITE response: only Reason
// distinguishes accept from decline, since both payload shapes share
// match_id/player_id and the wire carries no separate message_type on a
// synchronous reply.
type inviteReply struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason,omitempty"`
}

func (r inviteReply) accepted() bool { return r.Reason == "" }

type httpAgentClient struct {
	client    *transport.Client
	selfKind  protocol.SenderKind
	agentID   string
	authToken string
	leagueID  string
}

// NewHTTPAgentClient builds a client implementing both PlayerClient and
// ManagerClient, identifying outbound envelopes as sent by (selfKind,
// agentID) — the referee itself — and stamping every envelope with the
// auth_token and league_id issued at registration.
func NewHTTPAgentClient(client *transport.Client, agentID, authToken, leagueID string) *httpAgentClient {
	return &httpAgentClient{client: client, selfKind: protocol.SenderReferee, agentID: agentID, authToken: authToken, leagueID: leagueID}
}

func (c *httpAgentClient) Invite(ctx context.Context, endpoint string, roundID int, payload protocol.GameInvitePayload) (inviteReply, error) {
	var reply inviteReply
	err := c.sendWithGameType(ctx, endpoint, protocol.MsgGameInvite, payload, roundID, payload.MatchID, payload.GameType, &reply)
	return reply, err
}

func (c *httpAgentClient) RequestMove(ctx context.Context, endpoint string, roundID int, payload protocol.MoveRequestPayload) (protocol.MoveResponsePayload, error) {
	var reply protocol.MoveResponsePayload
	err := c.send(ctx, endpoint, protocol.MsgMoveRequest, payload, roundID, payload.MatchID, &reply)
	return reply, err
}

func (c *httpAgentClient) NotifyGameOver(ctx context.Context, endpoint string, roundID int, payload protocol.GameOverPayload) error {
	return c.send(ctx, endpoint, protocol.MsgGameOver, payload, roundID, payload.MatchID, nil)
}

func (c *httpAgentClient) ReportResult(ctx context.Context, endpoint string, roundID int, payload protocol.ResultReportPayload) error {
	return c.send(ctx, endpoint, protocol.MsgResultReport, payload, roundID, payload.MatchID, nil)
}

func (c *httpAgentClient) send(ctx context.Context, endpoint string, msgType protocol.MessageType, payload any, roundID int, matchID string, out any) error {
	return c.sendWithGameType(ctx, endpoint, msgType, payload, roundID, matchID, "", out)
}

func (c *httpAgentClient) sendWithGameType(ctx context.Context, endpoint string, msgType protocol.MessageType, payload any, roundID int, matchID, gameType string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("referee: marshaling %s payload: %w", msgType, err)
	}
	env := protocol.Envelope{
		Protocol:       protocol.ProtocolVersion,
		MessageType:    msgType,
		Sender:         string(c.selfKind) + ":" + c.agentID,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConversationID: uuid.NewString(),
		MessageSeq:     1,
		AuthToken:      c.authToken,
		LeagueID:       c.leagueID,
		RoundID:        roundID,
		MatchID:        matchID,
		GameType:       gameType,
	}
	msg := protocol.Message{Envelope: env, Payload: body}
	params, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("referee: marshaling message: %w", err)
	}

	req := protocol.RPCRequest{JSONRPC: "2.0", Method: protocol.HandleMethod, ID: json.RawMessage(`"` + uuid.NewString() + `"`), Params: params}
	var resp protocol.RPCResponse
	if err := c.client.PostJSON(ctx, endpoint+"/mcp", req, &resp); err != nil {
		return fmt.Errorf("referee: posting %s to %s: %w", msgType, endpoint, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("referee: %s rejected: %s", msgType, resp.Error.Message)
	}
	if out == nil || resp.Result == nil {
		return nil
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("referee: re-marshaling result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("referee: decoding %s reply: %w", msgType, err)
	}
	return nil
}

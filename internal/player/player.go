// Package player implements the reference Player agent: it registers with
// the League Manager, then answers GAME_INVITE, MOVE_REQUEST, and GAME_OVER
// synchronously, delegating move selection to a per-game_type Strategy.
package player

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/transport"
)

// Player is the top-level player agent.
type Player struct {
	cfg        Config
	strategies *StrategyRegistry
	logger     *zap.Logger

	mu        sync.Mutex
	authToken string
	leagueID  string
}

// New builds a Player not yet connected to the Manager; call Connect
// before accepting any GAME_INVITE traffic.
func New(cfg Config, strategies *StrategyRegistry, logger *zap.Logger) *Player {
	return &Player{cfg: cfg, strategies: strategies, logger: logger.Named("player")}
}

// Connect sends REGISTER_PLAYER to the Manager and stores the issued
// auth_token and league_id, stamped into every envelope this player sends
// thereafter.
func (p *Player) Connect(ctx context.Context, client *transport.Client) error {
	env := protocol.Envelope{
		Protocol:       protocol.ProtocolVersion,
		MessageType:    protocol.MsgRegisterPlayer,
		Sender:         "player:" + p.cfg.AgentID,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConversationID: uuid.NewString(),
		MessageSeq:     1,
	}
	payload, err := json.Marshal(protocol.RegisterPlayerPayload{AgentID: p.cfg.AgentID, Endpoint: p.cfg.Endpoint})
	if err != nil {
		return fmt.Errorf("player: marshaling register payload: %w", err)
	}
	params, err := json.Marshal(protocol.Message{Envelope: env, Payload: payload})
	if err != nil {
		return fmt.Errorf("player: marshaling register message: %w", err)
	}

	req := protocol.RPCRequest{JSONRPC: "2.0", Method: protocol.HandleMethod, ID: json.RawMessage(`"register"`), Params: params}
	var resp protocol.RPCResponse
	if err := client.PostJSON(ctx, p.cfg.ManagerEndpoint+"/mcp", req, &resp); err != nil {
		return fmt.Errorf("player: registering with manager: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("player: registration rejected: %s", resp.Error.Message)
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("player: re-marshaling registration result: %w", err)
	}
	var reg protocol.RegistrationResponsePayload
	if err := json.Unmarshal(raw, &reg); err != nil {
		return fmt.Errorf("player: decoding registration response: %w", err)
	}

	p.mu.Lock()
	p.authToken = reg.AuthToken
	p.leagueID = reg.LeagueID
	p.mu.Unlock()
	return nil
}

// AgentID returns the player's own agent_id.
func (p *Player) AgentID() string { return p.cfg.AgentID }

// AuthToken returns the player's current auth_token.
func (p *Player) AuthToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authToken
}

// LeagueID returns the league the player is registered to.
func (p *Player) LeagueID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leagueID
}

// Strategies exposes the player's per-game_type move selectors.
func (p *Player) Strategies() *StrategyRegistry {
	return p.strategies
}

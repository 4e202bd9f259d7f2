package referee

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentleague/league/internal/game"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/transport"
)

// Referee is the top-level referee agent: it registers with the League
// Manager, then for every MATCH_ASSIGN it receives spins up an Executor to
// drive that match to completion. It is unusable until Connect succeeds.
type Referee struct {
	cfg    Config
	games  *game.Registry
	logger *zap.Logger

	mu        sync.Mutex
	authToken string
	leagueID  string
	players   PlayerClient
	mgr       ManagerClient
}

// New builds a Referee not yet connected to the Manager; call Connect
// before accepting any MATCH_ASSIGN traffic.
func New(cfg Config, games *game.Registry, logger *zap.Logger) *Referee {
	return &Referee{cfg: cfg, games: games, logger: logger.Named("referee")}
}

// Connect sends REGISTER_REFEREE to the Manager, then builds the
// authenticated agent client every subsequent GAME_INVITE/MOVE_REQUEST/
// GAME_OVER/RESULT_REPORT is sent through. Registration itself predates
// having an auth_token, so it is built directly against client rather than
// through the not-yet-constructed httpAgentClient.
func (r *Referee) Connect(ctx context.Context, client *transport.Client) error {
	env := protocol.Envelope{
		Protocol:       protocol.ProtocolVersion,
		MessageType:    protocol.MsgRegisterReferee,
		Sender:         "referee:" + r.cfg.AgentID,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConversationID: uuid.NewString(),
		MessageSeq:     1,
	}
	payload, err := json.Marshal(protocol.RegisterRefereePayload{AgentID: r.cfg.AgentID, Endpoint: r.cfg.Endpoint})
	if err != nil {
		return fmt.Errorf("referee: marshaling register payload: %w", err)
	}
	msg := protocol.Message{Envelope: env, Payload: payload}
	params, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("referee: marshaling register message: %w", err)
	}

	req := protocol.RPCRequest{JSONRPC: "2.0", Method: protocol.HandleMethod, ID: json.RawMessage(`"register"`), Params: params}
	var resp protocol.RPCResponse
	if err := client.PostJSON(ctx, r.cfg.ManagerEndpoint+"/mcp", req, &resp); err != nil {
		return fmt.Errorf("referee: registering with manager: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("referee: registration rejected: %s", resp.Error.Message)
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("referee: re-marshaling registration result: %w", err)
	}
	var reg protocol.RegistrationResponsePayload
	if err := json.Unmarshal(raw, &reg); err != nil {
		return fmt.Errorf("referee: decoding registration response: %w", err)
	}

	r.mu.Lock()
	r.authToken = reg.AuthToken
	r.leagueID = reg.LeagueID
	r.mu.Unlock()

	agentClient := NewHTTPAgentClient(client, r.cfg.AgentID, reg.AuthToken, reg.LeagueID)
	r.players = agentClient
	r.mgr = agentClient
	return nil
}

// AssignMatch handles an inbound MATCH_ASSIGN: it runs the match to
// completion in its own goroutine and returns immediately, since the
// Manager's dispatch is fire-and-forget (the eventual RESULT_REPORT is the
// acknowledgement, not this call's reply). The match runs detached from
// the HTTP request that delivered it, since that request's context ends
// long before the match does.
func (r *Referee) AssignMatch(payload protocol.MatchAssignPayload) {
	executor := NewExecutor(r.cfg, r.games, r.players, r.mgr, r.cfg.ManagerEndpoint, r.logger)
	go executor.Run(context.Background(), payload)
}

// AuthToken returns the referee's current auth_token, for outbound
// envelopes built outside this package (e.g. QUERY_STANDINGS, if a
// referee ever issues one).
func (r *Referee) AuthToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authToken
}

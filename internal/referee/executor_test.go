package referee

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentleague/league/internal/game"
	"github.com/agentleague/league/internal/game/tictactoe"
	"github.com/agentleague/league/internal/protocol"
)

// fakeAgentClient is a PlayerClient+ManagerClient test double: it never
// touches the network, so tests can script per-player invite/move
// behavior and inspect the final RESULT_REPORT the executor sends.
type fakeAgentClient struct {
	mu sync.Mutex

	inviteDecline map[string]bool // player_id -> decline
	moveFor       map[string]json.RawMessage
	moveDelay     map[string]time.Duration // player_id -> artificial delay past deadline

	reported protocol.ResultReportPayload
	reportCh chan struct{}
}

func newFakeAgentClient() *fakeAgentClient {
	return &fakeAgentClient{
		inviteDecline: map[string]bool{},
		moveFor:       map[string]json.RawMessage{},
		moveDelay:     map[string]time.Duration{},
		reportCh:      make(chan struct{}, 1),
	}
}

func (f *fakeAgentClient) Invite(_ context.Context, endpoint string, _ int, payload protocol.GameInvitePayload) (inviteReply, error) {
	playerID := endpointToPlayer(endpoint)
	f.mu.Lock()
	decline := f.inviteDecline[playerID]
	f.mu.Unlock()
	if decline {
		return inviteReply{MatchID: payload.MatchID, PlayerID: playerID, Reason: "decline"}, nil
	}
	return inviteReply{MatchID: payload.MatchID, PlayerID: playerID}, nil
}

func (f *fakeAgentClient) RequestMove(ctx context.Context, endpoint string, _ int, payload protocol.MoveRequestPayload) (protocol.MoveResponsePayload, error) {
	playerID := endpointToPlayer(endpoint)
	f.mu.Lock()
	delay := f.moveDelay[playerID]
	move := f.moveFor[playerID]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return protocol.MoveResponsePayload{}, ctx.Err()
		}
	}
	return protocol.MoveResponsePayload{MatchID: payload.MatchID, PlayerID: playerID, Move: move}, nil
}

func (f *fakeAgentClient) NotifyGameOver(context.Context, string, int, protocol.GameOverPayload) error {
	return nil
}

func (f *fakeAgentClient) ReportResult(_ context.Context, _ string, _ int, payload protocol.ResultReportPayload) error {
	f.mu.Lock()
	f.reported = payload
	f.mu.Unlock()
	select {
	case f.reportCh <- struct{}{}:
	default:
	}
	return nil
}

func endpointToPlayer(endpoint string) string {
	// Test endpoints are literally the player_id, e.g. "A" or "B".
	return endpoint
}

func cellMove(cell int) json.RawMessage {
	b, _ := json.Marshal(map[string]int{"cell": cell})
	return b
}

func newTestExecutor(cfg Config, client *fakeAgentClient) *Executor {
	registry := game.NewRegistry()
	registry.Register(tictactoe.New(), game.ScoringTable{})
	return NewExecutor(cfg, registry, client, client, "http://manager", zap.NewNop())
}

// TestExecutorForfeitsPlayerOnMoveTimeout covers scenario 3: a move
// timeout forfeits the on-turn player, who loses to the opponent's WIN.
func TestExecutorForfeitsPlayerOnMoveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MoveTimeout = 20 * time.Millisecond
	cfg.MatchTimeout = 2 * time.Second
	cfg.RetryBackoff = time.Millisecond

	client := newFakeAgentClient()
	client.moveFor["A"] = cellMove(0)   // A moves first and succeeds
	client.moveDelay["B"] = time.Second // B never answers in time

	exec := newTestExecutor(cfg, client)
	assign := protocol.MatchAssignPayload{
		MatchID: "m1", PlayerA: "A", PlayerAEndpoint: "A", PlayerB: "B", PlayerBEndpoint: "B",
		GameType: tictactoe.GameType,
	}

	exec.Run(context.Background(), assign)

	select {
	case <-client.reportCh:
	case <-time.After(2 * time.Second):
		t.Fatal("executor never reported a result")
	}

	require.True(t, client.reported.Forfeited)
	require.Equal(t, "WIN", client.reported.PlayerA.Outcome)
	require.Equal(t, 3, client.reported.PlayerA.Points)
	require.Equal(t, "LOSS", client.reported.PlayerB.Outcome)
	require.Equal(t, 0, client.reported.PlayerB.Points)
}

// TestExecutorForfeitsPlayerOnInvalidMove covers scenario 4: placing a
// mark on an occupied cell forfeits the offender immediately.
func TestExecutorForfeitsPlayerOnInvalidMove(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MoveTimeout = time.Second
	cfg.MatchTimeout = 2 * time.Second
	cfg.RetryBackoff = time.Millisecond

	client := newFakeAgentClient()
	// Player A (moves first, mark X) repeats cell 0 every time it's asked;
	// its second move lands on an already-occupied cell.
	client.moveFor["A"] = cellMove(0)
	client.moveFor["B"] = cellMove(1)

	exec := newTestExecutor(cfg, client)
	assign := protocol.MatchAssignPayload{
		MatchID: "m2", PlayerA: "A", PlayerAEndpoint: "A", PlayerB: "B", PlayerBEndpoint: "B",
		GameType: tictactoe.GameType,
	}

	exec.Run(context.Background(), assign)

	select {
	case <-client.reportCh:
	case <-time.After(2 * time.Second):
		t.Fatal("executor never reported a result")
	}

	require.True(t, client.reported.Forfeited)
	require.Equal(t, "LOSS", client.reported.PlayerA.Outcome)
	require.Equal(t, 0, client.reported.PlayerA.Points)
	require.Equal(t, "WIN", client.reported.PlayerB.Outcome)
	require.Equal(t, 3, client.reported.PlayerB.Points)
}

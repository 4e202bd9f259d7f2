package manager

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentleague/league/internal/auth"
	"github.com/agentleague/league/internal/db"
	"github.com/agentleague/league/internal/game"
	"github.com/agentleague/league/internal/game/tictactoe"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/repositories"
)

// newFileBackedCoordinator wires a Coordinator against a SQLite file on
// disk (instead of the in-memory DSN newTestCoordinator uses), so its state
// survives across independent db.New calls — the shape a process restart
// takes in production.
func newFileBackedCoordinator(t *testing.T, dsn string) (*Coordinator, func()) {
	t.Helper()
	return newFileBackedCoordinatorWithDispatcher(t, dsn, &recordingDispatcher{})
}

func newFileBackedCoordinatorWithDispatcher(t *testing.T, dsn string, dispatcher Dispatcher) (*Coordinator, func()) {
	t.Helper()
	logger := zap.NewNop()

	gormDB, err := db.New(db.Config{Driver: "sqlite", DSN: dsn, Logger: logger})
	require.NoError(t, err)

	tokens, err := auth.NewTokenManagerGenerated("league-test")
	require.NoError(t, err)

	registry := game.NewRegistry()
	registry.Register(tictactoe.New(), game.ScoringTable{})

	coord := New(Deps{
		Config:     DefaultConfig(),
		Clock:      protocol.SystemClock{},
		Logger:     logger,
		Tokens:     tokens,
		Leagues:    repositories.NewLeagueRepository(gormDB),
		Agents:     repositories.NewAgentRepository(gormDB),
		TokenRepo:  repositories.NewTokenRepository(gormDB),
		Rounds:     repositories.NewRoundRepository(gormDB),
		Matches:    repositories.NewMatchRepository(gormDB),
		Results:    repositories.NewResultRepository(gormDB),
		Standings:  repositories.NewStandingsRepository(gormDB),
		Games:      registry,
		Dispatcher: dispatcher,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go coord.Run(ctx)
	return coord, cancel
}

// TestRestartAndReplayReturnsIdenticalStandings covers the "persisting
// state, killing the Manager, restarting, and issuing QUERY_STANDINGS
// returns the same snapshot as before the kill" property (scenario 6).
func TestRestartAndReplayReturnsIdenticalStandings(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "league.db")
	ctx := context.Background()

	first, cancelFirst := newFileBackedCoordinator(t, dsn)

	_, err := first.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)
	for _, p := range []string{"A", "B", "C"} {
		_, err := first.RegisterPlayer(ctx, "conv-"+p, p, "http://"+p)
		require.NoError(t, err)
	}
	require.NoError(t, first.CloseRegistration(ctx))
	require.NoError(t, first.GenerateSchedule(ctx))

	// Complete two of the three matches before the simulated crash.
	for i := 0; i < 2; i++ {
		matchID, refereeID := nextInProgressMatch(t, first)
		parsed, err := uuid.Parse(matchID)
		require.NoError(t, err)
		match, err := first.matches.GetByID(ctx, parsed)
		require.NoError(t, err)
		require.NoError(t, first.ReportResult(ctx, refereeID, ReportResultInput{
			MatchID: matchID,
			PlayerA: PlayerOutcomeInput{PlayerID: match.PlayerA, Outcome: db.OutcomeWin, Points: 3},
			PlayerB: PlayerOutcomeInput{PlayerID: match.PlayerB, Outcome: db.OutcomeLoss, Points: 0},
		}))
	}

	before, err := first.QueryStandings(ctx)
	require.NoError(t, err)

	// Simulated crash: stop the coordinator without an orderly shutdown of
	// the league, then discard it — nothing survives but what was committed
	// to dsn.
	cancelFirst()

	second, cancelSecond := newFileBackedCoordinator(t, dsn)
	defer cancelSecond()
	require.NoError(t, second.Restore(ctx))

	after, err := second.QueryStandings(ctx)
	require.NoError(t, err)

	require.Equal(t, before.RoundIndex, after.RoundIndex)
	require.Equal(t, before.Rows, after.Rows)
}

// refusingAssignDispatcher announces rounds normally but always fails to
// assign a match, so any match it touches is left stuck in ASSIGNED —
// the state a referee that never confirms receipt leaves behind.
type refusingAssignDispatcher struct {
	recordingDispatcher
}

func (d *refusingAssignDispatcher) AssignMatch(_ context.Context, _ string, _ OutboundMeta, _ protocol.MatchAssignPayload) error {
	return errAssignRefused
}

var errAssignRefused = errors.New("refusingAssignDispatcher: refused")

// TestRestartRecoversAssignedMatchAsBusy covers a crash while a match sits
// in ASSIGNED (referee dispatched but never confirmed): restore must still
// mark the holding referee busy and seed assignedAt, the same as it does
// for IN_PROGRESS, so the match isn't handed to a second referee and the
// stale-match sweep can still eventually age it out.
func TestRestartRecoversAssignedMatchAsBusy(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "league.db")
	ctx := context.Background()

	first, cancelFirst := newFileBackedCoordinatorWithDispatcher(t, dsn, &refusingAssignDispatcher{})

	_, err := first.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)
	for _, p := range []string{"A", "B"} {
		_, err := first.RegisterPlayer(ctx, "conv-"+p, p, "http://"+p)
		require.NoError(t, err)
	}
	require.NoError(t, first.CloseRegistration(ctx))
	require.NoError(t, first.GenerateSchedule(ctx))

	matches, err := first.matches.ListByLeague(ctx, first.league.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, db.MatchAssigned, matches[0].Status)

	cancelFirst()

	second, cancelSecond := newFileBackedCoordinatorWithDispatcher(t, dsn, &refusingAssignDispatcher{})
	defer cancelSecond()
	require.NoError(t, second.Restore(ctx))

	err = second.submit(ctx, func() error {
		require.Empty(t, second.idleReferees, "referee holding the stuck ASSIGNED match must not be idle after restore")
		_, tracked := second.assignedAt[matches[0].ID]
		require.True(t, tracked, "assignedAt must be seeded for the recovered ASSIGNED match")
		return nil
	})
	require.NoError(t, err)
}

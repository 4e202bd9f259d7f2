package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentleague/league/internal/auth"
	"github.com/agentleague/league/internal/db"
	"github.com/agentleague/league/internal/game"
	"github.com/agentleague/league/internal/game/tictactoe"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/repositories"
	"github.com/agentleague/league/internal/websocket"
)

// recordingDispatcher is a Dispatcher fake that records every call instead
// of making a real HTTP request, so tests exercise the Coordinator's
// decisions without a network.
type recordingDispatcher struct {
	mu       sync.Mutex
	announce []protocol.RoundAnnouncePayload
	assign   []protocol.MatchAssignPayload
}

func (d *recordingDispatcher) AnnounceRound(_ context.Context, _ string, _ OutboundMeta, payload protocol.RoundAnnouncePayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.announce = append(d.announce, payload)
	return nil
}

func (d *recordingDispatcher) AssignMatch(_ context.Context, _ string, _ OutboundMeta, payload protocol.MatchAssignPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assign = append(d.assign, payload)
	return nil
}

// newTestCoordinator wires a Coordinator against an in-memory SQLite
// database and starts its Run loop, returning a cleanup func.
func newTestCoordinator(t *testing.T) (*Coordinator, *recordingDispatcher, func()) {
	t.Helper()
	logger := zap.NewNop()

	gormDB, err := db.New(db.Config{Driver: "sqlite", DSN: ":memory:", Logger: logger})
	require.NoError(t, err)

	tokens, err := auth.NewTokenManagerGenerated("league-test")
	require.NoError(t, err)

	registry := game.NewRegistry()
	registry.Register(tictactoe.New(), game.ScoringTable{})

	dispatcher := &recordingDispatcher{}
	hub := websocket.NewHub()

	coord := New(Deps{
		Config:        DefaultConfig(),
		Clock:         protocol.SystemClock{},
		Logger:        logger,
		Tokens:        tokens,
		Leagues:       repositories.NewLeagueRepository(gormDB),
		Agents:        repositories.NewAgentRepository(gormDB),
		TokenRepo:     repositories.NewTokenRepository(gormDB),
		Rounds:        repositories.NewRoundRepository(gormDB),
		Matches:       repositories.NewMatchRepository(gormDB),
		Results:       repositories.NewResultRepository(gormDB),
		Standings:     repositories.NewStandingsRepository(gormDB),
		Conversations: repositories.NewConversationRepository(gormDB),
		Hub:           hub,
		Games:         registry,
		Dispatcher:    dispatcher,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go coord.Run(ctx)
	go hub.Run(ctx)

	return coord, dispatcher, cancel
}

func TestTwoPlayerLifecycle(t *testing.T) {
	ctx := context.Background()
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	_, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)
	_, err = coord.RegisterPlayer(ctx, "conv-a", "A", "http://a")
	require.NoError(t, err)
	_, err = coord.RegisterPlayer(ctx, "conv-b", "B", "http://b")
	require.NoError(t, err)

	require.NoError(t, coord.CloseRegistration(ctx))
	require.NoError(t, coord.GenerateSchedule(ctx))

	err = coord.ReportResult(ctx, "R1", ReportResultInput{
		MatchID: firstPendingMatchID(t, coord),
		PlayerA: PlayerOutcomeInput{PlayerID: "A", Outcome: db.OutcomeWin, Points: 3},
		PlayerB: PlayerOutcomeInput{PlayerID: "B", Outcome: db.OutcomeLoss, Points: 0},
	})
	require.NoError(t, err)

	standings, err := coord.QueryStandings(ctx)
	require.NoError(t, err)
	require.Len(t, standings.Rows, 2)
	require.Equal(t, "A", standings.Rows[0].PlayerID)
	require.Equal(t, 3, standings.Rows[0].Points)
	require.Equal(t, 1, standings.Rows[0].Wins)
	require.Equal(t, "B", standings.Rows[1].PlayerID)
	require.Equal(t, 0, standings.Rows[1].Points)
}

func TestFourPlayerRoundRobinAllDraws(t *testing.T) {
	ctx := context.Background()
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	_, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)
	_, err = coord.RegisterReferee(ctx, "conv-r2", "R2", "http://ref2")
	require.NoError(t, err)
	for _, p := range []string{"A", "B", "C", "D"} {
		_, err := coord.RegisterPlayer(ctx, "conv-"+p, p, "http://"+p)
		require.NoError(t, err)
	}

	require.NoError(t, coord.CloseRegistration(ctx))
	require.NoError(t, coord.GenerateSchedule(ctx))

	// Drain all 6 matches, reporting every one as a draw, regardless of
	// which referee it lands with — the assignment algorithm handles that
	// deterministically on its own.
	for i := 0; i < 6; i++ {
		matchID, refereeID := nextInProgressMatch(t, coord)
		parsed, err := uuid.Parse(matchID)
		require.NoError(t, err)
		match, err := coord.matches.GetByID(ctx, parsed)
		require.NoError(t, err)
		err = coord.ReportResult(ctx, refereeID, ReportResultInput{
			MatchID: matchID,
			PlayerA: PlayerOutcomeInput{PlayerID: match.PlayerA, Outcome: db.OutcomeDraw, Points: 1},
			PlayerB: PlayerOutcomeInput{PlayerID: match.PlayerB, Outcome: db.OutcomeDraw, Points: 1},
		})
		require.NoError(t, err)
	}

	standings, err := coord.QueryStandings(ctx)
	require.NoError(t, err)
	require.Len(t, standings.Rows, 4)
	for _, row := range standings.Rows {
		require.Equal(t, 3, row.Points)
		require.Equal(t, 3, row.Draws)
	}
	// Alphabetical final ranking, since every other sort key is tied.
	require.Equal(t, []string{"A", "B", "C", "D"}, []string{
		standings.Rows[0].PlayerID, standings.Rows[1].PlayerID, standings.Rows[2].PlayerID, standings.Rows[3].PlayerID,
	})
}

func TestReportResultIsIdempotent(t *testing.T) {
	ctx := context.Background()
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	_, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)
	_, err = coord.RegisterPlayer(ctx, "conv-a", "A", "http://a")
	require.NoError(t, err)
	_, err = coord.RegisterPlayer(ctx, "conv-b", "B", "http://b")
	require.NoError(t, err)
	require.NoError(t, coord.CloseRegistration(ctx))
	require.NoError(t, coord.GenerateSchedule(ctx))

	matchID := firstPendingMatchID(t, coord)
	in := ReportResultInput{
		MatchID: matchID,
		PlayerA: PlayerOutcomeInput{PlayerID: "A", Outcome: db.OutcomeWin, Points: 3},
		PlayerB: PlayerOutcomeInput{PlayerID: "B", Outcome: db.OutcomeLoss, Points: 0},
	}
	require.NoError(t, coord.ReportResult(ctx, "R1", in))
	require.NoError(t, coord.ReportResult(ctx, "R1", in)) // identical replay succeeds

	divergent := in
	divergent.PlayerA.Outcome = db.OutcomeDraw
	err = coord.ReportResult(ctx, "R1", divergent)
	require.Error(t, err)
	var leagueErr *protocol.LeagueError
	require.ErrorAs(t, err, &leagueErr)
	require.Equal(t, protocol.ErrResultConflict, leagueErr.Code)
}

func TestRegisterRefereeRetryWithSameConversationReplaysToken(t *testing.T) {
	ctx := context.Background()
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	first, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)

	again, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)
	require.Equal(t, first, again, "retrying the same conversation_id must return the original token, not mint a new one")
}

func TestRegisterRefereeSameConversationDifferentPayloadIsRejected(t *testing.T) {
	ctx := context.Background()
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	_, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)

	_, err = coord.RegisterReferee(ctx, "conv-r1", "R1", "http://other-endpoint")
	require.Error(t, err)
	var leagueErr *protocol.LeagueError
	require.ErrorAs(t, err, &leagueErr)
	require.Equal(t, protocol.ErrDuplicateID, leagueErr.Code)
}

func TestRegisterRefereeFreshConversationAfterRegistrationIsDuplicate(t *testing.T) {
	ctx := context.Background()
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	_, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)

	_, err = coord.RegisterReferee(ctx, "conv-r1-retry", "R1", "http://ref1")
	require.Error(t, err)
	var leagueErr *protocol.LeagueError
	require.ErrorAs(t, err, &leagueErr)
	require.Equal(t, protocol.ErrDuplicateID, leagueErr.Code)
}

func TestRepeatedAuthFailuresSuspendAgentAndRevokeToken(t *testing.T) {
	ctx := context.Background()
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	res, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)

	_, err = coord.tokens.Verify(res.AuthToken)
	require.NoError(t, err)

	for i := 0; i < coord.cfg.MaxConsecutiveAuthFailures; i++ {
		coord.RecordAuthFailure(ctx, protocol.SenderReferee, "R1")
	}

	_, err = coord.tokens.Verify(res.AuthToken)
	require.Error(t, err, "token must be revoked once the consecutive-failure ceiling is reached")

	agent, err := coord.agents.GetByIdentity(ctx, coord.league.ID, db.AgentKindReferee, "R1")
	require.NoError(t, err)
	require.Equal(t, db.AgentStatusSuspended, agent.Status)
}

func TestAuthSuccessResetsFailureCounter(t *testing.T) {
	ctx := context.Background()
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	res, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)

	for i := 0; i < coord.cfg.MaxConsecutiveAuthFailures-1; i++ {
		coord.RecordAuthFailure(ctx, protocol.SenderReferee, "R1")
	}
	coord.RecordAuthSuccess(ctx, protocol.SenderReferee, "R1")
	coord.RecordAuthFailure(ctx, protocol.SenderReferee, "R1")

	_, err = coord.tokens.Verify(res.AuthToken)
	require.NoError(t, err, "a success in between failures must reset the streak, so the agent is not yet suspended")
}

func TestShutdownRevokesTokensAndAbortsLeague(t *testing.T) {
	ctx := context.Background()
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	res, err := coord.RegisterReferee(ctx, "conv-r1", "R1", "http://ref1")
	require.NoError(t, err)

	require.NoError(t, coord.Shutdown(ctx))

	_, err = coord.tokens.Verify(res.AuthToken)
	require.Error(t, err)

	league, err := coord.leagues.GetByID(ctx, coord.league.ID)
	require.NoError(t, err)
	require.Equal(t, db.LeagueAborted, league.Status)
}

func TestCheckSeqRejectsRegression(t *testing.T) {
	coord, _, cancel := newTestCoordinator(t)
	defer cancel()

	require.NoError(t, coord.CheckSeq("conv-x", 1))
	require.NoError(t, coord.CheckSeq("conv-x", 2))
	require.NoError(t, coord.CheckSeq("conv-x", 2), "a resend of the same seq is not a regression")
	require.Error(t, coord.CheckSeq("conv-x", 1))
}

func TestGenerateRoundRobinDeterministicAndComplete(t *testing.T) {
	players := []string{"D", "B", "A", "C"}
	shuffled := []string{"C", "A", "D", "B"}

	rounds1 := generateRoundRobin(players)
	rounds2 := generateRoundRobin(shuffled)
	require.Equal(t, rounds1, rounds2, "schedule must be input-order independent after canonical sort")

	seen := map[[2]string]bool{}
	total := 0
	for _, round := range rounds1 {
		playedThisRound := map[string]bool{}
		for _, m := range round {
			require.False(t, playedThisRound[m.PlayerA], "player appears twice in round")
			require.False(t, playedThisRound[m.PlayerB], "player appears twice in round")
			playedThisRound[m.PlayerA] = true
			playedThisRound[m.PlayerB] = true

			key := [2]string{m.PlayerA, m.PlayerB}
			require.False(t, seen[key], "pair played more than once")
			seen[key] = true
			require.True(t, m.PlayerA < m.PlayerB, "home/away must be lexicographically ordered")
			total++
		}
	}
	require.Equal(t, 4*3/2, total)
}

func firstPendingMatchID(t *testing.T, coord *Coordinator) string {
	t.Helper()
	id, _ := nextInProgressMatch(t, coord)
	return id
}

// nextInProgressMatch returns the id and assigned referee of one
// IN_PROGRESS match, by submitting a read-only closure the same way the
// public API methods do. Every match reaching IN_PROGRESS already has a
// referee, so only that status is eligible.
func nextInProgressMatch(t *testing.T, coord *Coordinator) (matchID, refereeID string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := coord.submit(ctx, func() error {
		matches, err := coord.matches.ListByLeague(ctx, coord.league.ID)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if m.Status == db.MatchInProgress {
				matchID, refereeID = m.ID.String(), m.RefereeID
				return nil
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, matchID)
	return matchID, refereeID
}

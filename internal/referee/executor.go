// Package referee implements the Referee match-execution state machine:
// ASSIGNED -> INVITING -> IN_PROGRESS -> REPORTING -> COMPLETED, with a
// failure branch to FORFEITED. The executor never reports ERRORED; the
// Manager marks a match ERRORED when no report arrives. A referee holds at most one
// active match at a time, but this package's Executor is stateless enough
// to run several concurrently if a deployment chooses to relax that.
package referee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentleague/league/internal/game"
	"github.com/agentleague/league/internal/protocol"
)

// Executor drives exactly one match from MATCH_ASSIGN through RESULT_REPORT,
// passing through the ASSIGNED -> INVITING -> IN_PROGRESS -> REPORTING ->
// COMPLETED/FORFEITED/ERRORED states named in section 4.5 without
// persisting them: the Manager's view of match status is authoritative and
// updated only via the final RESULT_REPORT.
type Executor struct {
	cfg     Config
	games   *game.Registry
	players PlayerClient
	mgr     ManagerClient
	mgrEp   string
	logger  *zap.Logger
}

// NewExecutor builds an Executor for one match.
func NewExecutor(cfg Config, games *game.Registry, players PlayerClient, mgr ManagerClient, managerEndpoint string, logger *zap.Logger) *Executor {
	return &Executor{cfg: cfg, games: games, players: players, mgr: mgr, mgrEp: managerEndpoint, logger: logger.Named("executor")}
}

// outcome accumulates the per-player verdict the executor reports.
type outcome struct {
	forfeited    bool
	winner       string // "" if draw or mutual forfeit
	drew         bool
	forfeitedIDs map[string]bool
}

// Run drives assign to completion or a failure branch, and reports the
// result to the Manager before returning. Errors are terminal only in the
// sense that the executor gives up retrying RESULT_REPORT; the match is
// always left in a reportable state first. An assignment whose game_type
// is not registered is logged and returns without any report.
func (e *Executor) Run(ctx context.Context, assign protocol.MatchAssignPayload) {
	matchCtx, cancel := context.WithTimeout(ctx, e.cfg.MatchTimeout)
	defer cancel()

	adapter, err := e.games.Adapter(assign.GameType)
	if err != nil {
		e.logger.Error("unknown game_type", zap.String("match_id", assign.MatchID), zap.Error(err))
		return
	}
	scoring, err := e.games.Scoring(assign.GameType)
	if err != nil {
		scoring = game.DefaultScoring
	}

	state, firstMover := adapter.InitialState(assign.PlayerA, assign.PlayerB)

	oc := e.invite(matchCtx, assign, adapter, state)
	if oc == nil {
		oc = e.playLoop(matchCtx, assign, adapter, state, firstMover)
	}

	e.notifyGameOver(matchCtx, assign, adapter, state, oc)
	e.report(ctx, assign, scoring, oc)
}

// invite sends GAME_INVITE to both players concurrently and returns a
// non-nil outcome only if the INVITING phase itself resolves the match
// (a decline, timeout, or malformed reply forfeits the offender outright).
func (e *Executor) invite(ctx context.Context, assign protocol.MatchAssignPayload, adapter game.Adapter, state game.State) *outcome {
	inviteCtx, cancel := context.WithTimeout(ctx, e.cfg.InviteTimeout)
	defer cancel()

	type reply struct {
		playerID string
		accepted bool
		err      error
	}
	results := make(chan reply, 2)

	invite := func(playerID, endpoint, opponent string) {
		if endpoint == "" {
			results <- reply{playerID: playerID, err: fmt.Errorf("no endpoint for player %s", playerID)}
			return
		}
		r, err := e.players.Invite(inviteCtx, endpoint, assign.RoundID, protocol.GameInvitePayload{
			MatchID: assign.MatchID, GameType: assign.GameType, Opponent: opponent,
			YourMark: adapter.PlayerLabel(state, playerID),
		})
		if err != nil {
			results <- reply{playerID: playerID, err: err}
			return
		}
		results <- reply{playerID: playerID, accepted: r.accepted()}
	}

	go invite(assign.PlayerA, assign.PlayerAEndpoint, assign.PlayerB)
	go invite(assign.PlayerB, assign.PlayerBEndpoint, assign.PlayerA)

	forfeited := map[string]bool{}
	replied := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			replied[r.playerID] = true
			if r.err != nil || !r.accepted {
				forfeited[r.playerID] = true
			}
		case <-inviteCtx.Done():
			// Any player who has not yet replied forfeits by timeout.
			for _, id := range []string{assign.PlayerA, assign.PlayerB} {
				if !replied[id] {
					forfeited[id] = true
				}
			}
		}
	}

	if len(forfeited) == 0 {
		return nil
	}
	return e.forfeitOutcome(assign, forfeited)
}

// playLoop runs the IN_PROGRESS phase: alternating MOVE_REQUEST/response
// until Terminal, or a per-move timeout/invalid move forfeits the offender.
func (e *Executor) playLoop(ctx context.Context, assign protocol.MatchAssignPayload, adapter game.Adapter, state game.State, onTurn string) *outcome {
	endpointOf := map[string]string{assign.PlayerA: assign.PlayerAEndpoint, assign.PlayerB: assign.PlayerBEndpoint}

	for {
		if result := adapter.Terminal(state); result.Outcome != game.Ongoing {
			return e.terminalOutcome(result)
		}

		moveCtx, cancel := context.WithTimeout(ctx, e.cfg.MoveTimeout)
		deadline, _ := moveCtx.Deadline()

		snapshot, err := adapter.Snapshot(state, onTurn)
		if err != nil {
			cancel()
			e.logger.Error("snapshot failed", zap.Error(err))
			return e.forfeitOutcome(assign, map[string]bool{onTurn: true})
		}

		reply, err := e.players.RequestMove(moveCtx, endpointOf[onTurn], assign.RoundID, protocol.MoveRequestPayload{
			MatchID: assign.MatchID, Snapshot: snapshot, Deadline: deadline.UTC().Format(time.RFC3339),
		})
		cancel()
		if err != nil || errors.Is(moveCtx.Err(), context.DeadlineExceeded) {
			return e.forfeitOutcome(assign, map[string]bool{onTurn: true})
		}

		next, err := adapter.Apply(state, onTurn, reply.Move)
		if err != nil {
			return e.forfeitOutcome(assign, map[string]bool{onTurn: true})
		}
		state = next
		onTurn = adapter.NextMover(state, assign.PlayerA, assign.PlayerB)
	}
}

func (e *Executor) terminalOutcome(result game.Result) *outcome {
	if result.Outcome == game.Draw {
		return &outcome{drew: true}
	}
	return &outcome{winner: result.Winner}
}

// forfeitOutcome normalizes the two documented forfeit shapes (single
// offender forfeits to the opponent's WIN; both forfeiting at once, e.g. a
// simultaneous timeout, is recorded as a mutual FORFEITED with no winner).
func (e *Executor) forfeitOutcome(assign protocol.MatchAssignPayload, forfeited map[string]bool) *outcome {
	oc := &outcome{forfeited: true, forfeitedIDs: forfeited}
	if len(forfeited) == 1 {
		for id := range forfeited {
			if id == assign.PlayerA {
				oc.winner = assign.PlayerB
			} else {
				oc.winner = assign.PlayerA
			}
		}
	}
	return oc
}

func (e *Executor) notifyGameOver(ctx context.Context, assign protocol.MatchAssignPayload, adapter game.Adapter, state game.State, oc *outcome) {
	snapshot, err := adapter.Snapshot(state, "")
	if err != nil {
		snapshot = nil
	}
	wireOutcome := outcomeString(oc)
	for _, ep := range []string{assign.PlayerAEndpoint, assign.PlayerBEndpoint} {
		if ep == "" {
			continue
		}
		if err := e.players.NotifyGameOver(ctx, ep, assign.RoundID, protocol.GameOverPayload{
			MatchID: assign.MatchID, Outcome: wireOutcome, Snapshot: snapshot,
		}); err != nil {
			e.logger.Warn("game_over notify failed", zap.String("endpoint", ep), zap.Error(err))
		}
	}
}

func outcomeString(oc *outcome) string {
	switch {
	case oc.drew:
		return "DRAW"
	case oc.forfeited:
		return "FORFEITED"
	case oc.winner != "":
		return "WIN"
	default:
		return "DRAW"
	}
}

// report builds the RESULT_REPORT payload from oc and the scoring table,
// and retries up to cfg.RetryMax times with exponential backoff — the
// REPORTING phase of section 4.5. transport.Client already retries
// transport-level failures per call; this loop retries on any error that
// ReportResult returns, whatever its cause.
func (e *Executor) report(ctx context.Context, assign protocol.MatchAssignPayload, scoring game.ScoringTable, oc *outcome) {
	payload := buildResultPayload(assign, scoring, oc)

	backoff := e.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= e.cfg.RetryMax; attempt++ {
		if err := e.mgr.ReportResult(ctx, e.mgrEp, assign.RoundID, payload); err != nil {
			lastErr = err
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				e.logger.Error("result report abandoned: match context expired", zap.String("match_id", assign.MatchID))
				return
			}
			continue
		}
		return
	}
	e.logger.Error("result report failed after retries", zap.String("match_id", assign.MatchID), zap.Error(lastErr))
}

func buildResultPayload(assign protocol.MatchAssignPayload, scoring game.ScoringTable, oc *outcome) protocol.ResultReportPayload {
	outcomeFor := func(playerID string) (string, int) {
		switch {
		case oc.drew:
			return "DRAW", scoring.Draw
		case oc.forfeited:
			if oc.forfeitedIDs[playerID] {
				return "LOSS", scoring.Loss
			}
			if oc.winner == playerID {
				return "WIN", scoring.Win
			}
			// Mutual forfeit: both sides lose, no winner.
			return "LOSS", scoring.Loss
		case oc.winner == playerID:
			return "WIN", scoring.Win
		default:
			return "LOSS", scoring.Loss
		}
	}

	outcomeA, pointsA := outcomeFor(assign.PlayerA)
	outcomeB, pointsB := outcomeFor(assign.PlayerB)

	return protocol.ResultReportPayload{
		MatchID:   assign.MatchID,
		PlayerA:   protocol.PlayerOutcome{PlayerID: assign.PlayerA, Outcome: outcomeA, Points: pointsA},
		PlayerB:   protocol.PlayerOutcome{PlayerID: assign.PlayerB, Outcome: outcomeB, Points: pointsB},
		Forfeited: oc.forfeited,
	}
}

package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentleague/league/internal/db"
	"github.com/agentleague/league/internal/repositories"
)

// Restore reconstructs the coordinator's in-memory state from the
// persistence layer after a process restart.
// It must be called before Run begins processing commands. When the
// TokenManager's RSA keys are ephemeral (regenerated at process start,
// internal/auth.NewTokenManagerGenerated), tokens issued before the crash
// no longer verify; Restore does not attempt to re-validate them, only to
// rebuild the scheduling state (idle referees, pending matches) agents
// will re-authenticate against once they re-register or resume polling.
func (c *Coordinator) Restore(ctx context.Context) error {
	return c.submit(ctx, func() error { return c.restoreLocked(ctx) })
}

func (c *Coordinator) restoreLocked(ctx context.Context) error {
	current, err := c.leagues.GetCurrent(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil // nothing to restore — fresh database
		}
		return fmt.Errorf("manager: restore: loading current league: %w", err)
	}
	c.league = current

	revoked, err := c.tokenRepo.ListRevokedJTIs(ctx)
	if err != nil {
		return fmt.Errorf("manager: restore: loading revoked tokens: %w", err)
	}
	c.tokens.LoadRevoked(revoked)

	referees, err := c.agents.ListByLeague(ctx, c.league.ID, db.AgentKindReferee)
	if err != nil {
		return fmt.Errorf("manager: restore: listing referees: %w", err)
	}
	players, err := c.agents.ListByLeague(ctx, c.league.ID, db.AgentKindPlayer)
	if err != nil {
		return fmt.Errorf("manager: restore: listing players: %w", err)
	}
	for _, r := range referees {
		c.refereeEndpoint[r.AgentID] = r.Endpoint
	}
	for _, p := range players {
		c.playerEndpoint[p.AgentID] = p.Endpoint
	}

	if c.league.Status != db.LeagueActive {
		return nil // no in-flight matches to reconstruct before ACTIVE
	}

	matches, err := c.matches.ListByLeague(ctx, c.league.ID)
	if err != nil {
		return fmt.Errorf("manager: restore: listing matches: %w", err)
	}

	busyReferees := make(map[string]bool)
	now := c.clock.Now()
	for _, m := range matches {
		switch m.Status {
		case db.MatchPending:
			c.pending = append(c.pending, m)
		case db.MatchAssigned, db.MatchInProgress:
			// A referee mid-step at crash time has no persisted step
			// sequence of its own (no distributed replication), and the
			// Manager does not try to resume the match. Mark the referee
			// busy here so it is not handed a second assignment, and seed
			// assignedAt so sweepStaleMatchesLocked marks the match ERRORED
			// and frees the referee once the match has gone unreported
			// past its ceiling. A match still ASSIGNED (referee never
			// confirmed before the crash) gets the same treatment.
			busyReferees[m.RefereeID] = true
			c.assignedAt[m.ID] = now
		}
	}

	for agentID, endpoint := range c.refereeEndpoint {
		if !busyReferees[agentID] {
			c.idleReferees = append(c.idleReferees, idleReferee{agentID: agentID, endpoint: endpoint, idleSince: now})
		}
	}

	return nil
}

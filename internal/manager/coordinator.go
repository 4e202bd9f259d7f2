// Package manager implements the League Manager: central authority over
// the league state machine, the round-robin scheduler, referee
// assignment, and the standings engine. Mutable state is
// owned exclusively by Coordinator.Run's goroutine, following the same
// single-writer event loop shape as internal/websocket.Hub.Run: instead of a
// fixed set of register/unregister channels, every public operation
// builds a closure capturing its own result variables and submits it over
// a single buffered command channel, so state mutation stays serialized
// while handlers keep ordinary typed Go signatures.
package manager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentleague/league/internal/auth"
	"github.com/agentleague/league/internal/db"
	"github.com/agentleague/league/internal/game"
	"github.com/agentleague/league/internal/metrics"
	"github.com/agentleague/league/internal/protocol"
	"github.com/agentleague/league/internal/repositories"
	"github.com/agentleague/league/internal/scheduler"
	"github.com/agentleague/league/internal/websocket"
)

// Coordinator is the League Manager's single-writer business-state owner.
// Construct with New, then run it with Run in its own goroutine before
// accepting any HTTP traffic.
type Coordinator struct {
	cfg    Config
	clock  protocol.Clock
	logger *zap.Logger

	tokens        *auth.TokenManager
	leagues       repositories.LeagueRepository
	agents        repositories.AgentRepository
	tokenRepo     repositories.TokenRepository
	rounds        repositories.RoundRepository
	matches       repositories.MatchRepository
	results       repositories.ResultRepository
	standings     repositories.StandingsRepository
	conversations repositories.ConversationRepository
	games         *game.Registry
	dispatcher    Dispatcher
	sched         *scheduler.Scheduler
	metrics       *metrics.Metrics
	hub           *websocket.Hub

	tasks   chan func()
	stopped chan struct{}

	// The remainder of this struct is mutated ONLY from inside Run's
	// goroutine; no other method may read or write it directly.
	league          *db.League
	selfToken       string
	idleReferees    []idleReferee
	refereeEndpoint map[string]string
	playerEndpoint  map[string]string
	pending         []db.Match
	assignedAt      map[uuid.UUID]time.Time
	authFailures    map[string]int // "kind:agent_id" -> consecutive AUTH_INVALID count
}

// Deps bundles Coordinator's constructor dependencies.
type Deps struct {
	Config        Config
	Clock         protocol.Clock
	Logger        *zap.Logger
	Tokens        *auth.TokenManager
	Leagues       repositories.LeagueRepository
	Agents        repositories.AgentRepository
	TokenRepo     repositories.TokenRepository
	Rounds        repositories.RoundRepository
	Matches       repositories.MatchRepository
	Results       repositories.ResultRepository
	Standings     repositories.StandingsRepository
	Conversations repositories.ConversationRepository
	Games         *game.Registry
	Dispatcher    Dispatcher
	Scheduler     *scheduler.Scheduler
	Metrics       *metrics.Metrics
	// Hub, if non-nil, receives round-announcement, standings-publication
	// and league-status-transition pushes for the /ws observer feed.
	Hub *websocket.Hub
}

// New creates a Coordinator ready for Run. Call Restore before Run if the
// process is recovering persisted state from a prior crash.
func New(d Deps) *Coordinator {
	return &Coordinator{
		cfg:             d.Config,
		clock:           d.Clock,
		logger:          d.Logger.Named("manager"),
		tokens:          d.Tokens,
		leagues:         d.Leagues,
		agents:          d.Agents,
		tokenRepo:       d.TokenRepo,
		rounds:          d.Rounds,
		matches:         d.Matches,
		results:         d.Results,
		standings:       d.Standings,
		conversations:   d.Conversations,
		games:           d.Games,
		dispatcher:      d.Dispatcher,
		sched:           d.Scheduler,
		metrics:         d.Metrics,
		hub:             d.Hub,
		tasks:           make(chan func(), 64),
		stopped:         make(chan struct{}),
		refereeEndpoint: make(map[string]string),
		playerEndpoint:  make(map[string]string),
		assignedAt:      make(map[uuid.UUID]time.Time),
		authFailures:    make(map[string]int),
	}
}

// Run starts the coordinator's event loop. It must be called exactly once,
// in its own goroutine, and exits when ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.stopped)

	staleTicker := time.NewTicker(30 * time.Second)
	defer staleTicker.Stop()

	for {
		select {
		case task := <-c.tasks:
			task()

		case <-staleTicker.C:
			c.sweepStaleMatchesLocked(ctx)

		case <-ctx.Done():
			return
		}
	}
}

// submit hands fn to the coordinator goroutine and blocks until it runs
// and signals completion, or ctx is cancelled — the HTTP-handler side of
// the command/reply pattern.
func (c *Coordinator) submit(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	task := func() { done <- fn() }

	select {
	case c.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return fmt.Errorf("manager: coordinator is not running")
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// RegisterReferee / RegisterPlayer
// -----------------------------------------------------------------------------

// RegisterReferee implements the register_referee operation. conversationID
// is the envelope's conversation_id: a retry carrying the same
// conversation_id and an identical (kind, agent_id, endpoint) payload
// returns the original RegisterResult instead of minting a new token or
// rejecting with DUPLICATE_ID.
func (c *Coordinator) RegisterReferee(ctx context.Context, conversationID, agentID, endpoint string) (RegisterResult, error) {
	var result RegisterResult
	err := c.submit(ctx, func() error {
		r, e := c.registerAgentLocked(ctx, conversationID, db.AgentKindReferee, agentID, endpoint)
		if e != nil {
			return e
		}
		result = r
		return nil
	})
	return result, err
}

// RegisterPlayer implements the register_player operation. See
// RegisterReferee for the conversationID replay contract.
func (c *Coordinator) RegisterPlayer(ctx context.Context, conversationID, agentID, endpoint string) (RegisterResult, error) {
	var result RegisterResult
	err := c.submit(ctx, func() error {
		if c.league == nil || c.league.Status != db.LeagueRegistration {
			return protocol.NewLeagueError(protocol.ErrRegistrationClosed, "registration is not open")
		}
		refCount, err := c.agents.CountByLeague(ctx, c.league.ID, db.AgentKindReferee)
		if err != nil {
			return fmt.Errorf("manager: counting referees: %w", err)
		}
		if refCount == 0 {
			return protocol.NewLeagueError(protocol.ErrPreconditionFailed, "at least one referee must register before any player")
		}
		r, e := c.registerAgentLocked(ctx, conversationID, db.AgentKindPlayer, agentID, endpoint)
		if e != nil {
			return e
		}
		result = r
		return nil
	})
	return result, err
}

func (c *Coordinator) registerAgentLocked(ctx context.Context, conversationID, kind, agentID, endpoint string) (RegisterResult, error) {
	if err := c.ensureLeagueLocked(ctx); err != nil {
		return RegisterResult{}, err
	}
	if c.league.Status != db.LeagueRegistration {
		return RegisterResult{}, protocol.NewLeagueError(protocol.ErrRegistrationClosed, "registration is not open")
	}

	requestHash := registrationRequestHash(kind, agentID, endpoint)
	if conversationID != "" && c.conversations != nil {
		replay, found, err := c.lookupRegistrationReplayLocked(ctx, conversationID, requestHash)
		if err != nil {
			return RegisterResult{}, err
		}
		if found {
			return replay, nil
		}
	}

	if existing, err := c.agents.GetByIdentity(ctx, c.league.ID, kind, agentID); err == nil && existing != nil {
		return RegisterResult{}, protocol.NewLeagueError(protocol.ErrDuplicateID, fmt.Sprintf("%s %q is already registered", kind, agentID))
	}

	agent := &db.Agent{
		LeagueID:     c.league.ID,
		Kind:         kind,
		AgentID:      agentID,
		Status:       db.AgentStatusRegistered,
		Endpoint:     endpoint,
		RegisteredAt: c.clock.Now(),
	}
	if err := c.agents.Create(ctx, agent); err != nil {
		return RegisterResult{}, fmt.Errorf("manager: creating agent record: %w", err)
	}

	token, jti, expiresAt, err := c.tokens.Issue(c.league.ID.String(), kind, agentID)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("manager: issuing token: %w", err)
	}
	if err := c.tokenRepo.Create(ctx, &db.Token{
		LeagueID:  c.league.ID,
		Kind:      kind,
		AgentID:   agentID,
		JTI:       jti,
		IssuedAt:  c.clock.Now(),
		ExpiresAt: expiresAt,
	}); err != nil {
		return RegisterResult{}, fmt.Errorf("manager: persisting token: %w", err)
	}
	if c.metrics != nil {
		c.metrics.TokensIssued.Inc()
	}

	switch kind {
	case db.AgentKindReferee:
		c.refereeEndpoint[agentID] = endpoint
		c.idleReferees = append(c.idleReferees, idleReferee{agentID: agentID, endpoint: endpoint, idleSince: c.clock.Now()})
	case db.AgentKindPlayer:
		c.playerEndpoint[agentID] = endpoint
	}
	if c.metrics != nil {
		count, _ := c.agents.CountByLeague(ctx, c.league.ID, kind)
		c.metrics.ConnectedAgents.WithLabelValues(kind).Set(float64(count))
	}

	result := RegisterResult{AuthToken: token, LeagueID: c.league.ID.String()}
	if conversationID != "" && c.conversations != nil {
		if err := c.saveRegistrationReplayLocked(ctx, conversationID, requestHash, result); err != nil {
			c.logger.Warn("failed to cache registration reply for replay", zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}
	return result, nil
}

// registrationRequestHash fingerprints a registration request so a
// replayed conversation_id can be told apart from one reused for a
// different agent or endpoint.
func registrationRequestHash(kind, agentID, endpoint string) string {
	sum := sha256.Sum256([]byte(kind + "|" + agentID + "|" + endpoint))
	return hex.EncodeToString(sum[:])
}

// lookupRegistrationReplayLocked returns the cached RegisterResult for a
// previously accepted registration under conversationID, if the request
// matches; it rejects a conversation_id reused with a different payload.
func (c *Coordinator) lookupRegistrationReplayLocked(ctx context.Context, conversationID, requestHash string) (RegisterResult, bool, error) {
	cachedHash, cachedPayload, found, err := c.conversations.GetReplay(ctx, conversationID)
	if err != nil {
		return RegisterResult{}, false, fmt.Errorf("manager: loading registration replay: %w", err)
	}
	if !found {
		return RegisterResult{}, false, nil
	}
	if cachedHash != requestHash {
		return RegisterResult{}, false, protocol.NewLeagueError(protocol.ErrDuplicateID, "conversation_id was already used to register a different agent/endpoint")
	}
	var result RegisterResult
	if err := json.Unmarshal(cachedPayload, &result); err != nil {
		return RegisterResult{}, false, fmt.Errorf("manager: decoding cached registration reply: %w", err)
	}
	return result, true, nil
}

// saveRegistrationReplayLocked caches an accepted registration's reply so
// a conversation_id retry returns the original response.
func (c *Coordinator) saveRegistrationReplayLocked(ctx context.Context, conversationID, requestHash string, result RegisterResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("manager: encoding registration reply for replay cache: %w", err)
	}
	return c.conversations.SaveReplay(ctx, conversationID, requestHash, encoded)
}

// ensureLeagueLocked lazily creates the single league row this Manager
// process owns, the first time any agent registers. Exactly one active
// league exists per process; INIT is a transient pseudostate the
// league never persists through, since there is no operation that
// observes it.
func (c *Coordinator) ensureLeagueLocked(ctx context.Context) error {
	if c.league != nil {
		return nil
	}
	current, err := c.leagues.GetCurrent(ctx)
	if err == nil {
		c.league = current
		return c.issueSelfTokenLocked()
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("manager: loading current league: %w", err)
	}

	league := &db.League{
		Status:                db.LeagueRegistration,
		GameType:              c.cfg.GameType,
		MinReferees:           c.cfg.MinReferees,
		MinPlayers:            c.cfg.MinPlayers,
		RegistrationDeadline:  c.cfg.RegistrationDeadline,
		ReassignmentCooldownS: int(c.cfg.ReassignmentCooldown / time.Second),
	}
	if err := c.leagues.Create(ctx, league); err != nil {
		return fmt.Errorf("manager: creating league: %w", err)
	}
	c.league = league
	if err := c.issueSelfTokenLocked(); err != nil {
		return err
	}

	if league.RegistrationDeadline != nil && c.sched != nil {
		deadline := *league.RegistrationDeadline
		if err := c.sched.ScheduleRegistrationDeadline(deadline, func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.CloseRegistration(bgCtx); err != nil {
				c.logger.Warn("registration deadline close_registration failed", zap.Error(err))
				return
			}
			if err := c.GenerateSchedule(bgCtx); err != nil {
				c.logger.Warn("registration deadline generate_schedule failed", zap.Error(err))
			}
		}); err != nil {
			c.logger.Warn("failed to schedule registration deadline", zap.Error(err))
		}
	}
	return nil
}

// issueSelfTokenLocked mints the Manager's own auth_token, bound to
// (league_id, league_manager, "") so referees and players can verify an
// outbound envelope's sender the same way they verify each other's.
// Unlike agent tokens this one is never persisted: it is reissued here on
// every ensureLeagueLocked, which already runs once per process lifetime
// per league.
func (c *Coordinator) issueSelfTokenLocked() error {
	token, _, _, err := c.tokens.Issue(c.league.ID.String(), string(protocol.SenderManager), "")
	if err != nil {
		return fmt.Errorf("manager: issuing self auth_token: %w", err)
	}
	c.selfToken = token
	return nil
}

// -----------------------------------------------------------------------------
// Auth failure tracking / suspension / shutdown
// -----------------------------------------------------------------------------

// RecordAuthFailure tallies one AUTH_INVALID rejection for (kind,
// agentID). Once MaxConsecutiveAuthFailures is reached the agent is
// suspended: its live tokens are revoked, in-memory and on disk, and its
// status becomes SUSPENDED. Only referees and players can be suspended;
// a league_manager sender is ignored.
func (c *Coordinator) RecordAuthFailure(ctx context.Context, kind protocol.SenderKind, agentID string) {
	if kind != protocol.SenderReferee && kind != protocol.SenderPlayer {
		return
	}
	_ = c.submit(ctx, func() error {
		if c.cfg.MaxConsecutiveAuthFailures <= 0 || c.league == nil {
			return nil
		}
		key := string(kind) + ":" + agentID
		c.authFailures[key]++
		if c.authFailures[key] < c.cfg.MaxConsecutiveAuthFailures {
			return nil
		}
		delete(c.authFailures, key)
		if err := c.suspendAgentLocked(ctx, string(kind), agentID); err != nil {
			c.logger.Warn("failed to suspend agent after repeated auth failures", zap.String("agent_id", agentID), zap.Error(err))
		}
		return nil
	})
}

// RecordAuthSuccess clears the consecutive-failure counter for (kind,
// agentID), so an isolated stale token never accumulates toward
// suspension across unrelated, later-successful requests.
func (c *Coordinator) RecordAuthSuccess(ctx context.Context, kind protocol.SenderKind, agentID string) {
	if kind != protocol.SenderReferee && kind != protocol.SenderPlayer {
		return
	}
	_ = c.submit(ctx, func() error {
		delete(c.authFailures, string(kind)+":"+agentID)
		return nil
	})
}

// suspendAgentLocked revokes every live token for (kind, agentID) — both
// the persisted record and auth.TokenManager's in-memory denylist — marks
// the agent SUSPENDED, and drops it from the idle-referee pool so it is
// never handed another assignment. Suspension is permanent for the rest
// of the league's lifetime; nothing re-registers a suspended agent.
func (c *Coordinator) suspendAgentLocked(ctx context.Context, kind, agentID string) error {
	agent, err := c.agents.GetByIdentity(ctx, c.league.ID, kind, agentID)
	if err != nil {
		return fmt.Errorf("loading agent to suspend: %w", err)
	}
	jtis, err := c.tokenRepo.RevokeByAgent(ctx, c.league.ID, kind, agentID)
	if err != nil {
		return fmt.Errorf("revoking tokens for suspended agent: %w", err)
	}
	for _, jti := range jtis {
		c.tokens.Revoke(jti)
	}
	if err := c.agents.UpdateStatus(ctx, agent.ID, db.AgentStatusSuspended); err != nil {
		return fmt.Errorf("marking agent suspended: %w", err)
	}

	switch kind {
	case db.AgentKindReferee:
		delete(c.refereeEndpoint, agentID)
		kept := c.idleReferees[:0]
		for _, r := range c.idleReferees {
			if r.agentID != agentID {
				kept = append(kept, r)
			}
		}
		c.idleReferees = kept
	case db.AgentKindPlayer:
		delete(c.playerEndpoint, agentID)
	}
	c.logger.Warn("agent suspended after repeated auth failures", zap.String("kind", kind), zap.String("agent_id", agentID))
	return nil
}

// publishLeagueStatusLocked pushes a league.status event to the /ws
// observer feed. A no-op if no hub is wired or no league exists yet.
func (c *Coordinator) publishLeagueStatusLocked(status string) {
	if c.hub == nil || c.league == nil {
		return
	}
	topic := "league:" + c.league.ID.String()
	c.hub.Publish(topic, websocket.Message{
		Type:    websocket.MsgLeagueStatus,
		Topic:   topic,
		Payload: map[string]string{"status": status},
	})
}

// Shutdown revokes every still-live token for the current league — in the
// persisted token table and auth.TokenManager's in-memory denylist — and,
// if the league had not already reached a terminal status, marks it
// ABORTED. Call once during an orderly process shutdown, before the
// Coordinator's Run goroutine is cancelled.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	return c.submit(ctx, func() error {
		if c.league == nil {
			return nil
		}
		jtis, err := c.tokenRepo.RevokeAllForLeague(ctx, c.league.ID)
		if err != nil {
			return fmt.Errorf("manager: revoking tokens on shutdown: %w", err)
		}
		for _, jti := range jtis {
			c.tokens.Revoke(jti)
		}
		c.logger.Info("league tokens revoked on shutdown", zap.Int("token_count", len(jtis)))

		if c.league.Status == db.LeagueCompleted || c.league.Status == db.LeagueAborted {
			return nil
		}
		c.league.Status = db.LeagueAborted
		if err := c.leagues.Update(ctx, c.league); err != nil {
			return fmt.Errorf("manager: marking league aborted on shutdown: %w", err)
		}
		c.publishLeagueStatusLocked(db.LeagueAborted)
		return nil
	})
}

// -----------------------------------------------------------------------------
// CloseRegistration / LeagueAdvance
// -----------------------------------------------------------------------------

// CloseRegistration implements close_registration: allowed once
// referees >= min_referees and players >= min_players.
func (c *Coordinator) CloseRegistration(ctx context.Context) error {
	return c.submit(ctx, func() error { return c.closeRegistrationLocked(ctx, false) })
}

// LeagueAdvance implements the administrative LEAGUE_ADVANCE escape hatch:
// forces REGISTRATION -> SCHEDULING without waiting on the
// min_players/min_referees gate.
func (c *Coordinator) LeagueAdvance(ctx context.Context) error {
	return c.submit(ctx, func() error { return c.closeRegistrationLocked(ctx, true) })
}

func (c *Coordinator) closeRegistrationLocked(ctx context.Context, force bool) error {
	if c.league == nil || c.league.Status != db.LeagueRegistration {
		return protocol.NewLeagueError(protocol.ErrPreconditionFailed, "league is not in REGISTRATION")
	}

	if !force {
		refCount, err := c.agents.CountByLeague(ctx, c.league.ID, db.AgentKindReferee)
		if err != nil {
			return fmt.Errorf("manager: counting referees: %w", err)
		}
		playerCount, err := c.agents.CountByLeague(ctx, c.league.ID, db.AgentKindPlayer)
		if err != nil {
			return fmt.Errorf("manager: counting players: %w", err)
		}
		if refCount < int64(c.league.MinReferees) || playerCount < int64(c.league.MinPlayers) {
			return protocol.NewLeagueError(protocol.ErrPreconditionFailed, "min_referees/min_players gate not yet satisfied")
		}
	}

	if c.sched != nil {
		c.sched.CancelRegistrationDeadline()
	}

	c.league.Status = db.LeagueScheduling
	if err := c.leagues.Update(ctx, c.league); err != nil {
		return fmt.Errorf("manager: persisting SCHEDULING transition: %w", err)
	}
	c.publishLeagueStatusLocked(db.LeagueScheduling)
	return nil
}

// -----------------------------------------------------------------------------
// GenerateSchedule
// -----------------------------------------------------------------------------

// GenerateSchedule implements generate_schedule: computes the
// deterministic round-robin schedule and transitions the league to ACTIVE
// once the first round is ready to dispatch.
func (c *Coordinator) GenerateSchedule(ctx context.Context) error {
	return c.submit(ctx, func() error { return c.generateScheduleLocked(ctx) })
}

func (c *Coordinator) generateScheduleLocked(ctx context.Context) error {
	if c.league == nil || c.league.Status != db.LeagueScheduling {
		return protocol.NewLeagueError(protocol.ErrPreconditionFailed, "league is not in SCHEDULING")
	}

	playerAgents, err := c.agents.ListByLeague(ctx, c.league.ID, db.AgentKindPlayer)
	if err != nil {
		return fmt.Errorf("manager: listing players: %w", err)
	}
	playerIDs := make([]string, len(playerAgents))
	for i, a := range playerAgents {
		playerIDs[i] = a.AgentID
	}

	roundPairings := generateRoundRobin(playerIDs)
	for idx, pairings := range roundPairings {
		round := &db.Round{LeagueID: c.league.ID, RoundIndex: idx + 1, Status: db.RoundPending}
		if err := c.rounds.Create(ctx, round); err != nil {
			return fmt.Errorf("manager: creating round %d: %w", idx+1, err)
		}
		for _, p := range pairings {
			match := &db.Match{
				LeagueID:   c.league.ID,
				RoundID:    round.ID,
				RoundIndex: round.RoundIndex,
				PlayerA:    p.PlayerA,
				PlayerB:    p.PlayerB,
				GameType:   c.league.GameType,
				Status:     db.MatchPending,
			}
			if err := c.matches.Create(ctx, match); err != nil {
				return fmt.Errorf("manager: creating match (%s,%s): %w", p.PlayerA, p.PlayerB, err)
			}
		}
	}

	c.league.Status = db.LeagueActive
	if err := c.leagues.Update(ctx, c.league); err != nil {
		return fmt.Errorf("manager: persisting ACTIVE transition: %w", err)
	}
	c.publishLeagueStatusLocked(db.LeagueActive)

	return c.advanceRoundLocked(ctx, 1)
}

// advanceRoundLocked announces roundIndex (if it exists), enqueues its
// matches for assignment, and attempts immediate assignment against any
// currently idle referees.
func (c *Coordinator) advanceRoundLocked(ctx context.Context, roundIndex int) error {
	round, err := c.rounds.GetByIndex(ctx, c.league.ID, roundIndex)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.completeLeagueLocked(ctx)
		}
		return fmt.Errorf("manager: loading round %d: %w", roundIndex, err)
	}

	matches, err := c.matches.ListByRound(ctx, round.ID)
	if err != nil {
		return fmt.Errorf("manager: listing matches for round %d: %w", roundIndex, err)
	}

	summaries := make([]MatchSummary, 0, len(matches))
	recipients := make(map[string]string) // agent_id -> endpoint, deduped
	for _, m := range matches {
		summaries = append(summaries, MatchSummary{
			MatchID: m.ID.String(), PlayerA: m.PlayerA, PlayerB: m.PlayerB, GameType: m.GameType,
		})
		recipients[m.PlayerA] = c.playerEndpoint[m.PlayerA]
		recipients[m.PlayerB] = c.playerEndpoint[m.PlayerB]
		c.pending = append(c.pending, m)
	}
	for id, ep := range c.refereeEndpoint {
		recipients[id] = ep
	}

	payload := protocol.RoundAnnouncePayload{RoundID: roundIndex}
	for _, m := range matches {
		payload.Matches = append(payload.Matches, protocol.MatchSummary{
			MatchID: m.ID.String(), Players: []string{m.PlayerA, m.PlayerB}, GameType: m.GameType,
		})
	}
	meta := OutboundMeta{LeagueID: c.league.ID.String(), AuthToken: c.selfToken, RoundID: roundIndex}
	for _, endpoint := range recipients {
		if endpoint == "" {
			continue
		}
		if err := c.dispatcher.AnnounceRound(ctx, endpoint, meta, payload); err != nil {
			c.logger.Warn("round announce dispatch failed", zap.String("endpoint", endpoint), zap.Error(err))
		}
	}

	round.Status = db.RoundAnnounced
	if err := c.rounds.Update(ctx, round); err != nil {
		return fmt.Errorf("manager: marking round %d announced: %w", roundIndex, err)
	}

	if c.hub != nil {
		topic := "league:" + c.league.ID.String()
		c.hub.Publish(topic, websocket.Message{Type: websocket.MsgRoundAnnounced, Topic: topic, Payload: payload})
	}

	return c.assignPendingLocked(ctx)
}

// assignPendingLocked hands the head of the pending FIFO to the
// lowest-sorting idle referee, repeating while both are non-empty.
func (c *Coordinator) assignPendingLocked(ctx context.Context) error {
	for len(c.pending) > 0 && len(c.idleReferees) > 0 {
		refereeIdx := lowestEligibleReferee(c.idleReferees, c.clock.Now(), c.cfg.ReassignmentCooldown)
		if refereeIdx < 0 {
			return nil
		}
		referee := c.idleReferees[refereeIdx]

		m := c.pending[0]
		c.pending = c.pending[1:]

		// The match sits in ASSIGNED for the span of the outbound
		// MATCH_ASSIGN call: a referee that has been handed a match but
		// not yet acknowledged receiving it is not yet IN_PROGRESS.
		m.RefereeID = referee.agentID
		m.Status = db.MatchAssigned
		if err := c.matches.Update(ctx, &m); err != nil {
			return fmt.Errorf("manager: assigning match %s: %w", m.ID, err)
		}
		c.assignedAt[m.ID] = c.clock.Now()

		c.idleReferees = append(c.idleReferees[:refereeIdx], c.idleReferees[refereeIdx+1:]...)

		meta := OutboundMeta{
			LeagueID: c.league.ID.String(), AuthToken: c.selfToken,
			RoundID: m.RoundIndex, MatchID: m.ID.String(), GameType: m.GameType,
		}
		if err := c.dispatcher.AssignMatch(ctx, referee.endpoint, meta, protocol.MatchAssignPayload{
			LeagueID:        c.league.ID.String(),
			RoundID:         m.RoundIndex,
			MatchID:         m.ID.String(),
			PlayerA:         m.PlayerA,
			PlayerAEndpoint: c.playerEndpoint[m.PlayerA],
			PlayerB:         m.PlayerB,
			PlayerBEndpoint: c.playerEndpoint[m.PlayerB],
			GameType:        m.GameType,
		}); err != nil {
			// The referee never confirmed receipt. The match stays
			// ASSIGNED; assignedAt is already set, so sweepStaleMatchesLocked
			// will mark it ERRORED and free the referee if it never does.
			c.logger.Warn("match assign dispatch failed; referee has not confirmed receipt", zap.String("match_id", m.ID.String()), zap.Error(err))
			continue
		}

		m.Status = db.MatchInProgress
		if err := c.matches.Update(ctx, &m); err != nil {
			return fmt.Errorf("manager: marking match %s in_progress: %w", m.ID, err)
		}
	}
	return nil
}

// lowestEligibleReferee returns the index of the lowest-agent_id idle
// referee who is past its reassignment cooldown (applied only to a referee
// freed by an ERRORED match), or -1 if none qualify.
func lowestEligibleReferee(idle []idleReferee, now time.Time, cooldown time.Duration) int {
	best := -1
	for i, r := range idle {
		if r.errored && now.Before(r.idleSince.Add(cooldown)) {
			continue
		}
		if best < 0 || r.agentID < idle[best].agentID {
			best = i
		}
	}
	return best
}

func (c *Coordinator) completeLeagueLocked(ctx context.Context) error {
	c.league.Status = db.LeagueCompleted
	if err := c.leagues.Update(ctx, c.league); err != nil {
		return err
	}
	c.publishLeagueStatusLocked(db.LeagueCompleted)
	return nil
}

// -----------------------------------------------------------------------------
// ReportResult
// -----------------------------------------------------------------------------

// ReportResult implements report_result: accepted only from
// the referee assigned to the match while it is IN_PROGRESS; idempotent on
// the first accepted report.
func (c *Coordinator) ReportResult(ctx context.Context, refereeID string, in ReportResultInput) error {
	return c.submit(ctx, func() error { return c.reportResultLocked(ctx, refereeID, in) })
}

func (c *Coordinator) reportResultLocked(ctx context.Context, refereeID string, in ReportResultInput) error {
	matchID, err := uuid.Parse(in.MatchID)
	if err != nil {
		return protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "match_id is not a valid identifier")
	}
	match, err := c.matches.GetByID(ctx, matchID)
	if err != nil {
		return protocol.NewLeagueError(protocol.ErrNotAssigned, "no such match")
	}
	if match.RefereeID != refereeID {
		return protocol.NewLeagueError(protocol.ErrNotAssigned, "referee is not assigned to this match")
	}

	if scoring, err := c.games.Scoring(match.GameType); err == nil {
		if in.PlayerA.Points != game.Points(scoring, in.PlayerA.Outcome) || in.PlayerB.Points != game.Points(scoring, in.PlayerB.Outcome) {
			return protocol.NewLeagueError(protocol.ErrEnvelopeInvalid, "reported points do not match the configured scoring table for this outcome")
		}
	}

	if match.Status != db.MatchInProgress {
		existing, err := c.results.GetByMatch(ctx, matchID)
		if err != nil {
			return protocol.NewLeagueError(protocol.ErrPreconditionFailed, "match is not in progress")
		}
		if resultMatches(existing, in) {
			return nil // idempotent replay of the already-accepted report
		}
		return protocol.NewLeagueError(protocol.ErrResultConflict, "a different result was already accepted for this match")
	}

	result := &db.Result{
		MatchID:      matchID,
		LeagueID:     c.league.ID,
		OutcomeA:     in.PlayerA.Outcome,
		OutcomeB:     in.PlayerB.Outcome,
		PointsA:      in.PlayerA.Points,
		PointsB:      in.PlayerB.Points,
		GameMetadata: string(in.GameMetadata),
	}
	if err := c.results.Create(ctx, result); err != nil {
		return fmt.Errorf("manager: persisting result for match %s: %w", matchID, err)
	}

	match.Status = db.MatchCompleted
	if in.Forfeited {
		match.Status = db.MatchForfeited
	}
	if err := c.matches.Update(ctx, &match); err != nil {
		return fmt.Errorf("manager: marking match %s terminal: %w", matchID, err)
	}
	delete(c.assignedAt, matchID)
	if c.metrics != nil {
		c.metrics.MatchesByStatus.WithLabelValues(match.Status).Inc()
	}

	c.idleReferees = append(c.idleReferees, idleReferee{
		agentID: refereeID, endpoint: c.refereeEndpoint[refereeID], idleSince: c.clock.Now(),
	})

	if err := c.publishStandingsLocked(ctx); err != nil {
		return fmt.Errorf("manager: publishing standings: %w", err)
	}

	if err := c.maybeCompleteRoundLocked(ctx, match.RoundID, match.RoundIndex); err != nil {
		return err
	}

	return c.assignPendingLocked(ctx)
}

func resultMatches(existing *db.Result, in ReportResultInput) bool {
	return existing.OutcomeA == in.PlayerA.Outcome && existing.OutcomeB == in.PlayerB.Outcome &&
		existing.PointsA == in.PlayerA.Points && existing.PointsB == in.PlayerB.Points
}

// maybeCompleteRoundLocked marks roundID COMPLETED and advances to the
// next round once every one of its matches has reached a terminal status.
func (c *Coordinator) maybeCompleteRoundLocked(ctx context.Context, roundID uuid.UUID, roundIndex int) error {
	matches, err := c.matches.ListByRound(ctx, roundID)
	if err != nil {
		return fmt.Errorf("manager: listing matches for round %d: %w", roundIndex, err)
	}
	for _, m := range matches {
		if !isTerminal(m.Status) {
			return nil
		}
	}

	round, err := c.rounds.GetByIndex(ctx, c.league.ID, roundIndex)
	if err != nil {
		return fmt.Errorf("manager: reloading round %d: %w", roundIndex, err)
	}
	round.Status = db.RoundCompleted
	if err := c.rounds.Update(ctx, round); err != nil {
		return fmt.Errorf("manager: marking round %d completed: %w", roundIndex, err)
	}
	if c.metrics != nil {
		c.metrics.RoundsCompleted.Inc()
	}

	return c.advanceRoundLocked(ctx, roundIndex+1)
}

func isTerminal(status string) bool {
	switch status {
	case db.MatchCompleted, db.MatchForfeited, db.MatchErrored:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// QueryStandings
// -----------------------------------------------------------------------------

// QueryStandings implements query_standings: allowed in ACTIVE or
// COMPLETED, returns the latest published snapshot.
func (c *Coordinator) QueryStandings(ctx context.Context) (StandingsResult, error) {
	var result StandingsResult
	err := c.submit(ctx, func() error {
		if c.league == nil || (c.league.Status != db.LeagueActive && c.league.Status != db.LeagueCompleted) {
			return protocol.NewLeagueError(protocol.ErrPreconditionFailed, "standings are not available before the league is ACTIVE")
		}
		snap, err := c.standings.GetLatest(ctx, c.league.ID)
		if err != nil {
			return protocol.NewLeagueError(protocol.ErrPreconditionFailed, "no standings have been published yet")
		}
		var rows []StandingsRow
		if err := json.Unmarshal([]byte(snap.Rows), &rows); err != nil {
			return fmt.Errorf("manager: decoding standings snapshot: %w", err)
		}
		result = StandingsResult{RoundIndex: snap.RoundIndex, Rows: rows}
		return nil
	})
	return result, err
}

// publishStandingsLocked recomputes standings from every accepted Result
// and, once a round has every match terminal, writes a new immutable
// snapshot tagged with that round; each round gets exactly one snapshot.
func (c *Coordinator) publishStandingsLocked(ctx context.Context) error {
	results, err := c.results.ListByLeague(ctx, c.league.ID)
	if err != nil {
		return fmt.Errorf("listing results: %w", err)
	}

	tallies := make(map[string]*playerTally)
	get := func(id string) *playerTally {
		t, ok := tallies[id]
		if !ok {
			t = &playerTally{playerID: id}
			tallies[id] = t
		}
		return t
	}

	allMatches, err := c.matches.ListByLeague(ctx, c.league.ID)
	if err != nil {
		return fmt.Errorf("listing matches: %w", err)
	}
	byID := make(map[uuid.UUID]db.Match, len(allMatches))
	maxRound, openRound := 0, 0
	for _, m := range allMatches {
		byID[m.ID] = m
		if m.RoundIndex > maxRound {
			maxRound = m.RoundIndex
		}
		if !isTerminal(m.Status) && (openRound == 0 || m.RoundIndex < openRound) {
			openRound = m.RoundIndex
		}
	}
	completed := maxRound
	if openRound > 0 {
		completed = openRound - 1
	}
	if completed == 0 {
		return nil
	}
	if latest, err := c.standings.GetLatest(ctx, c.league.ID); err == nil && latest.RoundIndex >= completed {
		return nil
	}

	for _, r := range results {
		m, ok := byID[r.MatchID]
		if !ok {
			continue
		}
		a, b := get(m.PlayerA), get(m.PlayerB)
		a.points += r.PointsA
		b.points += r.PointsB
		a.pointsFor += r.PointsA
		a.pointsAgainst += r.PointsB
		b.pointsFor += r.PointsB
		b.pointsAgainst += r.PointsA
		tallyOutcome(a, r.OutcomeA)
		tallyOutcome(b, r.OutcomeB)
	}

	list := make([]playerTally, 0, len(tallies))
	for _, t := range tallies {
		list = append(list, *t)
	}
	rows := computeStandings(list)

	encoded, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding standings rows: %w", err)
	}
	if err := c.standings.Create(ctx, &db.StandingsSnapshot{
		LeagueID: c.league.ID, RoundIndex: completed, Rows: string(encoded),
	}); err != nil {
		return err
	}

	if c.hub != nil {
		topic := "league:" + c.league.ID.String()
		c.hub.Publish(topic, websocket.Message{
			Type:  websocket.MsgStandingsPublished,
			Topic: topic,
			Payload: protocol.StandingsResponsePayload{
				RoundID: completed,
				Rows:    standingsRowsToPayload(rows),
			},
		})
	}
	return nil
}

// standingsRowsToPayload converts the internal standings representation
// into its wire shape, the same conversion QueryStandings' caller
// (internal/api) applies to the HTTP response.
func standingsRowsToPayload(rows []StandingsRow) []protocol.StandingsRow {
	out := make([]protocol.StandingsRow, len(rows))
	for i, row := range rows {
		out[i] = protocol.StandingsRow{
			Rank: row.Rank, PlayerID: row.PlayerID, Points: row.Points,
			Wins: row.Wins, Losses: row.Losses, Draws: row.Draws, PointDiff: row.PointDiff,
		}
	}
	return out
}

func tallyOutcome(t *playerTally, outcome string) {
	switch outcome {
	case db.OutcomeWin:
		t.wins++
	case db.OutcomeDraw:
		t.draws++
	case db.OutcomeLoss:
		t.losses++
	}
}

// sweepStaleMatchesLocked marks any ASSIGNED or IN_PROGRESS match whose referee has
// gone silent for longer than the manager-side ceiling as ERRORED, freeing
// its referee for reassignment after the configured cool-down (Open
// Question 3). This is a coarse backstop: well-behaved referees always
// resolve their own timeouts and report FORFEITED themselves first.
func (c *Coordinator) sweepStaleMatchesLocked(ctx context.Context) {
	const ceiling = 10 * time.Minute
	now := c.clock.Now()
	for matchID, assignedAt := range c.assignedAt {
		if now.Sub(assignedAt) < ceiling {
			continue
		}
		match, err := c.matches.GetByID(ctx, matchID)
		if err != nil {
			delete(c.assignedAt, matchID)
			continue
		}
		match.Status = db.MatchErrored
		if err := c.matches.Update(ctx, match); err != nil {
			c.logger.Warn("failed to mark stale match errored", zap.String("match_id", matchID.String()), zap.Error(err))
			continue
		}
		delete(c.assignedAt, matchID)
		if c.metrics != nil {
			c.metrics.MatchesByStatus.WithLabelValues(db.MatchErrored).Inc()
		}
		c.idleReferees = append(c.idleReferees, idleReferee{
			agentID: match.RefereeID, endpoint: c.refereeEndpoint[match.RefereeID], idleSince: now, errored: true,
		})
		c.logger.Warn("match marked ERRORED after silence", zap.String("match_id", matchID.String()), zap.String("referee_id", match.RefereeID))
	}
}

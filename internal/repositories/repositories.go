package repositories

import (
	"context"

	"github.com/agentleague/league/internal/db"
	"github.com/google/uuid"
)

// ListOptions contains common pagination options for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// -----------------------------------------------------------------------------
// LeagueRepository
// -----------------------------------------------------------------------------

type LeagueRepository interface {
	Create(ctx context.Context, league *db.League) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.League, error)
	// GetCurrent returns the single non-ABORTED, non-COMPLETED league, if any.
	GetCurrent(ctx context.Context) (*db.League, error)
	Update(ctx context.Context, league *db.League) error
}

// -----------------------------------------------------------------------------
// AgentRepository
// -----------------------------------------------------------------------------

type AgentRepository interface {
	Create(ctx context.Context, agent *db.Agent) error
	GetByIdentity(ctx context.Context, leagueID uuid.UUID, kind, agentID string) (*db.Agent, error)
	Update(ctx context.Context, agent *db.Agent) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListByLeague(ctx context.Context, leagueID uuid.UUID, kind string) ([]db.Agent, error)
	CountByLeague(ctx context.Context, leagueID uuid.UUID, kind string) (int64, error)
}

// -----------------------------------------------------------------------------
// TokenRepository
// -----------------------------------------------------------------------------

type TokenRepository interface {
	Create(ctx context.Context, token *db.Token) error
	// RevokeByAgent marks every live token for (leagueID, kind, agentID)
	// revoked and returns the jtis it revoked, so a caller holding an
	// in-memory denylist (auth.TokenManager) can revoke the same jtis
	// there without waiting for a restart's LoadRevoked to catch up.
	RevokeByAgent(ctx context.Context, leagueID uuid.UUID, kind, agentID string) ([]string, error)
	RevokeByJTI(ctx context.Context, jti string) error
	// RevokeAllForLeague marks every still-live token for leagueID revoked
	// and returns their jtis, for a full league shutdown.
	RevokeAllForLeague(ctx context.Context, leagueID uuid.UUID) ([]string, error)
	ListRevokedJTIs(ctx context.Context) ([]string, error)
}

// -----------------------------------------------------------------------------
// RoundRepository
// -----------------------------------------------------------------------------

type RoundRepository interface {
	Create(ctx context.Context, round *db.Round) error
	GetByIndex(ctx context.Context, leagueID uuid.UUID, index int) (*db.Round, error)
	Update(ctx context.Context, round *db.Round) error
	ListByLeague(ctx context.Context, leagueID uuid.UUID) ([]db.Round, error)
}

// -----------------------------------------------------------------------------
// MatchRepository
// -----------------------------------------------------------------------------

type MatchRepository interface {
	Create(ctx context.Context, match *db.Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Match, error)
	Update(ctx context.Context, match *db.Match) error
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]db.Match, error)
	ListByLeague(ctx context.Context, leagueID uuid.UUID) ([]db.Match, error)
	ListPending(ctx context.Context, leagueID uuid.UUID) ([]db.Match, error)
	ListByReferee(ctx context.Context, leagueID uuid.UUID, refereeID string, statuses []string) ([]db.Match, error)
}

// -----------------------------------------------------------------------------
// ResultRepository
// -----------------------------------------------------------------------------

type ResultRepository interface {
	Create(ctx context.Context, result *db.Result) error
	GetByMatch(ctx context.Context, matchID uuid.UUID) (*db.Result, error)
	ListByLeague(ctx context.Context, leagueID uuid.UUID) ([]db.Result, error)
}

// -----------------------------------------------------------------------------
// StandingsRepository
// -----------------------------------------------------------------------------

type StandingsRepository interface {
	Create(ctx context.Context, snapshot *db.StandingsSnapshot) error
	GetLatest(ctx context.Context, leagueID uuid.UUID) (*db.StandingsSnapshot, error)
}

// -----------------------------------------------------------------------------
// ConversationRepository
// -----------------------------------------------------------------------------

type ConversationRepository interface {
	// UpsertSeq creates the conversation row on first sight and otherwise
	// advances LastMessageSeq only if seq is greater, returning the
	// previously recorded value so callers can reject out-of-order
	// message_seq values without the rejected value corrupting the
	// high-water mark.
	UpsertSeq(ctx context.Context, conversationID string, seq int) (previous int, err error)

	// GetReplay returns the cached request hash and response payload for a
	// registration previously accepted under conversationID, and whether
	// anything was cached at all.
	GetReplay(ctx context.Context, conversationID string) (requestHash string, responsePayload []byte, found bool, err error)

	// SaveReplay caches the accepted response for a registration request,
	// creating the conversation row if this is the first message seen
	// under conversationID.
	SaveReplay(ctx context.Context, conversationID, requestHash string, responsePayload []byte) error
}

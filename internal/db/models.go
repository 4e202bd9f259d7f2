package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// base contains the common fields shared by all models.
// ID uses UUID v7 (time-ordered) for efficient B-tree indexing and natural
// chronological ordering without a separate created_at sort. CreatedAt and
// UpdatedAt are managed automatically by GORM.
type base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a new UUID v7 if the ID is not already set.
// This ensures every record has a valid time-ordered ID before insertion.
func (b *base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// -----------------------------------------------------------------------------
// League
// -----------------------------------------------------------------------------

// League status values. Transitions only flow forward in this order, with
// a universal error branch to Aborted from any non-terminal status.
const (
	LeagueInit         = "INIT"
	LeagueRegistration = "REGISTRATION"
	LeagueScheduling   = "SCHEDULING"
	LeagueActive       = "ACTIVE"
	LeagueCompleted    = "COMPLETED"
	LeagueAborted      = "ABORTED"
)

// League is the single tournament owned by a Manager process. Exactly one
// row is expected to be non-terminal at a time; the coordinator enforces
// that invariant, not the schema.
type League struct {
	base
	Status                string `gorm:"not null;default:'INIT'"`
	GameType              string `gorm:"not null"`
	MinReferees           int    `gorm:"not null;default:1"`
	MinPlayers            int    `gorm:"not null;default:2"`
	RegistrationDeadline  *time.Time
	ReassignmentCooldownS int `gorm:"not null;default:30"`
}

// -----------------------------------------------------------------------------
// Agents (referees and players)
// -----------------------------------------------------------------------------

const (
	AgentKindReferee = "referee"
	AgentKindPlayer  = "player"

	AgentStatusInit       = "INIT"
	AgentStatusRegistered = "REGISTERED"
	AgentStatusActive     = "ACTIVE"
	AgentStatusSuspended  = "SUSPENDED"
	AgentStatusShutdown   = "SHUTDOWN"
)

// Agent is a registered referee or player. It is keyed externally by
// AgentID (the string the protocol layer parses out of envelope.sender),
// not by the surrogate UUID primary key; (LeagueID, Kind, AgentID) is
// the invariant unique triple named in section 3.
type Agent struct {
	base
	LeagueID     uuid.UUID `gorm:"type:text;not null;index:idx_agent_identity,unique"`
	Kind         string    `gorm:"not null;index:idx_agent_identity,unique"`
	AgentID      string    `gorm:"not null;index:idx_agent_identity,unique"`
	Status       string    `gorm:"not null;default:'INIT'"`
	Endpoint     string    `gorm:"not null"`
	RegisteredAt time.Time `gorm:"not null"`
}

// -----------------------------------------------------------------------------
// Auth tokens
// -----------------------------------------------------------------------------

// Token binds an opaque auth_token (stored as its JWT ID, never the raw
// signed string) to the (league_id, kind, agent_id) triple it authorizes.
// Invariant: at most one live (RevokedAt IS NULL) token per agent.
type Token struct {
	base
	LeagueID  uuid.UUID `gorm:"type:text;not null;index"`
	Kind      string    `gorm:"not null"`
	AgentID   string    `gorm:"not null"`
	JTI       string    `gorm:"not null;uniqueIndex"`
	IssuedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
}

// -----------------------------------------------------------------------------
// Rounds & matches
// -----------------------------------------------------------------------------

const (
	RoundPending   = "PENDING"
	RoundAnnounced = "ANNOUNCED"
	RoundCompleted = "COMPLETED"

	MatchPending    = "PENDING"
	MatchAssigned   = "ASSIGNED"
	MatchInProgress = "IN_PROGRESS"
	MatchCompleted  = "COMPLETED"
	MatchForfeited  = "FORFEITED"
	MatchErrored    = "ERRORED"
)

// Round is one pass of the round-robin schedule. Index is the monotonic
// round number named in section 3 (>= 1); the surrogate ID exists only
// because base embeds one.
type Round struct {
	base
	LeagueID   uuid.UUID `gorm:"type:text;not null;index:idx_round_identity,unique"`
	RoundIndex int       `gorm:"not null;index:idx_round_identity,unique"`
	Status     string    `gorm:"not null;default:'PENDING'"`
}

// Match is one scheduled game within a round. PlayerA is always the
// lexicographically lower player_id, per the fixed home/away rule.
// (LeagueID, PlayerA, PlayerB) is unique: each unordered pair plays once
// across the whole league, enforced here since PlayerA < PlayerB always.
type Match struct {
	base
	LeagueID   uuid.UUID `gorm:"type:text;not null;index:idx_match_pair,unique"`
	RoundID    uuid.UUID `gorm:"type:text;not null;index"`
	RoundIndex int       `gorm:"not null"`
	PlayerA    string    `gorm:"not null;index:idx_match_pair,unique"`
	PlayerB    string    `gorm:"not null;index:idx_match_pair,unique"`
	GameType   string    `gorm:"not null"`
	RefereeID  string    `gorm:"default:''"`
	Status     string    `gorm:"not null;default:'PENDING'"`
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

const (
	OutcomeWin  = "WIN"
	OutcomeLoss = "LOSS"
	OutcomeDraw = "DRAW"
)

// Result is the single accepted outcome of a match. GameMetadata carries
// the adapter's opaque final-state snapshot for audit/display purposes.
type Result struct {
	base
	MatchID      uuid.UUID `gorm:"type:text;not null;uniqueIndex"`
	LeagueID     uuid.UUID `gorm:"type:text;not null;index"`
	OutcomeA     string    `gorm:"not null"`
	OutcomeB     string    `gorm:"not null"`
	PointsA      int       `gorm:"not null"`
	PointsB      int       `gorm:"not null"`
	GameMetadata string    `gorm:"type:text"`
}

// -----------------------------------------------------------------------------
// Standings
// -----------------------------------------------------------------------------

// StandingsSnapshot is one immutable, round-scoped standings publication.
// Rows is the JSON-encoded ordered list of per-player standings entries.
// It is kept as a blob rather than normalized rows because the ordering
// itself is the published artifact; re-deriving it from Result rows at
// read time would risk drifting from what was actually published.
type StandingsSnapshot struct {
	base
	LeagueID   uuid.UUID `gorm:"type:text;not null;index:idx_snapshot_round,unique"`
	RoundIndex int       `gorm:"not null;index:idx_snapshot_round,unique"`
	Rows       string    `gorm:"type:text;not null"`
}

// -----------------------------------------------------------------------------
// Conversations (audit correlation)
// -----------------------------------------------------------------------------

// Conversation tracks one request/response exchange for message_seq
// ordering enforcement and registration-replay caching. It is consulted by
// protocol bookkeeping only, never for business-state decisions.
//
// RequestHash/ResponsePayload cache the first accepted REGISTER_REFEREE or
// REGISTER_PLAYER request seen for this conversation_id, so a retried
// registration with an identical payload gets back the original
// auth_token instead of a fresh one (Issue mints a new jti every call) or
// a spurious DUPLICATE_ID.
type Conversation struct {
	base
	ConversationID  string `gorm:"not null;uniqueIndex"`
	LastMessageSeq  int    `gorm:"not null;default:0"`
	RequestHash     string `gorm:"not null;default:''"`
	ResponsePayload string `gorm:"type:text;not null;default:''"`
}

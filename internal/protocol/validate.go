package protocol

import (
	"fmt"
	"time"
)

// TokenBinding is what a successfully verified auth_token resolves to.
type TokenBinding struct {
	LeagueID string
	Kind     SenderKind
	AgentID  string
}

// TokenVerifier resolves an auth_token to its binding. Implemented by
// internal/auth so this package stays free of persistence concerns.
type TokenVerifier interface {
	Verify(token string) (TokenBinding, error)
}

// ContextChecker validates that a contextual identifier (match_id, etc.)
// actually belongs to the sender, per validation step 6. Implemented by
// the manager/referee coordinators, which own that state.
type ContextChecker interface {
	// CheckContext is called only for message types that carry a match_id;
	// it must confirm the match belongs to the sender's (kind, agent_id).
	CheckContext(binding TokenBinding, env Envelope) error
}

// SeqChecker enforces the per-conversation message_seq ordering guarantee:
// within a conversation_id, message_seq must strictly increase. Implemented
// by the manager coordinator, which owns the conversation ledger.
type SeqChecker interface {
	// CheckSeq records seq against conversationID and reports an error if
	// it does not strictly exceed the last seq recorded for that
	// conversation_id.
	CheckSeq(conversationID string, seq int) error
}

// requiresAuthToken reports whether msgType requires a live auth_token.
// Every message type except the two registration requests is
// post-registration.
func requiresAuthToken(t MessageType) bool {
	return t != MsgRegisterReferee && t != MsgRegisterPlayer
}

// requiresLeagueID reports whether msgType is a league-scoped operation.
func requiresLeagueID(t MessageType) bool {
	switch t {
	case MsgRegistrationResp,
		MsgRoundAnnounce, MsgResultReport, MsgResultAck,
		MsgQueryStandings, MsgStandingsResponse, MsgLeagueAdvance:
		return true
	default:
		return false
	}
}

// requiresMatchLifecycle reports whether msgType needs round_id/match_id.
func requiresMatchLifecycle(t MessageType) bool {
	switch t {
	case MsgMatchAssign, MsgGameInvite, MsgInviteAccept, MsgInviteDecline,
		MsgMoveRequest, MsgMoveResponse, MsgGameOver, MsgResultReport, MsgResultAck:
		return true
	default:
		return false
	}
}

// requiresGameType reports whether msgType needs game_type.
func requiresGameType(t MessageType) bool {
	switch t {
	case MsgMatchAssign, MsgGameInvite:
		return true
	default:
		return false
	}
}

// Validator runs the fail-fast, ordered envelope validation chain.
// Each step's failure short-circuits the remaining steps.
type Validator struct {
	Clock       Clock
	ClockSkew   time.Duration
	Tokens      TokenVerifier
	AuthEnabled bool

	// Seq, when non-nil, enforces message_seq ordering per conversation_id.
	// Left nil on the referee/player validators, which don't own a
	// conversation ledger; set on the manager's validator after its
	// Coordinator is constructed.
	Seq SeqChecker
}

// NewValidator builds a Validator with the given clock skew tolerance
// (default 120s if skew <= 0) and token verifier.
func NewValidator(clock Clock, skew time.Duration, tokens TokenVerifier, authEnabled bool) *Validator {
	if skew <= 0 {
		skew = 120 * time.Second
	}
	return &Validator{Clock: clock, ClockSkew: skew, Tokens: tokens, AuthEnabled: authEnabled}
}

// Result is the outcome of a successful validation pass: the parsed
// envelope's sender identity, and the resolved token binding (zero value
// if the message type is pre-registration or auth is disabled).
type Result struct {
	Kind    SenderKind
	AgentID string
	Binding TokenBinding
}

// Validate runs steps 2-6 of the ordered chain (step 1, JSON-RPC shape, is
// the caller's responsibility — see internal/api, which must reject
// malformed JSON-RPC before ever constructing an Envelope to validate).
func (v *Validator) Validate(env Envelope, checker ContextChecker) (Result, error) {
	// Step 2: envelope shape and enumerated values.
	if env.Protocol != ProtocolVersion {
		return Result{}, fmt.Errorf("%w: protocol must be %q, got %q", ErrBadEnvelope, ProtocolVersion, env.Protocol)
	}
	if !knownMessageTypes[env.MessageType] {
		return Result{}, fmt.Errorf("%w: unknown message_type %q", ErrBadEnvelope, env.MessageType)
	}
	if env.ConversationID == "" {
		return Result{}, fmt.Errorf("%w: conversation_id required", ErrBadEnvelope)
	}
	if env.MessageSeq <= 0 {
		return Result{}, fmt.Errorf("%w: message_seq must be a positive integer", ErrBadEnvelope)
	}
	if v.Seq != nil {
		if err := v.Seq.CheckSeq(env.ConversationID, env.MessageSeq); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrSeqOrder, err)
		}
	}

	// Step 3: timestamp parseable, UTC, within configured skew.
	ts, err := env.ParsedTimestamp()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	now := v.Clock.Now()
	delta := now.Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	if delta > v.ClockSkew {
		return Result{}, fmt.Errorf("%w: timestamp %s outside %s of receiver clock", ErrClockSkew, ts, v.ClockSkew)
	}

	// Step 4: sender format parse.
	kind, agentID, ok := env.ParsedSender()
	if !ok {
		return Result{}, fmt.Errorf("%w: cannot parse sender %q", ErrBadSender, env.Sender)
	}

	res := Result{Kind: kind, AgentID: agentID}

	// Contextual field presence, folded into step 2/6 per message type.
	if requiresLeagueID(env.MessageType) && env.LeagueID == "" {
		return Result{}, fmt.Errorf("%w: league_id required for %s", ErrBadEnvelope, env.MessageType)
	}
	if requiresMatchLifecycle(env.MessageType) && (env.RoundID == 0 || env.MatchID == "") {
		return Result{}, fmt.Errorf("%w: round_id and match_id required for %s", ErrBadEnvelope, env.MessageType)
	}
	if requiresGameType(env.MessageType) && env.GameType == "" {
		return Result{}, fmt.Errorf("%w: game_type required for %s", ErrBadEnvelope, env.MessageType)
	}

	if !v.AuthEnabled {
		return res, nil
	}

	// Step 5: auth_token lookup, must be live and bound to (kind, agent_id).
	if requiresAuthToken(env.MessageType) {
		if env.AuthToken == "" {
			return Result{}, ErrTokenMissing
		}
		binding, err := v.Tokens.Verify(env.AuthToken)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		if binding.Kind != kind || binding.AgentID != agentID {
			return Result{}, fmt.Errorf("%w: token bound to %s:%s, sender is %s:%s", ErrTokenInvalid, binding.Kind, binding.AgentID, kind, agentID)
		}
		if requiresLeagueID(env.MessageType) && binding.LeagueID != env.LeagueID {
			return Result{}, fmt.Errorf("%w: token bound to league %s, envelope league_id %s", ErrTokenInvalid, binding.LeagueID, env.LeagueID)
		}
		res.Binding = binding

		// Step 6: contextual identifier consistency (e.g. match ownership).
		if checker != nil && requiresMatchLifecycle(env.MessageType) {
			if err := checker.CheckContext(binding, env); err != nil {
				return Result{}, fmt.Errorf("%w: %v", ErrContextMismatch, err)
			}
		}
	}

	return res, nil
}

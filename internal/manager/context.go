package manager

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentleague/league/internal/protocol"
)

// CheckContext implements protocol.ContextChecker for the Manager: it
// confirms a match_id carried by an inbound envelope actually belongs to
// the sender, per validation step 6. This is a plain repository read, safe
// to call outside the coordinator's single-writer goroutine.
func (c *Coordinator) CheckContext(binding protocol.TokenBinding, env protocol.Envelope) error {
	matchID, err := uuid.Parse(env.MatchID)
	if err != nil {
		return fmt.Errorf("match_id is not a valid identifier")
	}
	match, err := c.matches.GetByID(context.Background(), matchID)
	if err != nil {
		return fmt.Errorf("no such match")
	}
	switch binding.Kind {
	case protocol.SenderReferee:
		if match.RefereeID != binding.AgentID {
			return fmt.Errorf("match %s is not assigned to referee %s", env.MatchID, binding.AgentID)
		}
	case protocol.SenderPlayer:
		if match.PlayerA != binding.AgentID && match.PlayerB != binding.AgentID {
			return fmt.Errorf("match %s does not include player %s", env.MatchID, binding.AgentID)
		}
	}
	return nil
}

// CheckSeq implements protocol.SeqChecker for the Manager: it enforces that
// message_seq never regresses within a conversation_id, per the wire's
// ordering guarantee. A resend of the same message_seq (a caller retrying
// after a dropped response) is accepted here and left to the operation's
// own idempotency handling downstream; only a seq strictly less than one
// already recorded is out of order. Backed by the conversations table so
// the check survives restarts; like CheckContext, this is a plain
// repository round-trip and safe to call outside the coordinator's
// single-writer goroutine.
func (c *Coordinator) CheckSeq(conversationID string, seq int) error {
	if c.conversations == nil {
		return nil
	}
	previous, err := c.conversations.UpsertSeq(context.Background(), conversationID, seq)
	if err != nil {
		return fmt.Errorf("recording message_seq: %w", err)
	}
	if seq < previous {
		return fmt.Errorf("message_seq %d is behind last recorded %d for conversation %s", seq, previous, conversationID)
	}
	return nil
}

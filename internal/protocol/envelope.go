// Package protocol implements the league.v2 envelope and the JSON-RPC 2.0
// transport it rides on. Every inbound HTTP request to an agent's /mcp
// endpoint is a JSON-RPC 2.0 object whose params carry an Envelope and an
// opaque Payload; this package defines both shapes and the fail-fast
// validation chain described by the protocol (envelope shape, timestamp
// skew, sender binding, token liveness, contextual identifier consistency).
package protocol

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of envelope being carried, per the wire
// enumeration. It is a closed set — handlers switch on it exhaustively.
type MessageType string

const (
	MsgRegisterReferee   MessageType = "REGISTER_REFEREE"
	MsgRegisterPlayer    MessageType = "REGISTER_PLAYER"
	MsgRegistrationResp  MessageType = "REGISTRATION_RESPONSE"
	MsgRoundAnnounce     MessageType = "ROUND_ANNOUNCE"
	MsgMatchAssign       MessageType = "MATCH_ASSIGN"
	MsgGameInvite        MessageType = "GAME_INVITE"
	MsgInviteAccept      MessageType = "INVITE_ACCEPT"
	MsgInviteDecline     MessageType = "INVITE_DECLINE"
	MsgMoveRequest       MessageType = "MOVE_REQUEST"
	MsgMoveResponse      MessageType = "MOVE_RESPONSE"
	MsgGameOver          MessageType = "GAME_OVER"
	MsgResultReport      MessageType = "RESULT_REPORT"
	MsgResultAck         MessageType = "RESULT_ACK"
	MsgQueryStandings    MessageType = "QUERY_STANDINGS"
	MsgStandingsResponse MessageType = "STANDINGS_RESPONSE"
	MsgError             MessageType = "ERROR"
	// MsgLeagueAdvance is the administrative escalation hatch that forces
	// REGISTRATION -> SCHEDULING without waiting on a deadline or
	// count-based policy to fire.
	MsgLeagueAdvance MessageType = "LEAGUE_ADVANCE"
)

// knownMessageTypes is used by envelope shape validation to reject unknown
// message_type values up front (step 2 of the validation order).
var knownMessageTypes = map[MessageType]bool{
	MsgRegisterReferee: true, MsgRegisterPlayer: true, MsgRegistrationResp: true,
	MsgRoundAnnounce: true, MsgMatchAssign: true, MsgGameInvite: true,
	MsgInviteAccept: true, MsgInviteDecline: true, MsgMoveRequest: true,
	MsgMoveResponse: true, MsgGameOver: true, MsgResultReport: true,
	MsgResultAck: true, MsgQueryStandings: true, MsgStandingsResponse: true,
	MsgError: true, MsgLeagueAdvance: true,
}

// SenderKind is the parsed kind portion of an envelope's sender field.
type SenderKind string

const (
	SenderManager SenderKind = "league_manager"
	SenderReferee SenderKind = "referee"
	SenderPlayer  SenderKind = "player"
)

// ProtocolVersion is the only accepted value of Envelope.Protocol.
const ProtocolVersion = "league.v2"

// Envelope is the wrapper object inside params carrying protocol, sender,
// timestamps, and correlation IDs.
type Envelope struct {
	Protocol       string      `json:"protocol"`
	MessageType    MessageType `json:"message_type"`
	Sender         string      `json:"sender"`
	Timestamp      string      `json:"timestamp"`
	ConversationID string      `json:"conversation_id"`
	MessageSeq     int         `json:"message_seq,omitempty"`

	// Contextual fields, required only for specific message types (step 6).
	AuthToken string `json:"auth_token,omitempty"`
	LeagueID  string `json:"league_id,omitempty"`
	RoundID   int    `json:"round_id,omitempty"`
	MatchID   string `json:"match_id,omitempty"`
	GameType  string `json:"game_type,omitempty"`
}

// ParsedTimestamp parses Timestamp as RFC3339 (accepts both "Z" and
// "+00:00" UTC forms).
func (e Envelope) ParsedTimestamp() (time.Time, error) {
	return time.Parse(time.RFC3339, e.Timestamp)
}

// ParsedSender splits Sender into its kind and agent_id components.
// "league_manager" has no agent_id. "referee:<id>" and "player:<id>" do.
func (e Envelope) ParsedSender() (kind SenderKind, agentID string, ok bool) {
	if e.Sender == string(SenderManager) {
		return SenderManager, "", true
	}
	for _, prefix := range []SenderKind{SenderReferee, SenderPlayer} {
		p := string(prefix) + ":"
		if len(e.Sender) > len(p) && e.Sender[:len(p)] == p {
			return prefix, e.Sender[len(p):], true
		}
	}
	return "", "", false
}

// Message is the full params object of a league.handle JSON-RPC call:
// an envelope plus an opaque, message-type-specific payload.
type Message struct {
	Envelope Envelope        `json:"envelope"`
	Payload  json.RawMessage `json:"payload"`
}

// Clock abstracts "now" so validation and tests can use a deterministic
// clock instead of time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Package websocket implements the optional real-time pub/sub feed that
// pushes league events (round announcements, standings publications) to
// connected observers. It uses gorilla/websocket under the hood and
// exposes a topic-based broadcast API consumed by the manager coordinator.
//
// This feed is an observability convenience, not part of the protocol:
// referees and players still learn of rounds and standings exclusively
// through ROUND_ANNOUNCE/STANDINGS_RESPONSE envelopes over /mcp.
//
// Topic naming convention:
//
//	league:<league_id>  — round and standings events for one league
package websocket

// MessageType identifies the kind of event carried by a Message.
type MessageType string

const (
	// MsgRoundAnnounced is sent when the manager announces a new round.
	MsgRoundAnnounced MessageType = "round.announced"

	// MsgStandingsPublished is sent when a new standings snapshot is written.
	MsgStandingsPublished MessageType = "standings.published"

	// MsgLeagueStatus is sent when the league's status transitions.
	MsgLeagueStatus MessageType = "league.status"

	// MsgPing names a ping message type. The hub never sends it; keepalive
	// uses WebSocket ping frames from the client's write pump.
	MsgPing MessageType = "ping"
)

// Message is the envelope for every WebSocket frame sent to observers.
//
// JSON example:
//
//	{"type":"standings.published","topic":"league:018f...","payload":{"round_index":3,"rows":[...]}}
type Message struct {
	Type    MessageType `json:"type"`
	Topic   string      `json:"topic"`
	Payload any         `json:"payload"`
}

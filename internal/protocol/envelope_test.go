package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEnvelopeRoundTripIsIdentity covers the "envelope serialize/deserialize
// is the identity on all valid envelopes" property.
func TestEnvelopeRoundTripIsIdentity(t *testing.T) {
	original := Envelope{
		Protocol:       ProtocolVersion,
		MessageType:    MsgMoveRequest,
		Sender:         "referee:R1",
		Timestamp:      "2026-07-29T12:00:00Z",
		ConversationID: "8f14e45f-ceea-367a-9a36-dedd4bea2543",
		MessageSeq:     3,
		AuthToken:      "tok-abc",
		LeagueID:       "league-1",
		RoundID:        2,
		MatchID:        "match-9",
		GameType:       "tictactoe",
	}

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, original, decoded)

	// A second round through the wire is still the identity.
	encodedAgain, err := json.Marshal(decoded)
	require.NoError(t, err)
	require.JSONEq(t, string(encoded), string(encodedAgain))
}

func TestEnvelopeParsedTimestampAcceptsZAndOffsetForms(t *testing.T) {
	zForm := Envelope{Timestamp: "2026-07-29T12:00:00Z"}
	offsetForm := Envelope{Timestamp: "2026-07-29T12:00:00+00:00"}

	tz, err := zForm.ParsedTimestamp()
	require.NoError(t, err)
	to, err := offsetForm.ParsedTimestamp()
	require.NoError(t, err)
	require.True(t, tz.Equal(to))
}

func TestEnvelopeParsedSenderSplitsKindAndAgentID(t *testing.T) {
	cases := []struct {
		sender      string
		wantKind    SenderKind
		wantAgentID string
		wantOK      bool
	}{
		{"league_manager", SenderManager, "", true},
		{"referee:R1", SenderReferee, "R1", true},
		{"player:A", SenderPlayer, "A", true},
		{"bogus", "", "", false},
		{"referee:", "", "", false},
	}
	for _, c := range cases {
		kind, agentID, ok := Envelope{Sender: c.sender}.ParsedSender()
		require.Equal(t, c.wantOK, ok, c.sender)
		if c.wantOK {
			require.Equal(t, c.wantKind, kind, c.sender)
			require.Equal(t, c.wantAgentID, agentID, c.sender)
		}
	}
}

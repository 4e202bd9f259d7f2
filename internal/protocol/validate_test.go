package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

type stubTokens struct {
	bindings map[string]TokenBinding
}

func (s stubTokens) Verify(token string) (TokenBinding, error) {
	b, ok := s.bindings[token]
	if !ok {
		return TokenBinding{}, errors.New("no such token")
	}
	return b, nil
}

func baseEnvelope(now time.Time) Envelope {
	return Envelope{
		Protocol:       ProtocolVersion,
		MessageType:    MsgQueryStandings,
		Sender:         "referee:ref-1",
		Timestamp:      now.Format(time.RFC3339),
		ConversationID: "conv-1",
		MessageSeq:     1,
		AuthToken:      "tok-1",
		LeagueID:       "league-1",
	}
}

func TestValidateRejectsNonPositiveMessageSeq(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	v := NewValidator(fixedClock{now}, 0, stubTokens{}, true)
	env := baseEnvelope(now)
	env.MessageSeq = 0
	_, err := v.Validate(env, nil)
	require.ErrorIs(t, err, ErrBadEnvelope)
}

type stubSeq struct {
	last map[string]int
}

func (s stubSeq) CheckSeq(conversationID string, seq int) error {
	if prev, ok := s.last[conversationID]; ok && seq <= prev {
		return errors.New("out of order")
	}
	s.last[conversationID] = seq
	return nil
}

func TestValidateRejectsOutOfOrderMessageSeq(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	v := NewValidator(fixedClock{now}, 0, stubTokens{}, true)
	v.Seq = stubSeq{last: map[string]int{"conv-1": 5}}
	env := baseEnvelope(now)
	env.MessageSeq = 3
	_, err := v.Validate(env, nil)
	require.ErrorIs(t, err, ErrSeqOrder)
}

func TestValidateRejectsWrongProtocol(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	v := NewValidator(fixedClock{now}, 0, stubTokens{}, true)
	env := baseEnvelope(now)
	env.Protocol = "league.v1"
	_, err := v.Validate(env, nil)
	require.ErrorIs(t, err, ErrBadEnvelope)
}

func TestValidateRejectsUnknownMessageType(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	v := NewValidator(fixedClock{now}, 0, stubTokens{}, true)
	env := baseEnvelope(now)
	env.MessageType = "NOT_A_REAL_TYPE"
	_, err := v.Validate(env, nil)
	require.ErrorIs(t, err, ErrBadEnvelope)
}

func TestValidateRejectsStaleTimestamp(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	v := NewValidator(fixedClock{now}, 10*time.Second, stubTokens{}, true)
	env := baseEnvelope(now.Add(-time.Minute))
	_, err := v.Validate(env, nil)
	require.ErrorIs(t, err, ErrClockSkew)
}

func TestValidateRejectsMalformedSender(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	v := NewValidator(fixedClock{now}, 0, stubTokens{}, true)
	env := baseEnvelope(now)
	env.Sender = "referee-1"
	_, err := v.Validate(env, nil)
	require.ErrorIs(t, err, ErrBadSender)
}

func TestValidateRequiresTokenPostRegistration(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	v := NewValidator(fixedClock{now}, 0, stubTokens{}, true)
	env := baseEnvelope(now)
	env.AuthToken = ""
	_, err := v.Validate(env, nil)
	require.ErrorIs(t, err, ErrTokenMissing)
}

func TestValidateRejectsTokenBoundToDifferentSender(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	tokens := stubTokens{bindings: map[string]TokenBinding{
		"tok-1": {LeagueID: "league-1", Kind: SenderReferee, AgentID: "ref-2"},
	}}
	v := NewValidator(fixedClock{now}, 0, tokens, true)
	env := baseEnvelope(now)
	_, err := v.Validate(env, nil)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateAcceptsWellFormedMessage(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	tokens := stubTokens{bindings: map[string]TokenBinding{
		"tok-1": {LeagueID: "league-1", Kind: SenderReferee, AgentID: "ref-1"},
	}}
	v := NewValidator(fixedClock{now}, 0, tokens, true)
	env := baseEnvelope(now)
	res, err := v.Validate(env, nil)
	require.NoError(t, err)
	require.Equal(t, SenderReferee, res.Kind)
	require.Equal(t, "ref-1", res.AgentID)
}

func TestValidateSkipsTokenChecksWhenAuthDisabled(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	v := NewValidator(fixedClock{now}, 0, stubTokens{}, false)
	env := baseEnvelope(now)
	env.AuthToken = ""
	_, err := v.Validate(env, nil)
	require.NoError(t, err)
}

func TestValidateRegistrationDoesNotRequireToken(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	v := NewValidator(fixedClock{now}, 0, stubTokens{}, true)
	env := baseEnvelope(now)
	env.MessageType = MsgRegisterReferee
	env.AuthToken = ""
	_, err := v.Validate(env, nil)
	require.NoError(t, err)
}

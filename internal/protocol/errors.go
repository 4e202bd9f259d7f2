package protocol

import "errors"

// Sentinel errors returned internally by the validation chain before being
// translated into a LeagueError or RPCError at the HTTP boundary. Callers
// should use errors.Is for comparison.
var (
	ErrBadJSONRPC      = errors.New("protocol: malformed json-rpc request")
	ErrBadEnvelope     = errors.New("protocol: malformed or invalid envelope")
	ErrClockSkew       = errors.New("protocol: timestamp outside allowed clock skew")
	ErrBadSender       = errors.New("protocol: sender format invalid or mismatched")
	ErrTokenMissing    = errors.New("protocol: auth_token required but absent")
	ErrTokenInvalid    = errors.New("protocol: auth_token unknown, expired, or mismatched")
	ErrContextMismatch = errors.New("protocol: contextual identifier does not belong to sender")
	ErrSeqOrder        = errors.New("protocol: message_seq not strictly increasing for conversation_id")
)

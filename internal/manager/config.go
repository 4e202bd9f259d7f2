package manager

import "time"

// Config carries every recognized per-Manager option.
type Config struct {
	// GameType is the single game_type this league's matches are played
	// with (a league plays a single game across all its matches).
	GameType string

	// AuthEnabled gates auth_token validation; false is test-only,.
	AuthEnabled bool

	// MinPlayers and MinReferees gate close_registration eligibility.
	MinPlayers  int
	MinReferees int

	// RegistrationDeadline, if non-nil, is the wall-clock cutoff the
	// scheduler auto-closes registration at, once the min_* gate is
	// satisfied.
	RegistrationDeadline *time.Time

	// ReassignmentCooldown is how long the idle-referee admission path
	// waits before a referee whose last match ERRORED may be handed a new
	// assignment: allowed, but only after a cool-down.
	ReassignmentCooldown time.Duration

	// ClockSkew is the envelope timestamp tolerance, forwarded to
	// protocol.Validator.
	ClockSkew time.Duration

	// MaxConsecutiveAuthFailures is how many AUTH_INVALID rejections in a
	// row an agent may accrue before the coordinator suspends it: revokes
	// its token and marks it SUSPENDED. Zero disables suspension.
	MaxConsecutiveAuthFailures int
}

// DefaultConfig returns reasonable defaults for each option.
func DefaultConfig() Config {
	return Config{
		GameType:                   "tictactoe",
		AuthEnabled:                true,
		MinPlayers:                 2,
		MinReferees:                1,
		ReassignmentCooldown:       30 * time.Second,
		ClockSkew:                  120 * time.Second,
		MaxConsecutiveAuthFailures: 5,
	}
}

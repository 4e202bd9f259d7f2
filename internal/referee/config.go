package referee

import "time"

// Config carries the referee-side options.
type Config struct {
	AgentID         string
	Endpoint        string
	ManagerEndpoint string

	InviteTimeout time.Duration
	MoveTimeout   time.Duration
	MatchTimeout  time.Duration

	RetryMax     int
	RetryBackoff time.Duration
}

// DefaultConfig returns reasonable defaults for each option.
func DefaultConfig() Config {
	return Config{
		InviteTimeout: 10 * time.Second,
		MoveTimeout:   5 * time.Second,
		MatchTimeout:  5 * time.Minute,
		RetryMax:      3,
		RetryBackoff:  200 * time.Millisecond,
	}
}

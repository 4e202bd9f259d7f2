package manager

import (
	"encoding/json"
	"time"
)

// RegisterResult is returned by RegisterReferee/RegisterPlayer on success.
type RegisterResult struct {
	AuthToken string
	LeagueID  string
}

// PlayerOutcomeInput is one side of a reported result, as decoded from a
// RESULT_REPORT payload.
type PlayerOutcomeInput struct {
	PlayerID string
	Outcome  string // db.OutcomeWin | db.OutcomeLoss | db.OutcomeDraw
	Points   int
}

// ReportResultInput is the decoded body of a report_result command.
type ReportResultInput struct {
	MatchID      string
	PlayerA      PlayerOutcomeInput
	PlayerB      PlayerOutcomeInput
	Forfeited    bool
	GameMetadata json.RawMessage
}

// StandingsRow is one ranked entry of a standings query result.
type StandingsRow struct {
	Rank      int
	PlayerID  string
	Points    int
	Wins      int
	Losses    int
	Draws     int
	PointDiff int
}

// StandingsResult is returned by QueryStandings.
type StandingsResult struct {
	RoundIndex int
	Rows       []StandingsRow
}

// MatchSummary describes one scheduled match for a ROUND_ANNOUNCE payload.
type MatchSummary struct {
	MatchID  string
	PlayerA  string
	PlayerB  string
	Referee  string
	GameType string
}

// RoundAnnouncement is the decoded content of a ROUND_ANNOUNCE dispatch.
type RoundAnnouncement struct {
	RoundIndex int
	Matches    []MatchSummary
}

// idleReferee tracks a referee available for assignment and the time it
// last became idle; errored marks a referee freed by an ERRORED match, the
// only case ReassignmentCooldown is enforced for.
type idleReferee struct {
	agentID   string
	endpoint  string
	idleSince time.Time
	errored   bool
}

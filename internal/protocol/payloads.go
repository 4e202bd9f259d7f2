package protocol

// Payload shapes carried by Message.Payload for each message_type. Handlers
// unmarshal into the shape matching envelope.MessageType.

// RegisterRefereePayload is the payload of REGISTER_REFEREE.
type RegisterRefereePayload struct {
	AgentID  string `json:"agent_id"`
	Endpoint string `json:"endpoint"`
}

// RegisterPlayerPayload is the payload of REGISTER_PLAYER.
type RegisterPlayerPayload struct {
	AgentID  string `json:"agent_id"`
	Endpoint string `json:"endpoint"`
}

// RegistrationResponsePayload is the payload of REGISTRATION_RESPONSE.
type RegistrationResponsePayload struct {
	AuthToken string `json:"auth_token"`
	LeagueID  string `json:"league_id"`
}

// MatchSummary describes one match within a ROUND_ANNOUNCE payload.
type MatchSummary struct {
	MatchID  string   `json:"match_id"`
	Players  []string `json:"players"`
	Referee  string   `json:"referee"`
	GameType string   `json:"game_type"`
}

// RoundAnnouncePayload is the payload of ROUND_ANNOUNCE.
type RoundAnnouncePayload struct {
	RoundID int            `json:"round_id"`
	Matches []MatchSummary `json:"matches"`
}

// MatchAssignPayload is the payload of MATCH_ASSIGN, sent to a referee.
// Player endpoints are included because the referee drives GAME_INVITE
// directly to each player and has no other way to resolve agent_id to a
// reachable endpoint (a referee holds no global roster, per section 3).
type MatchAssignPayload struct {
	LeagueID        string `json:"league_id"`
	RoundID         int    `json:"round_id"`
	MatchID         string `json:"match_id"`
	PlayerA         string `json:"player_a"`
	PlayerAEndpoint string `json:"player_a_endpoint"`
	PlayerB         string `json:"player_b"`
	PlayerBEndpoint string `json:"player_b_endpoint"`
	GameType        string `json:"game_type"`
}

// GameInvitePayload is the payload of GAME_INVITE, sent to a player.
type GameInvitePayload struct {
	MatchID  string `json:"match_id"`
	GameType string `json:"game_type"`
	Opponent string `json:"opponent"`
	YourMark string `json:"your_mark"`
}

// InviteAcceptPayload is the payload of INVITE_ACCEPT.
type InviteAcceptPayload struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

// InviteDeclinePayload is the payload of INVITE_DECLINE.
type InviteDeclinePayload struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason,omitempty"`
}

// MoveRequestPayload is the payload of MOVE_REQUEST.
type MoveRequestPayload struct {
	MatchID  string  `json:"match_id"`
	Snapshot RawJSON `json:"snapshot"`
	Deadline string  `json:"deadline"`
}

// RawJSON is an alias kept distinct from json.RawMessage at this layer so
// callers don't need to import encoding/json just to build a payload.
type RawJSON = []byte

// MoveResponsePayload is the payload of MOVE_RESPONSE.
type MoveResponsePayload struct {
	MatchID  string  `json:"match_id"`
	PlayerID string  `json:"player_id"`
	Move     RawJSON `json:"move"`
}

// GameOverPayload is the payload of GAME_OVER, sent to both players.
type GameOverPayload struct {
	MatchID  string  `json:"match_id"`
	Outcome  string  `json:"outcome"`
	Snapshot RawJSON `json:"snapshot"`
}

// PlayerOutcome carries one player's outcome/points within a ResultReportPayload.
type PlayerOutcome struct {
	PlayerID string `json:"player_id"`
	Outcome  string `json:"outcome"`
	Points   int    `json:"points"`
}

// ResultReportPayload is the payload of RESULT_REPORT, sent by a referee.
type ResultReportPayload struct {
	MatchID      string        `json:"match_id"`
	PlayerA      PlayerOutcome `json:"player_a"`
	PlayerB      PlayerOutcome `json:"player_b"`
	Forfeited    bool          `json:"forfeited,omitempty"`
	GameMetadata RawJSON       `json:"game_metadata,omitempty"`
}

// ResultAckPayload is the payload of RESULT_ACK.
type ResultAckPayload struct {
	MatchID string `json:"match_id"`
}

// QueryStandingsPayload is the payload of QUERY_STANDINGS.
type QueryStandingsPayload struct{}

// StandingsRow is one ranked entry of a StandingsResponsePayload.
type StandingsRow struct {
	Rank      int    `json:"rank"`
	PlayerID  string `json:"player_id"`
	Points    int    `json:"points"`
	Wins      int    `json:"wins"`
	Losses    int    `json:"losses"`
	Draws     int    `json:"draws"`
	PointDiff int    `json:"point_diff"`
}

// StandingsResponsePayload is the payload of STANDINGS_RESPONSE.
type StandingsResponsePayload struct {
	RoundID int            `json:"round_id"`
	Rows    []StandingsRow `json:"rows"`
}

// LeagueAdvancePayload is the payload of LEAGUE_ADVANCE, the administrative
// escalation hatch that forces REGISTRATION -> SCHEDULING immediately.
type LeagueAdvancePayload struct{}

// MatchAssignAckPayload is the synchronous reply a referee gives the
// Manager for MATCH_ASSIGN: acceptance of the assignment, not the match's
// eventual result (that arrives later as a separate RESULT_REPORT call).
type MatchAssignAckPayload struct {
	MatchID string `json:"match_id"`
}

// GameOverAckPayload is a player's synchronous reply to GAME_OVER: a bare
// acknowledgement, since the match's outcome is already decided by the
// time GAME_OVER is sent.
type GameOverAckPayload struct {
	MatchID string `json:"match_id"`
}

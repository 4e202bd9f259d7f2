package manager

import "sort"

// playerTally accumulates one player's record across all accepted results,
// the raw material the standings engine sorts and ranks.
type playerTally struct {
	playerID      string
	points        int
	wins          int
	losses        int
	draws         int
	pointsFor     int
	pointsAgainst int
}

// pointDiff is the point_differential sort key.
func (t playerTally) pointDiff() int { return t.pointsFor - t.pointsAgainst }

// computeStandings sorts tallies by the deterministic key order of
// (points DESC, wins DESC, draws DESC, point_differential DESC, player_id
// ASC) and assigns dense ranks. Because player_id is the final tiebreaker
// and all player_ids are distinct, no two rows ever tie completely, so
// "dense ranks" here reduce to a plain 1..N sequence — documented as such
// since a literal reading of "dense rank" implies shared ranks on ties
// that structurally cannot occur with this key set.
func computeStandings(tallies []playerTally) []StandingsRow {
	sorted := make([]playerTally, len(tallies))
	copy(sorted, tallies)

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.points != b.points {
			return a.points > b.points
		}
		if a.wins != b.wins {
			return a.wins > b.wins
		}
		if a.draws != b.draws {
			return a.draws > b.draws
		}
		if a.pointDiff() != b.pointDiff() {
			return a.pointDiff() > b.pointDiff()
		}
		return a.playerID < b.playerID
	})

	rows := make([]StandingsRow, len(sorted))
	for i, t := range sorted {
		rows[i] = StandingsRow{
			Rank:      i + 1,
			PlayerID:  t.playerID,
			Points:    t.points,
			Wins:      t.wins,
			Losses:    t.losses,
			Draws:     t.draws,
			PointDiff: t.pointDiff(),
		}
	}
	return rows
}

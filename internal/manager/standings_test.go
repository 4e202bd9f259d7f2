package manager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeStandingsSortsByPointsThenTiebreakers(t *testing.T) {
	tallies := []playerTally{
		{playerID: "bob", points: 3, wins: 1, pointsFor: 2, pointsAgainst: 1},
		{playerID: "alice", points: 3, wins: 1, pointsFor: 3, pointsAgainst: 0},
		{playerID: "carol", points: 6, wins: 2},
	}

	rows := computeStandings(tallies)

	require.Equal(t, []string{"carol", "alice", "bob"}, []string{rows[0].PlayerID, rows[1].PlayerID, rows[2].PlayerID})
	require.Equal(t, 1, rows[0].Rank)
	require.Equal(t, 2, rows[1].Rank)
	require.Equal(t, 3, rows[2].Rank)
}

func TestComputeStandingsPlayerIDBreaksCompleteTies(t *testing.T) {
	tallies := []playerTally{
		{playerID: "zoe", points: 3, wins: 1},
		{playerID: "amy", points: 3, wins: 1},
	}
	rows := computeStandings(tallies)
	require.Equal(t, "amy", rows[0].PlayerID)
	require.Equal(t, "zoe", rows[1].PlayerID)
}

func TestComputeStandingsPointsSumAcrossAllRowsIsOrderIndependent(t *testing.T) {
	a := []playerTally{
		{playerID: "a", points: 3, pointsFor: 5, pointsAgainst: 2},
		{playerID: "b", points: 1, pointsFor: 2, pointsAgainst: 5},
	}
	b := []playerTally{a[1], a[0]}

	rowsA := computeStandings(a)
	rowsB := computeStandings(b)

	sumA, sumB := 0, 0
	for _, r := range rowsA {
		sumA += r.Points
	}
	for _, r := range rowsB {
		sumB += r.Points
	}
	require.Equal(t, sumA, sumB)
	require.Equal(t, rowsA, rowsB)
}

func TestPointDiffIsPointsForMinusPointsAgainst(t *testing.T) {
	tally := playerTally{pointsFor: 7, pointsAgainst: 3}
	require.Equal(t, 4, tally.pointDiff())
}

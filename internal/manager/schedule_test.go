package manager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateRoundRobinEvenPlayersEveryoneEveryRound(t *testing.T) {
	rounds := generateRoundRobin([]string{"d", "b", "c", "a"})
	require.Len(t, rounds, 3)
	for _, round := range rounds {
		require.Len(t, round, 2)
	}
}

func TestGenerateRoundRobinOddPlayersOneByePerRound(t *testing.T) {
	rounds := generateRoundRobin([]string{"a", "b", "c"})
	require.Len(t, rounds, 3)
	for _, round := range rounds {
		require.Len(t, round, 1)
	}
}

func TestGenerateRoundRobinPlayerAIsLexicographicallyLower(t *testing.T) {
	rounds := generateRoundRobin([]string{"zoe", "amy"})
	require.Len(t, rounds, 1)
	require.Equal(t, MatchPairing{PlayerA: "amy", PlayerB: "zoe"}, rounds[0][0])
}

func TestGenerateRoundRobinIsDeterministicRegardlessOfInputOrder(t *testing.T) {
	a := generateRoundRobin([]string{"alice", "bob", "carol", "dave"})
	b := generateRoundRobin([]string{"dave", "carol", "bob", "alice"})
	require.Equal(t, a, b)
}

func TestGenerateRoundRobinEveryPairMeetsExactlyOnce(t *testing.T) {
	players := []string{"a", "b", "c", "d", "e"}
	rounds := generateRoundRobin(players)

	seen := make(map[MatchPairing]int)
	for _, round := range rounds {
		for _, pairing := range round {
			seen[pairing]++
		}
	}

	expectedPairs := len(players) * (len(players) - 1) / 2
	require.Len(t, seen, expectedPairs)
	for pairing, count := range seen {
		require.Equalf(t, 1, count, "pairing %+v should occur exactly once", pairing)
	}
}

func TestGenerateRoundRobinSinglePlayerProducesNoRounds(t *testing.T) {
	require.Nil(t, generateRoundRobin([]string{"solo"}))
}

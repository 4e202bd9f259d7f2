package manager

import "sort"

// MatchPairing is one unordered pair produced by the round-robin
// generator, already normalized so PlayerA is the lexicographically lower
// id (the fixed home/away rule).
type MatchPairing struct {
	PlayerA string
	PlayerB string
}

// byeSlot is never a real player_id; it marks the sit-out slot introduced
// for odd player counts.
const byeSlot = ""

// generateRoundRobin produces the round-robin schedule for playerIDs using
// the circle method: fix index 0, rotate the remaining N-1 indices each
// round, pairing position i with position N-1-i. For odd N a bye slot is
// added; whichever player lands on the bye sits out that round.
//
// Determinism: playerIDs is sorted lexicographically before the
// circle method runs, so the same set of players always produces the same
// round ordering, the same intra-round match ordering, and the same
// home/away assignment, regardless of registration order.
func generateRoundRobin(playerIDs []string) [][]MatchPairing {
	players := make([]string, len(playerIDs))
	copy(players, playerIDs)
	sort.Strings(players)

	if len(players) < 2 {
		return nil
	}
	if len(players)%2 != 0 {
		players = append(players, byeSlot)
	}
	n := len(players)

	arr := make([]string, n)
	copy(arr, players)

	rounds := make([][]MatchPairing, 0, n-1)
	for r := 0; r < n-1; r++ {
		var round []MatchPairing
		for i := 0; i < n/2; i++ {
			a, b := arr[i], arr[n-1-i]
			if a == byeSlot || b == byeSlot {
				continue
			}
			if a > b {
				a, b = b, a
			}
			round = append(round, MatchPairing{PlayerA: a, PlayerB: b})
		}
		rounds = append(rounds, round)

		// Rotate: keep arr[0] fixed, shift arr[1:] one position to the
		// right, wrapping the last element to index 1.
		last := arr[n-1]
		for i := n - 1; i > 1; i-- {
			arr[i] = arr[i-1]
		}
		arr[1] = last
	}
	return rounds
}

package tictactoe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentleague/league/internal/game"
)

func marshalMove(t *testing.T, cell int) game.Move {
	t.Helper()
	b, err := json.Marshal(move{Cell: cell})
	require.NoError(t, err)
	return b
}

func TestInitialStatePlayerAMovesFirstAsX(t *testing.T) {
	a := New()
	state, first := a.InitialState("alice", "bob")
	require.Equal(t, "alice", first)
	require.Equal(t, "X", a.PlayerLabel(state, "alice"))
	require.Equal(t, "O", a.PlayerLabel(state, "bob"))
}

func TestLegalMovesStartsWithAllNineCells(t *testing.T) {
	a := New()
	state, _ := a.InitialState("alice", "bob")
	moves, err := a.LegalMoves(state, "alice")
	require.NoError(t, err)
	require.Len(t, moves, 9)
}

func TestApplyRejectsOccupiedCell(t *testing.T) {
	a := New()
	state, _ := a.InitialState("alice", "bob")
	state, err := a.Apply(state, "alice", marshalMove(t, 0))
	require.NoError(t, err)
	_, err = a.Apply(state, "bob", marshalMove(t, 0))
	require.Error(t, err)
}

func TestApplyRejectsPlayerNotInMatch(t *testing.T) {
	a := New()
	state, _ := a.InitialState("alice", "bob")
	_, err := a.Apply(state, "carol", marshalMove(t, 0))
	require.Error(t, err)
}

func TestTerminalDetectsRowWin(t *testing.T) {
	a := New()
	state, _ := a.InitialState("alice", "bob")

	// alice (X): 0,1,2 — bob (O): 3,4
	for _, step := range []struct {
		player string
		cell   int
	}{
		{"alice", 0}, {"bob", 3},
		{"alice", 1}, {"bob", 4},
		{"alice", 2},
	} {
		var err error
		state, err = a.Apply(state, step.player, marshalMove(t, step.cell))
		require.NoError(t, err)
	}

	result := a.Terminal(state)
	require.Equal(t, game.Win, result.Outcome)
	require.Equal(t, "alice", result.Winner)
}

func TestTerminalDetectsDrawOnFullBoard(t *testing.T) {
	a := New()
	state, _ := a.InitialState("alice", "bob")

	// X O X / X O O / O X X — no line wins, board fills completely.
	marks := []struct {
		player string
		cell   int
	}{
		{"alice", 0}, {"bob", 1},
		{"alice", 2}, {"bob", 4},
		{"alice", 3}, {"bob", 5},
		{"alice", 7}, {"bob", 6},
		{"alice", 8},
	}
	for _, step := range marks {
		var err error
		state, err = a.Apply(state, step.player, marshalMove(t, step.cell))
		require.NoError(t, err)
	}

	result := a.Terminal(state)
	require.Equal(t, game.Draw, result.Outcome)
}

func TestNextMoverAlternates(t *testing.T) {
	a := New()
	state, _ := a.InitialState("alice", "bob")
	require.Equal(t, "alice", a.NextMover(state, "alice", "bob"))

	state, err := a.Apply(state, "alice", marshalMove(t, 0))
	require.NoError(t, err)
	require.Equal(t, "bob", a.NextMover(state, "alice", "bob"))
}

func TestSnapshotRendersPublicBoard(t *testing.T) {
	a := New()
	state, _ := a.InitialState("alice", "bob")
	state, err := a.Apply(state, "alice", marshalMove(t, 4))
	require.NoError(t, err)

	raw, err := a.Snapshot(state, "bob")
	require.NoError(t, err)

	var snap cellSnapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Equal(t, "X", snap.Board[4])
}

// Package tictactoe is the reference GameAdapter implementation:
// a 3x3 board, players alternate placing their mark in an empty
// cell, terminal when a row/column/diagonal holds three of one mark (win)
// or the board is full (draw). It exists to pin down the adapter contract
// end-to-end, not as a general game engine.
package tictactoe

import (
	"encoding/json"
	"fmt"

	"github.com/agentleague/league/internal/game"
)

// GameType is the game_registry key this adapter is registered under.
const GameType = "tictactoe"

const (
	markX    = "X"
	markO    = "O"
	markNone = ""
)

// boardState is the adapter-owned State: a flat 3x3 board plus which mark
// belongs to which player.
type boardState struct {
	Cells    [9]string
	MarkOf   map[string]string // player_id -> "X"|"O"
	PlayerOf map[string]string // "X"|"O" -> player_id
}

// move is the wire shape of a Tic-Tac-Toe move: the 0-8 cell index.
type move struct {
	Cell int `json:"cell"`
}

// cellSnapshot is the wire shape sent to players and in GAME_OVER.
type cellSnapshot struct {
	Board []string `json:"board"`
	Turn  string   `json:"turn,omitempty"`
}

var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Adapter implements game.Adapter for Tic-Tac-Toe.
type Adapter struct{}

// New returns a Tic-Tac-Toe adapter ready to register.
func New() *Adapter { return &Adapter{} }

func (Adapter) GameType() string { return GameType }

// InitialState sets player A as "X" (moving first) and player B as "O".
func (Adapter) InitialState(playerA, playerB string) (game.State, string) {
	st := &boardState{
		MarkOf:   map[string]string{playerA: markX, playerB: markO},
		PlayerOf: map[string]string{markX: playerA, markO: playerB},
	}
	for i := range st.Cells {
		st.Cells[i] = markNone
	}
	return st, playerA
}

// PlayerLabel returns the mark ("X" or "O") assigned to player.
func (Adapter) PlayerLabel(state game.State, player string) string {
	st := state.(*boardState)
	return st.MarkOf[player]
}

func (Adapter) LegalMoves(state game.State, player string) ([]game.Move, error) {
	st := state.(*boardState)
	var moves []game.Move
	for i, c := range st.Cells {
		if c == markNone {
			b, _ := json.Marshal(move{Cell: i})
			moves = append(moves, b)
		}
	}
	_ = player // legal moves don't depend on which player asks
	return moves, nil
}

func (Adapter) Apply(state game.State, player string, raw game.Move) (game.State, error) {
	st := state.(*boardState)

	mark, ok := st.MarkOf[player]
	if !ok {
		return st, fmt.Errorf("tictactoe: player %q is not part of this match", player)
	}

	var m move
	if err := json.Unmarshal(raw, &m); err != nil {
		return st, fmt.Errorf("tictactoe: malformed move: %w", err)
	}
	if m.Cell < 0 || m.Cell > 8 {
		return st, fmt.Errorf("tictactoe: cell %d out of range", m.Cell)
	}
	if st.Cells[m.Cell] != markNone {
		return st, fmt.Errorf("tictactoe: cell %d is already occupied", m.Cell)
	}

	next := *st
	next.Cells[m.Cell] = mark
	return &next, nil
}

func (Adapter) Terminal(state game.State) game.Result {
	st := state.(*boardState)

	for _, line := range winLines {
		a, b, c := st.Cells[line[0]], st.Cells[line[1]], st.Cells[line[2]]
		if a != markNone && a == b && b == c {
			return game.Result{Outcome: game.Win, Winner: st.PlayerOf[a]}
		}
	}

	for _, c := range st.Cells {
		if c == markNone {
			return game.Result{Outcome: game.Ongoing}
		}
	}
	return game.Result{Outcome: game.Draw}
}

func (Adapter) NextMover(state game.State, playerA, playerB string) string {
	st := state.(*boardState)
	xCount, oCount := 0, 0
	for _, c := range st.Cells {
		switch c {
		case markX:
			xCount++
		case markO:
			oCount++
		}
	}
	if xCount > oCount {
		return st.PlayerOf[markO]
	}
	return st.PlayerOf[markX]
}

func (Adapter) Snapshot(state game.State, viewer string) (game.Snapshot, error) {
	st := state.(*boardState)
	board := make([]string, 9)
	copy(board, st.Cells[:])
	snap := cellSnapshot{Board: board}
	_ = viewer // full board is public information in Tic-Tac-Toe
	return json.Marshal(snap)
}

// Package tictactoe implements the reference Tic-Tac-Toe player strategy:
// take the lowest-numbered empty cell. It exists to exercise the Player
// harness end-to-end against internal/game/tictactoe's adapter, not as a
// competitive strategy.
package tictactoe

import (
	"encoding/json"
	"fmt"

	"github.com/agentleague/league/internal/game"
)

// GameType is the game_registry key this strategy plays.
const GameType = "tictactoe"

type boardSnapshot struct {
	Board []string `json:"board"`
}

type move struct {
	Cell int `json:"cell"`
}

// FirstOpenCell always plays the lowest-index empty cell.
type FirstOpenCell struct{}

// New returns a FirstOpenCell strategy.
func New() *FirstOpenCell { return &FirstOpenCell{} }

func (FirstOpenCell) GameType() string { return GameType }

func (FirstOpenCell) ChooseMove(snapshot game.Snapshot, _ string) (game.Move, error) {
	var snap boardSnapshot
	if err := json.Unmarshal(snapshot, &snap); err != nil {
		return nil, fmt.Errorf("tictactoe strategy: decoding snapshot: %w", err)
	}
	for i, cell := range snap.Board {
		if cell == "" {
			return json.Marshal(move{Cell: i})
		}
	}
	return nil, fmt.Errorf("tictactoe strategy: no open cell in snapshot")
}

// Package game defines the GameAdapter contract referees use to evaluate
// matches without any game-specific knowledge baked into the executor, and
// the registry that maps a configured game_type to its adapter and scoring
// table.
package game

import "encoding/json"

// Outcome describes the terminal state of a match from one player's
// perspective, as returned by Terminal.
type Outcome int

const (
	// Ongoing means the game has not yet reached a terminal state.
	Ongoing Outcome = iota
	// Win means the game ended with a winner (Winner is populated).
	Win
	// Draw means the game ended with no winner.
	Draw
)

// Result is the terminal-state verdict returned by Adapter.Terminal.
type Result struct {
	Outcome Outcome
	// Winner is the player_id of the winner, populated only when Outcome
	// is Win.
	Winner string
}

// Move is an opaque, game-specific move payload. Adapters unmarshal it
// into their own concrete type.
type Move = json.RawMessage

// Snapshot is an opaque, game-specific view of a game's state sent to a
// player so their strategy may choose a move. Adapters decide what, if
// anything, to hide from the viewer (e.g. hidden information games) via
// the viewer parameter to Snapshot.
type Snapshot = json.RawMessage

// ScoringTable maps a terminal Outcome (from a given player's perspective)
// to the points they earn, overridable per game_type in the registry.
// The default is WIN=3, DRAW=1, LOSS=0.
type ScoringTable struct {
	Win  int
	Draw int
	Loss int
}

// DefaultScoring is used by any game_type not given an explicit override
// in game_registry.
var DefaultScoring = ScoringTable{Win: 3, Draw: 1, Loss: 0}

// State is an opaque, adapter-owned representation of one match's game
// state. The referee never inspects it directly; it is threaded through
// Apply/Terminal/Snapshot calls only.
type State any

// Adapter is the only component with game-specific knowledge. A
// referee holds one Adapter instance per known game_type and drives it
// through InitialState -> (LegalMoves -> Apply)* -> Terminal.
type Adapter interface {
	// GameType is the game_registry key this adapter implements.
	GameType() string

	// InitialState returns a fresh game state and the player_id who moves
	// first (for Tic-Tac-Toe, player A with mark X).
	InitialState(playerA, playerB string) (state State, firstMover string)

	// PlayerLabel returns the display label (e.g. a mark) state assigns to
	// player, carried as your_mark in a GAME_INVITE payload. Games with no
	// such concept may return an empty string.
	PlayerLabel(state State, player string) string

	// LegalMoves returns the set of moves the given player may make in
	// state, encoded as opaque JSON values the player's strategy can
	// interpret.
	LegalMoves(state State, player string) ([]Move, error)

	// Apply validates and applies move by player to state, returning the
	// resulting state. An error means the move was illegal; the referee
	// forfeits the offending player.
	Apply(state State, player string, move Move) (State, error)

	// Terminal reports whether state is a terminal position.
	Terminal(state State) Result

	// NextMover returns the player_id on turn in a non-terminal state.
	NextMover(state State, playerA, playerB string) string

	// Snapshot renders state as the opaque JSON view sent to viewer in a
	// MOVE_REQUEST or GAME_OVER payload.
	Snapshot(state State, viewer string) (Snapshot, error)
}

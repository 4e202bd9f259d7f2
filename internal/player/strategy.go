package player

import "github.com/agentleague/league/internal/game"

// Strategy picks a move for one game_type given the opaque snapshot a
// MOVE_REQUEST carries. A Player holds one Strategy per game_type it can
// play; ChooseMove never sees the referee's internal game.State, only the
// same wire-shaped Snapshot the adapter chose to reveal.
type Strategy interface {
	// GameType is the game_registry key this strategy plays.
	GameType() string

	// ChooseMove decides a move given snapshot (the board/position as
	// rendered for this player) and yourMark (this player's label in the
	// match, e.g. "X"). The returned Move is the opaque, game-specific
	// payload the adapter's Apply expects.
	ChooseMove(snapshot game.Snapshot, yourMark string) (game.Move, error)
}

// StrategyRegistry maps a game_type to the Strategy that plays it.
type StrategyRegistry struct {
	strategies map[string]Strategy
}

// NewStrategyRegistry creates an empty registry. Use Register to populate it.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{strategies: make(map[string]Strategy)}
}

// Register adds s under its own GameType key.
func (r *StrategyRegistry) Register(s Strategy) {
	r.strategies[s.GameType()] = s
}

// Get looks up the Strategy for gameType.
func (r *StrategyRegistry) Get(gameType string) (Strategy, bool) {
	s, ok := r.strategies[gameType]
	return s, ok
}

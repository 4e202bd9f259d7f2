package game

import "fmt"

// entry pairs one game_type's Adapter with its ScoringTable.
type entry struct {
	adapter Adapter
	scoring ScoringTable
}

// Registry is the concretization of the game_registry configuration
// option: a map of game_type -> {adapter, scoring}, consulted by both
// the Referee (to drive a match) and the Manager's standings engine (to
// score a reported result).
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty Registry. Use Register to populate it.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds adapter under its own GameType key with scoring. Passing a
// zero ScoringTable uses DefaultScoring.
func (r *Registry) Register(adapter Adapter, scoring ScoringTable) {
	if scoring == (ScoringTable{}) {
		scoring = DefaultScoring
	}
	r.entries[adapter.GameType()] = entry{adapter: adapter, scoring: scoring}
}

// Adapter looks up the Adapter registered for gameType.
func (r *Registry) Adapter(gameType string) (Adapter, error) {
	e, ok := r.entries[gameType]
	if !ok {
		return nil, fmt.Errorf("game: unknown game_type %q", gameType)
	}
	return e.adapter, nil
}

// Scoring looks up the ScoringTable registered for gameType.
func (r *Registry) Scoring(gameType string) (ScoringTable, error) {
	e, ok := r.entries[gameType]
	if !ok {
		return ScoringTable{}, fmt.Errorf("game: unknown game_type %q", gameType)
	}
	return e.scoring, nil
}

// Points converts a ScoringTable and an Outcome into the points value
// stored on a Result row.
func Points(scoring ScoringTable, outcome string) int {
	switch outcome {
	case "WIN":
		return scoring.Win
	case "DRAW":
		return scoring.Draw
	default:
		return scoring.Loss
	}
}

package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentleague/league/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormStandingsRepository struct {
	db *gorm.DB
}

// NewStandingsRepository returns a StandingsRepository backed by the
// provided *gorm.DB.
func NewStandingsRepository(db *gorm.DB) StandingsRepository {
	return &gormStandingsRepository{db: db}
}

// Create inserts an immutable standings snapshot. Snapshots are never
// updated once written, matching the append-only contract of section 3.
func (r *gormStandingsRepository) Create(ctx context.Context, snapshot *db.StandingsSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return fmt.Errorf("standings: create: %w", err)
	}
	return nil
}

func (r *gormStandingsRepository) GetLatest(ctx context.Context, leagueID uuid.UUID) (*db.StandingsSnapshot, error) {
	var snapshot db.StandingsSnapshot
	err := r.db.WithContext(ctx).
		Where("league_id = ?", leagueID).
		Order("round_index DESC").
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("standings: get latest: %w", err)
	}
	return &snapshot, nil
}

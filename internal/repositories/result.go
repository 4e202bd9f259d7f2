package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentleague/league/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormResultRepository struct {
	db *gorm.DB
}

// NewResultRepository returns a ResultRepository backed by the provided *gorm.DB.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &gormResultRepository{db: db}
}

// Create inserts the single accepted result for a match. The unique index
// on match_id enforces "at most one accepted result per match"; a second
// insert attempt for the same match is the caller's bug, not a race this
// layer arbitrates — report_result's idempotency check happens before
// Create is ever called.
func (r *gormResultRepository) Create(ctx context.Context, result *db.Result) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("results: create: %w", err)
	}
	return nil
}

func (r *gormResultRepository) GetByMatch(ctx context.Context, matchID uuid.UUID) (*db.Result, error) {
	var result db.Result
	err := r.db.WithContext(ctx).First(&result, "match_id = ?", matchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("results: get by match: %w", err)
	}
	return &result, nil
}

func (r *gormResultRepository) ListByLeague(ctx context.Context, leagueID uuid.UUID) ([]db.Result, error) {
	var results []db.Result
	err := r.db.WithContext(ctx).
		Where("league_id = ?", leagueID).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("results: list by league: %w", err)
	}
	return results, nil
}

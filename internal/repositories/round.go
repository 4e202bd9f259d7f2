package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentleague/league/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormRoundRepository struct {
	db *gorm.DB
}

// NewRoundRepository returns a RoundRepository backed by the provided *gorm.DB.
func NewRoundRepository(db *gorm.DB) RoundRepository {
	return &gormRoundRepository{db: db}
}

func (r *gormRoundRepository) Create(ctx context.Context, round *db.Round) error {
	if err := r.db.WithContext(ctx).Create(round).Error; err != nil {
		return fmt.Errorf("rounds: create: %w", err)
	}
	return nil
}

func (r *gormRoundRepository) GetByIndex(ctx context.Context, leagueID uuid.UUID, index int) (*db.Round, error) {
	var round db.Round
	err := r.db.WithContext(ctx).
		First(&round, "league_id = ? AND round_index = ?", leagueID, index).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rounds: get by index: %w", err)
	}
	return &round, nil
}

func (r *gormRoundRepository) Update(ctx context.Context, round *db.Round) error {
	result := r.db.WithContext(ctx).Save(round)
	if result.Error != nil {
		return fmt.Errorf("rounds: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRoundRepository) ListByLeague(ctx context.Context, leagueID uuid.UUID) ([]db.Round, error) {
	var rounds []db.Round
	err := r.db.WithContext(ctx).
		Where("league_id = ?", leagueID).
		Order("round_index ASC").
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("rounds: list by league: %w", err)
	}
	return rounds, nil
}

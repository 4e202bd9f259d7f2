package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentleague/league/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormLeagueRepository struct {
	db *gorm.DB
}

// NewLeagueRepository returns a LeagueRepository backed by the provided *gorm.DB.
func NewLeagueRepository(db *gorm.DB) LeagueRepository {
	return &gormLeagueRepository{db: db}
}

func (r *gormLeagueRepository) Create(ctx context.Context, league *db.League) error {
	if err := r.db.WithContext(ctx).Create(league).Error; err != nil {
		return fmt.Errorf("leagues: create: %w", err)
	}
	return nil
}

func (r *gormLeagueRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.League, error) {
	var league db.League
	if err := r.db.WithContext(ctx).First(&league, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("leagues: get by id: %w", err)
	}
	return &league, nil
}

func (r *gormLeagueRepository) GetCurrent(ctx context.Context) (*db.League, error) {
	var league db.League
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []string{db.LeagueCompleted, db.LeagueAborted}).
		Order("created_at DESC").
		First(&league).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("leagues: get current: %w", err)
	}
	return &league, nil
}

func (r *gormLeagueRepository) Update(ctx context.Context, league *db.League) error {
	result := r.db.WithContext(ctx).Save(league)
	if result.Error != nil {
		return fmt.Errorf("leagues: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

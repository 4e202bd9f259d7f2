package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentleague/league/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormMatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository returns a MatchRepository backed by the provided *gorm.DB.
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &gormMatchRepository{db: db}
}

func (r *gormMatchRepository) Create(ctx context.Context, match *db.Match) error {
	if err := r.db.WithContext(ctx).Create(match).Error; err != nil {
		return fmt.Errorf("matches: create: %w", err)
	}
	return nil
}

func (r *gormMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Match, error) {
	var match db.Match
	if err := r.db.WithContext(ctx).First(&match, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("matches: get by id: %w", err)
	}
	return &match, nil
}

func (r *gormMatchRepository) Update(ctx context.Context, match *db.Match) error {
	result := r.db.WithContext(ctx).Save(match)
	if result.Error != nil {
		return fmt.Errorf("matches: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormMatchRepository) ListByRound(ctx context.Context, roundID uuid.UUID) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("created_at ASC").
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("matches: list by round: %w", err)
	}
	return matches, nil
}

func (r *gormMatchRepository) ListByLeague(ctx context.Context, leagueID uuid.UUID) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("league_id = ?", leagueID).
		Order("round_index ASC, created_at ASC").
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("matches: list by league: %w", err)
	}
	return matches, nil
}

// ListPending returns PENDING matches in FIFO order, the queue the
// scheduler drains as referees become idle.
func (r *gormMatchRepository) ListPending(ctx context.Context, leagueID uuid.UUID) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("league_id = ? AND status = ?", leagueID, db.MatchPending).
		Order("created_at ASC").
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("matches: list pending: %w", err)
	}
	return matches, nil
}

// ListByReferee returns matches assigned to refereeID filtered by status.
// Nothing in the tree calls it; restart recovery uses ListByLeague.
func (r *gormMatchRepository) ListByReferee(ctx context.Context, leagueID uuid.UUID, refereeID string, statuses []string) ([]db.Match, error) {
	var matches []db.Match
	q := r.db.WithContext(ctx).Where("league_id = ? AND referee_id = ?", leagueID, refereeID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("matches: list by referee: %w", err)
	}
	return matches, nil
}

package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/agentleague/league/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormTokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository returns a TokenRepository backed by the provided *gorm.DB.
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &gormTokenRepository{db: db}
}

func (r *gormTokenRepository) Create(ctx context.Context, token *db.Token) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("tokens: create: %w", err)
	}
	return nil
}

// RevokeByAgent marks every live token for (leagueID, kind, agentID) as
// revoked and returns the jtis it touched. The Manager calls it when it
// suspends an agent; registration does not call it.
func (r *gormTokenRepository) RevokeByAgent(ctx context.Context, leagueID uuid.UUID, kind, agentID string) ([]string, error) {
	var jtis []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Token{}).
			Where("league_id = ? AND kind = ? AND agent_id = ? AND revoked_at IS NULL", leagueID, kind, agentID).
			Pluck("jti", &jtis).Error; err != nil {
			return err
		}
		if len(jtis) == 0 {
			return nil
		}
		return tx.Model(&db.Token{}).
			Where("league_id = ? AND kind = ? AND agent_id = ? AND revoked_at IS NULL", leagueID, kind, agentID).
			Update("revoked_at", time.Now()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("tokens: revoke by agent: %w", err)
	}
	return jtis, nil
}

// RevokeAllForLeague marks every still-live token belonging to leagueID as
// revoked and returns their jtis, used on an orderly league shutdown.
func (r *gormTokenRepository) RevokeAllForLeague(ctx context.Context, leagueID uuid.UUID) ([]string, error) {
	var jtis []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Token{}).
			Where("league_id = ? AND revoked_at IS NULL", leagueID).
			Pluck("jti", &jtis).Error; err != nil {
			return err
		}
		if len(jtis) == 0 {
			return nil
		}
		return tx.Model(&db.Token{}).
			Where("league_id = ? AND revoked_at IS NULL", leagueID).
			Update("revoked_at", time.Now()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("tokens: revoke all for league: %w", err)
	}
	return jtis, nil
}

func (r *gormTokenRepository) RevokeByJTI(ctx context.Context, jti string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&db.Token{}).
		Where("jti = ? AND revoked_at IS NULL", jti).
		Update("revoked_at", now).Error
	if err != nil {
		return fmt.Errorf("tokens: revoke by jti: %w", err)
	}
	return nil
}

// ListRevokedJTIs returns every revoked jti, used to seed the in-memory
// denylist on restart (see auth.TokenManager.LoadRevoked).
func (r *gormTokenRepository) ListRevokedJTIs(ctx context.Context) ([]string, error) {
	var jtis []string
	err := r.db.WithContext(ctx).
		Model(&db.Token{}).
		Where("revoked_at IS NOT NULL").
		Pluck("jti", &jtis).Error
	if err != nil {
		return nil, fmt.Errorf("tokens: list revoked: %w", err)
	}
	return jtis, nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentleague/league/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormAgentRepository is the GORM implementation of AgentRepository.
type gormAgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository returns an AgentRepository backed by the provided *gorm.DB.
func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &gormAgentRepository{db: db}
}

// Create inserts a new agent record. Duplicate (league_id, kind, agent_id)
// is rejected by the coordinator's check-then-insert before this is ever
// called; Create itself only surfaces the unique index as a last resort.
func (r *gormAgentRepository) Create(ctx context.Context, agent *db.Agent) error {
	if err := r.db.WithContext(ctx).Create(agent).Error; err != nil {
		return fmt.Errorf("agents: create: %w", err)
	}
	return nil
}

// GetByIdentity retrieves an agent by its (league_id, kind, agent_id) triple,
// the invariant unique key named in section 3 — not the surrogate UUID.
func (r *gormAgentRepository) GetByIdentity(ctx context.Context, leagueID uuid.UUID, kind, agentID string) (*db.Agent, error) {
	var agent db.Agent
	err := r.db.WithContext(ctx).
		First(&agent, "league_id = ? AND kind = ? AND agent_id = ?", leagueID, kind, agentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("agents: get by identity: %w", err)
	}
	return &agent, nil
}

func (r *gormAgentRepository) Update(ctx context.Context, agent *db.Agent) error {
	result := r.db.WithContext(ctx).Save(agent)
	if result.Error != nil {
		return fmt.Errorf("agents: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormAgentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&db.Agent{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("agents: update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormAgentRepository) ListByLeague(ctx context.Context, leagueID uuid.UUID, kind string) ([]db.Agent, error) {
	var agents []db.Agent
	q := r.db.WithContext(ctx).Where("league_id = ?", leagueID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Order("registered_at ASC").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("agents: list by league: %w", err)
	}
	return agents, nil
}

func (r *gormAgentRepository) CountByLeague(ctx context.Context, leagueID uuid.UUID, kind string) (int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&db.Agent{}).Where("league_id = ?", leagueID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("agents: count by league: %w", err)
	}
	return total, nil
}

package repository

import (
	"context"

	"delivery_ops/internal/models"

	"gorm.io/gorm"
)

type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	CreateVillage(ctx context.Context, village *models.Village) error
	CreateRoute(ctx context.Context, route *models.Route) error
	GetByID(ctx context.Context, id string) (*models.Agent, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Agent, error)
	GetVillagesByIDs(ctx context.Context, ids []string) ([]models.Village, error)
	GetRoutesByIDs(ctx context.Context, ids []string) ([]models.Route, error)
}

type agentRepository struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepository{db: db}
}

func (r *agentRepository) Create(ctx context.Context, agent *models.Agent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

func (r *agentRepository) CreateVillage(ctx context.Context, village *models.Village) error {
	return r.db.WithContext(ctx).Create(village).Error
}

func (r *agentRepository) CreateRoute(ctx context.Context, route *models.Route) error {
	return r.db.WithContext(ctx).Create(route).Error
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Agent, error) {
	var agents []models.Agent
	if len(ids) == 0 {
		return agents, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&agents).Error
	return agents, err
}

func (r *agentRepository) GetVillagesByIDs(ctx context.Context, ids []string) ([]models.Village, error) {
	var villages []models.Village
	if len(ids) == 0 {
		return villages, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&villages).Error
	return villages, err
}

func (r *agentRepository) GetRoutesByIDs(ctx context.Context, ids []string) ([]models.Route, error) {
	var routes []models.Route
	if len(ids) == 0 {
		return routes, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&routes).Error
	return routes, err
}

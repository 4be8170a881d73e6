package repository

import (
	"context"
	"fmt"

	"delivery_ops/internal/models"

	"gorm.io/gorm"
)

// CartRepository stores each agent's current cart until it becomes an order.
type CartRepository interface {
	AddItem(ctx context.Context, item *models.CartItem) error
	GetByAgent(ctx context.Context, agentID string) ([]models.CartItem, error)
	ClearAgent(ctx context.Context, agentID string) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

// AddItem merges quantities for the same product variant.
func (r *cartRepository) AddItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.CartItem
		err := tx.Where("agent_id = ? AND product_id = ? AND variant_name = ?",
			item.AgentID, item.ProductID, item.VariantName).
			Limit(1).Find(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to look up cart item: %w", err)
		}
		if existing.ID == 0 {
			return tx.Create(item).Error
		}
		existing.Quantity += item.Quantity
		existing.Price = item.Price
		existing.DiscountedPrice = item.DiscountedPrice
		existing.ProductName = item.ProductName
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		*item = existing
		return nil
	})
}

func (r *cartRepository) GetByAgent(ctx context.Context, agentID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).Order("id ASC").Find(&items).Error
	return items, err
}

func (r *cartRepository) ClearAgent(ctx context.Context, agentID string) error {
	return r.db.WithContext(ctx).Where("agent_id = ?", agentID).Delete(&models.CartItem{}).Error
}

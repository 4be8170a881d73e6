package repository

import (
	"context"
	"fmt"
	"time"

	"delivery_ops/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	Transition(ctx context.Context, req TransitionRequest) ([]models.Order, error)
	GetStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusLog, error)
}

type OrderFilter struct {
	Status models.OrderStatus
	Page   int
	Limit  int
}

// TransitionRequest describes one conditional bulk status update.
type TransitionRequest struct {
	IDs        []string
	Transition models.Transition
	ChangedBy  string
	At         time.Time
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order with its items and the initial history row.
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		entry := &models.OrderStatusLog{
			OrderID:   order.ID,
			ToStatus:  order.Status,
			ChangedBy: order.AgentID,
			ChangedAt: order.PlacedAt,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to log status: %w", err)
		}
		return nil
	})
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	err := query.Preload("Items").
		Order("placed_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// Transition moves every requested order whose current status is one of the
// transition's origins. The UPDATE is the only place the status changes; the
// rows it matched are tagged with a fresh transition id and read back by that
// tag, so a concurrent transition on overlapping ids can never be reported
// as ours. SET expressions see the pre-update row, which is how
// previous_status captures the origin.
func (r *orderRepository) Transition(ctx context.Context, req TransitionRequest) ([]models.Order, error) {
	if len(req.IDs) == 0 {
		return nil, nil
	}
	marker := uuid.NewString()
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	var updated []models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		col := req.Transition.TimestampColumn
		res := tx.Model(&models.Order{}).
			Where("id IN ? AND status IN ?", req.IDs, statusStrings(req.Transition.From)).
			Updates(map[string]interface{}{
				"previous_status": gorm.Expr("status"),
				"status":          string(req.Transition.To),
				"transition_id":   marker,
				col:               gorm.Expr(fmt.Sprintf("COALESCE(%s, ?)", col), at),
				"updated_at":      at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to %s orders: %w", req.Transition.Name, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Preload("Items").Where("transition_id = ?", marker).Find(&updated).Error; err != nil {
			return fmt.Errorf("failed to load transitioned orders: %w", err)
		}

		logs := make([]models.OrderStatusLog, 0, len(updated))
		for _, o := range updated {
			logs = append(logs, models.OrderStatusLog{
				OrderID:      o.ID,
				FromStatus:   o.PreviousStatus,
				ToStatus:     req.Transition.To,
				TransitionID: marker,
				ChangedBy:    req.ChangedBy,
				ChangedAt:    at,
			})
		}
		if err := tx.Create(&logs).Error; err != nil {
			return fmt.Errorf("failed to log status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func statusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// GetStatusHistory returns rows in insertion order. changed_at is taken
// before the transaction starts, so it can be out of order under contention.
func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusLog, error) {
	var logs []models.OrderStatusLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

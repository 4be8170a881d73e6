package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Order struct {
	ID               string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AgentID          string         `json:"agent_id" gorm:"type:varchar(36);not null;index"`
	Status           OrderStatus    `json:"status" gorm:"type:varchar(20);not null;index;default:'pending'"`
	PreviousStatus   OrderStatus    `json:"previous_status,omitempty" gorm:"type:varchar(20)"`
	OrderType        OrderType      `json:"order_type" gorm:"type:varchar(20);not null"`
	Items            []OrderItem    `json:"items" gorm:"foreignKey:OrderID"`
	PlacedAt         time.Time      `json:"placed_at" gorm:"not null"`
	ConfirmedAt      *time.Time     `json:"confirmed_at"`
	OutForDeliveryAt *time.Time     `json:"out_for_delivery_at"`
	DeliveredAt      *time.Time     `json:"delivered_at"`
	ReturnedAt       *time.Time     `json:"returned_at"`
	CancellationDate *time.Time     `json:"cancellation_date"`
	TransitionID     string         `json:"-" gorm:"type:varchar(36);index"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// CartTotal is derived from the line items and never stored.
func (o *Order) CartTotal() float64 {
	total := 0.0
	for _, item := range o.Items {
		total += item.LineTotal
	}
	return total
}

type OrderType string

const (
	TakeAway OrderType = "take-away"
	Delivery OrderType = "delivery"
)

func (t OrderType) Valid() bool {
	return t == TakeAway || t == Delivery
}

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderReturned       OrderStatus = "returned"
	OrderCancelled      OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderOutForDelivery, OrderDelivered, OrderReturned, OrderCancelled:
		return true
	}
	return false
}

// OrderStatusLog is one applied status change. Rows are only ever appended.
type OrderStatusLog struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	OrderID      string      `json:"order_id" gorm:"type:varchar(36);not null;index"`
	FromStatus   OrderStatus `json:"from_status" gorm:"type:varchar(20)"`
	ToStatus     OrderStatus `json:"to_status" gorm:"type:varchar(20);not null"`
	TransitionID string      `json:"transition_id" gorm:"type:varchar(36)"`
	ChangedBy    string      `json:"changed_by"`
	ChangedAt    time.Time   `json:"changed_at" gorm:"not null"`
}

package models

import (
	"time"
)

type OrderItem struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	OrderID         string    `json:"order_id" gorm:"type:varchar(36);not null;index"`
	ProductID       string    `json:"product_id" gorm:"not null"`
	ProductName     string    `json:"product_name" gorm:"not null"`
	VariantName     string    `json:"variant_name"`
	Price           float64   `json:"price" gorm:"not null"`
	DiscountedPrice float64   `json:"discounted_price"`
	Quantity        int       `json:"quantity" gorm:"not null"`
	LineTotal       float64   `json:"line_total" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
}

// EffectivePrice is the discounted price when one is set.
func EffectivePrice(price, discounted float64) float64 {
	if discounted > 0 && discounted < price {
		return discounted
	}
	return price
}

// CartItem is a line in an agent's current cart, snapshotted from the catalog.
type CartItem struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	AgentID         string    `json:"agent_id" gorm:"type:varchar(36);not null;index"`
	ProductID       string    `json:"product_id" gorm:"not null"`
	ProductName     string    `json:"product_name" gorm:"not null"`
	VariantName     string    `json:"variant_name"`
	Price           float64   `json:"price" gorm:"not null"`
	DiscountedPrice float64   `json:"discounted_price"`
	Quantity        int       `json:"quantity" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c CartItem) ToOrderItem() OrderItem {
	return OrderItem{
		ProductID:       c.ProductID,
		ProductName:     c.ProductName,
		VariantName:     c.VariantName,
		Price:           c.Price,
		DiscountedPrice: c.DiscountedPrice,
		Quantity:        c.Quantity,
		LineTotal:       EffectivePrice(c.Price, c.DiscountedPrice) * float64(c.Quantity),
	}
}

package models

import (
	"time"
)

// OrderReport is the combined report generated for a batch of confirmed orders.
type OrderReport struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ReportType  string    `json:"report_type" gorm:"not null"` // confirmation
	OrderCount  int       `json:"order_count"`
	GrandTotal  float64   `json:"grand_total"`
	ReportData  string    `json:"report_data" gorm:"type:text"`
	GeneratedBy string    `json:"generated_by"`
	GeneratedAt time.Time `json:"generated_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReportLine aggregates one product variant across the reported orders.
type ReportLine struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	VariantName string  `json:"variant_name"`
	Quantity    int     `json:"quantity"`
	Total       float64 `json:"total"`
}

type ReportBody struct {
	OrderIDs []string     `json:"order_ids"`
	Lines    []ReportLine `json:"lines"`
}

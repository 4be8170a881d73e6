package services

import "errors"

var (
	ErrAgentNotFound    = errors.New("agent not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrReportNotFound   = errors.New("report not found")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidOrderType = errors.New("order type must be take-away or delivery")
	ErrInvalidCartItem  = errors.New("cart item needs a product, a name, a positive price and quantity")
	ErrNoOrderIDs       = errors.New("at least one order id is required")
	ErrUnauthorized     = errors.New("invalid credentials")
)

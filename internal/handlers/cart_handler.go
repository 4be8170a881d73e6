package handlers

import (
	"net/http"

	"delivery_ops/internal/models"
	"delivery_ops/internal/services"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	orderService services.OrderService
}

func NewCartHandler(orderService services.OrderService) *CartHandler {
	return &CartHandler{orderService: orderService}
}

type AddToCartRequest struct {
	AgentID         string  `json:"agentId" binding:"required"`
	ProductID       string  `json:"productId" binding:"required"`
	ProductName     string  `json:"productName" binding:"required"`
	VariantName     string  `json:"variantName"`
	Price           float64 `json:"price"`
	DiscountedPrice float64 `json:"discountedPrice"`
	Quantity        int     `json:"quantity"`
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	item := &models.CartItem{
		AgentID:         req.AgentID,
		ProductID:       req.ProductID,
		ProductName:     req.ProductName,
		VariantName:     req.VariantName,
		Price:           req.Price,
		DiscountedPrice: req.DiscountedPrice,
		Quantity:        req.Quantity,
	}
	if err := h.orderService.AddToCart(c.Request.Context(), item); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (h *CartHandler) GetCart(c *gin.Context) {
	agentID := c.Param("agent_id")
	items, err := h.orderService.GetCart(c.Request.Context(), agentID)
	if err != nil {
		respondError(c, err)
		return
	}

	total := 0.0
	for _, it := range items {
		total += it.ToOrderItem().LineTotal
	}
	c.JSON(http.StatusOK, gin.H{
		"agentId":   agentID,
		"items":     items,
		"cartTotal": total,
	})
}

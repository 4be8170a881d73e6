package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"delivery_ops/internal/models"
	"delivery_ops/internal/repository"
	"delivery_ops/internal/services"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService     services.OrderService
	lifecycleService services.LifecycleService
	reportService    services.ReportService
}

func NewOrderHandler(
	orderService services.OrderService,
	lifecycleService services.LifecycleService,
	reportService services.ReportService,
) *OrderHandler {
	return &OrderHandler{
		orderService:     orderService,
		lifecycleService: lifecycleService,
		reportService:    reportService,
	}
}

type PlaceOrderRequest struct {
	AgentID   string `json:"agentId" binding:"required"`
	OrderType string `json:"orderType"`
}

type BulkRequest struct {
	OrderIDs []string `json:"orderIds" binding:"required"`
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	res, err := h.orderService.PlaceOrder(c.Request.Context(), req.AgentID, models.OrderType(req.OrderType))
	if err != nil {
		if errors.Is(err, services.ErrEmptyCart) {
			c.JSON(http.StatusOK, gin.H{"message": "Cart is empty, no order placed", "order": nil})
			return
		}
		respondError(c, err)
		return
	}

	body := gin.H{"order": res.Order}
	if res.PrintStatus != nil {
		body["printStatus"] = res.PrintStatus
	}
	c.JSON(http.StatusOK, body)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter := repository.OrderFilter{}
	if s := c.Query("status"); s != "" {
		status := models.OrderStatus(s)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status " + s})
			return
		}
		filter.Status = status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	page, err := h.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":     page.Orders,
		"pagination": page.Pagination,
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *OrderHandler) ConfirmBulk(c *gin.Context) {
	h.bulk(c, h.lifecycleService.Confirm)
}

func (h *OrderHandler) OutForDeliveryBulk(c *gin.Context) {
	h.bulk(c, h.lifecycleService.Dispatch)
}

func (h *OrderHandler) DeliveredBulk(c *gin.Context) {
	h.bulk(c, h.lifecycleService.Deliver)
}

func (h *OrderHandler) ReturnedBulk(c *gin.Context) {
	h.bulk(c, h.lifecycleService.Return)
}

func (h *OrderHandler) CancelBulk(c *gin.Context) {
	h.bulk(c, h.lifecycleService.Cancel)
}

type bulkFunc func(ctx context.Context, ids []string, actor string) (*services.TransitionResult, error)

// bulk answers every bulk endpoint with the same shape. Zero matches is a
// 404 so callers can tell a no-op retry apart from progress.
func (h *OrderHandler) bulk(c *gin.Context, apply bulkFunc) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderIds is required"})
		return
	}

	res, err := apply(c.Request.Context(), req.OrderIDs, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"confirmedCount": res.Matched,
		"totalRequested": res.Requested,
		"orders":         res.Orders,
		"transition":     res.Transition,
		"outcome":        res.Outcome(),
	}
	if res.ReportID != nil {
		body["reportId"] = *res.ReportID
	}
	if len(res.Advisories) > 0 {
		body["advisories"] = res.Advisories
	}
	if res.Matched == 0 {
		body["error"] = "No orders in a valid state for " + res.Transition
		c.JSON(http.StatusNotFound, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *OrderHandler) GetReport(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report id"})
		return
	}
	report, err := h.reportService.GetReport(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	var body models.ReportBody
	if err := json.Unmarshal([]byte(report.ReportData), &body); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report": report,
		"lines":  body.Lines,
		"orders": body.OrderIDs,
	})
}

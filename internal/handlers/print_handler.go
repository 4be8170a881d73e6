package handlers

import (
	"errors"
	"net/http"

	"delivery_ops/internal/models"
	"delivery_ops/internal/printing"
	"delivery_ops/internal/services"

	"github.com/gin-gonic/gin"
)

type PrintHandler struct {
	broker       *printing.Broker
	orderService services.OrderService
}

func NewPrintHandler(broker *printing.Broker, orderService services.OrderService) *PrintHandler {
	return &PrintHandler{broker: broker, orderService: orderService}
}

// SendToPrintRequest names a stored order or carries a payload to print as is.
type SendToPrintRequest struct {
	OrderID string                 `json:"orderId"`
	Order   *printing.PrintPayload `json:"order"`
}

func (h *PrintHandler) SendToPrint(c *gin.Context) {
	var req SendToPrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	var job printing.PrintJob
	switch {
	case req.OrderID != "":
		var err error
		job, err = h.orderService.BuildPrintJob(c.Request.Context(), req.OrderID)
		if err != nil {
			respondError(c, err)
			return
		}
	case req.Order != nil && len(req.Order.Items) > 0:
		job = printing.NewManualJob(*req.Order)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId or an order with items is required"})
		return
	}

	res, err := h.broker.Dispatch(c.Request.Context(), job)
	if err != nil {
		respondError(c, err)
		return
	}
	if res.NoPrinters {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":             "No printers connected",
			"connectedPrinters": 0,
			"jobId":             res.JobID,
		})
		return
	}
	body := gin.H{
		"message":           "Print job sent",
		"connectedPrinters": res.Members,
		"notified":          res.Notified,
		"jobId":             res.JobID,
	}
	if res.StatusNotTracked {
		body["statusTracked"] = false
	}
	c.JSON(http.StatusOK, body)
}

func (h *PrintHandler) PrintStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connectedPrinters": h.broker.ConnectedCount(),
		"totalConnections":  h.broker.TotalConnections(),
	})
}

// PrintJobStatus reports found:false for unknown and expired jobs alike.
func (h *PrintHandler) PrintJobStatus(c *gin.Context) {
	status, err := h.broker.QueryOutcome(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if errors.Is(err, printing.ErrJobNotFound) {
			c.JSON(http.StatusOK, gin.H{"found": false})
			return
		}
		respondError(c, err)
		return
	}

	body := gin.H{
		"found":     true,
		"outcome":   status.Outcome,
		"timestamp": status.UpdatedAt,
		"reports":   len(status.Reports),
	}
	if status.Outcome != models.PrintPending {
		body["success"] = status.Outcome == models.PrintSuccess
		if status.Detail != "" {
			body["message"] = status.Detail
		}
	}
	c.JSON(http.StatusOK, body)
}

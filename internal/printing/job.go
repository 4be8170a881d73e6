package printing

import (
	"fmt"
	"time"

	"delivery_ops/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Channel event names shared with printer clients.
const (
	EventRegisterPrinter   = "register-printer"
	EventPrinterRegistered = "printer-registered"
	EventPrintOrder        = "print-order"
	EventPrintSuccess      = "print-success"
	EventPrintError        = "print-error"
)

// Message is the envelope for everything sent over the printer channel.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type PrintItem struct {
	ProductName     string  `json:"product_name"`
	VariantName     string  `json:"variant_name,omitempty"`
	Price           float64 `json:"price"`
	DiscountedPrice float64 `json:"discounted_price,omitempty"`
	Quantity        int     `json:"quantity"`
	LineTotal       float64 `json:"line_total"`
}

// PrintPayload is everything a printer needs to render a receipt.
type PrintPayload struct {
	OrderID     string      `json:"order_id,omitempty"`
	OrderType   string      `json:"order_type,omitempty"`
	Status      string      `json:"status,omitempty"`
	PlacedAt    time.Time   `json:"placed_at"`
	AgentName   string      `json:"agent_name,omitempty"`
	AgentMobile string      `json:"agent_mobile,omitempty"`
	VillageName string      `json:"village_name,omitempty"`
	RouteName   string      `json:"route_name,omitempty"`
	Items       []PrintItem `json:"items"`
	CartTotal   float64     `json:"cart_total"`
	Receipt     []string    `json:"receipt,omitempty"`
}

type PrintJob struct {
	JobID        string       `json:"job_id"`
	Payload      PrintPayload `json:"payload"`
	DispatchedAt time.Time    `json:"dispatched_at"`
}

// Enrichment carries the joined collaborator fields for an order.
type Enrichment struct {
	AgentName   string
	AgentMobile string
	VillageName string
	RouteName   string
}

// NewOrderJob builds a job whose id is the order id.
func NewOrderJob(order *models.Order, e Enrichment) PrintJob {
	payload := PrintPayload{
		OrderID:     order.ID,
		OrderType:   string(order.OrderType),
		Status:      string(order.Status),
		PlacedAt:    order.PlacedAt,
		AgentName:   e.AgentName,
		AgentMobile: e.AgentMobile,
		VillageName: e.VillageName,
		RouteName:   e.RouteName,
		CartTotal:   order.CartTotal(),
	}
	for _, it := range order.Items {
		payload.Items = append(payload.Items, PrintItem{
			ProductName:     it.ProductName,
			VariantName:     it.VariantName,
			Price:           it.Price,
			DiscountedPrice: it.DiscountedPrice,
			Quantity:        it.Quantity,
			LineTotal:       it.LineTotal,
		})
	}
	payload.Receipt = ReceiptLines(payload)
	return PrintJob{JobID: order.ID, Payload: payload}
}

// NewManualJob wraps a caller-supplied payload under a synthetic job id.
func NewManualJob(payload PrintPayload) PrintJob {
	if payload.CartTotal == 0 {
		for _, it := range payload.Items {
			payload.CartTotal += it.LineTotal
		}
	}
	if len(payload.Receipt) == 0 {
		payload.Receipt = ReceiptLines(payload)
	}
	return PrintJob{JobID: "manual-" + uuid.NewString(), Payload: payload}
}

// ReceiptLines renders the payload as plain text lines for simple printers.
func ReceiptLines(p PrintPayload) []string {
	lines := []string{}
	if p.OrderID != "" {
		lines = append(lines, "Order "+p.OrderID)
	}
	if !p.PlacedAt.IsZero() {
		lines = append(lines, p.PlacedAt.Format("02 Jan 2006 15:04"))
	}
	if p.AgentName != "" {
		lines = append(lines, fmt.Sprintf("Agent: %s %s", p.AgentName, p.AgentMobile))
	}
	if p.VillageName != "" {
		lines = append(lines, "Village: "+p.VillageName)
	}
	for _, it := range p.Items {
		name := it.ProductName
		if it.VariantName != "" {
			name += " (" + it.VariantName + ")"
		}
		lines = append(lines, fmt.Sprintf("%d x %s  %s", it.Quantity, name, money(it.LineTotal)))
	}
	lines = append(lines, "Total: "+money(p.CartTotal))
	return lines
}

func money(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

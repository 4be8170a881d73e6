package services

import (
	"context"
	"fmt"

	"delivery_ops/internal/models"
	"delivery_ops/pkg/whatsapp"
)

// Notifier tells field agents that their route has gone out for delivery.
type Notifier interface {
	NotifyRouteActive(ctx context.Context, agent models.Agent, routeName string, orderCount int) error
}

type whatsappNotifier struct {
	client *whatsapp.Client
}

func NewWhatsAppNotifier(client *whatsapp.Client) Notifier {
	return &whatsappNotifier{client: client}
}

func (n *whatsappNotifier) NotifyRouteActive(ctx context.Context, agent models.Agent, routeName string, orderCount int) error {
	phone := agent.WhatsAppNumber
	if phone == "" {
		phone = agent.Mobile
	}
	if phone == "" {
		return fmt.Errorf("agent %s has no phone number", agent.ID)
	}
	if routeName == "" {
		routeName = "your route"
	}
	message := fmt.Sprintf("🚚 Hi %s, %s is now active: %d order(s) are out for delivery.", agent.Name, routeName, orderCount)
	return n.client.SendTextMessage(ctx, phone, message)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"delivery_ops/internal/events"
	"delivery_ops/internal/models"
	"delivery_ops/internal/printing"
	"delivery_ops/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PrintDispatcher is the part of the print broker the order flow needs.
type PrintDispatcher interface {
	Dispatch(ctx context.Context, job printing.PrintJob) (printing.DispatchResult, error)
}

type OrderService interface {
	AddToCart(ctx context.Context, item *models.CartItem) error
	GetCart(ctx context.Context, agentID string) ([]models.CartItem, error)
	PlaceOrder(ctx context.Context, agentID string, orderType models.OrderType) (*PlacementResult, error)
	GetOrder(ctx context.Context, id string) (*OrderView, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) (*OrderPage, error)
	BuildPrintJob(ctx context.Context, orderID string) (printing.PrintJob, error)
}

// OrderView is an order joined with its agent, village and route.
type OrderView struct {
	models.Order
	CartTotal   float64 `json:"cart_total"`
	AgentName   string  `json:"agent_name,omitempty"`
	AgentMobile string  `json:"agent_mobile,omitempty"`
	VillageName string  `json:"village_name,omitempty"`
	RouteName   string  `json:"route_name,omitempty"`
}

func (v *OrderView) Enrichment() printing.Enrichment {
	return printing.Enrichment{
		AgentName:   v.AgentName,
		AgentMobile: v.AgentMobile,
		VillageName: v.VillageName,
		RouteName:   v.RouteName,
	}
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type OrderPage struct {
	Orders     []OrderView `json:"orders"`
	Pagination Pagination  `json:"pagination"`
}

// PrintStatus is the advisory outcome of the print dispatch that follows a
// placement. It never affects whether the order was created.
type PrintStatus struct {
	JobID             string `json:"job_id"`
	Dispatched        bool   `json:"dispatched"`
	NoPrinters        bool   `json:"no_printers"`
	ConnectedPrinters int    `json:"connected_printers"`
	Notified          int    `json:"notified"`
	StatusNotTracked  bool   `json:"status_not_tracked,omitempty"`
	Error             string `json:"error,omitempty"`
}

type PlacementResult struct {
	Order       *OrderView   `json:"order"`
	PrintStatus *PrintStatus `json:"print_status,omitempty"`
}

type orderService struct {
	orderRepo repository.OrderRepository
	cartRepo  repository.CartRepository
	agentRepo repository.AgentRepository
	printer   PrintDispatcher
	publisher events.Publisher
	now       func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	agentRepo repository.AgentRepository,
	printer PrintDispatcher,
	publisher events.Publisher,
) OrderService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &orderService{
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		agentRepo: agentRepo,
		printer:   printer,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *orderService) AddToCart(ctx context.Context, item *models.CartItem) error {
	item.ProductName = strings.TrimSpace(item.ProductName)
	if item.ProductID == "" || item.ProductName == "" || item.Quantity <= 0 || item.Price <= 0 || item.DiscountedPrice < 0 {
		return ErrInvalidCartItem
	}
	if _, err := s.agentRepo.GetByID(ctx, item.AgentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAgentNotFound
		}
		return err
	}
	return s.cartRepo.AddItem(ctx, item)
}

func (s *orderService) GetCart(ctx context.Context, agentID string) ([]models.CartItem, error) {
	return s.cartRepo.GetByAgent(ctx, agentID)
}

// PlaceOrder turns the agent's cart into a pending order and then asks the
// print broker to print it.
func (s *orderService) PlaceOrder(ctx context.Context, agentID string, orderType models.OrderType) (*PlacementResult, error) {
	if orderType == "" {
		orderType = models.Delivery
	}
	if !orderType.Valid() {
		return nil, ErrInvalidOrderType
	}

	if _, err := s.agentRepo.GetByID(ctx, agentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	cart, err := s.cartRepo.GetByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	order := &models.Order{
		AgentID:   agentID,
		Status:    models.OrderPending,
		OrderType: orderType,
		PlacedAt:  s.now(),
	}
	for _, c := range cart {
		order.Items = append(order.Items, c.ToOrderItem())
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	if err := s.cartRepo.ClearAgent(ctx, agentID); err != nil {
		log.Warn().Err(err).Str("action", "cart_clear_failed").Str("agent_id", agentID).Msg("Order placed but cart not cleared")
	}

	log.Info().
		Str("action", "order_placed").
		Str("order_id", order.ID).
		Str("agent_id", agentID).
		Float64("cart_total", order.CartTotal()).
		Msg("Order placed")

	s.publish(ctx, events.OrderEvent{
		Type:       "order.placed",
		OrderIDs:   []string{order.ID},
		Status:     string(order.Status),
		Actor:      agentID,
		OccurredAt: order.PlacedAt,
	})

	views, err := s.enrich(ctx, []models.Order{*order})
	if err != nil {
		log.Warn().Err(err).Str("action", "enrich_failed").Str("order_id", order.ID).Msg("Failed to enrich order")
		views = []OrderView{{Order: *order, CartTotal: order.CartTotal()}}
	}
	view := &views[0]

	return &PlacementResult{Order: view, PrintStatus: s.dispatchPrint(ctx, view)}, nil
}

func (s *orderService) dispatchPrint(ctx context.Context, view *OrderView) *PrintStatus {
	if s.printer == nil {
		return nil
	}
	job := printing.NewOrderJob(&view.Order, view.Enrichment())
	status := &PrintStatus{JobID: job.JobID}

	res, err := s.printer.Dispatch(ctx, job)
	if err != nil {
		log.Error().Err(err).Str("action", "print_dispatch_failed").Str("job_id", job.JobID).Msg("Print dispatch failed")
		status.Error = err.Error()
		return status
	}
	status.Dispatched = !res.NoPrinters
	status.NoPrinters = res.NoPrinters
	status.ConnectedPrinters = res.Members
	status.Notified = res.Notified
	status.StatusNotTracked = res.StatusNotTracked
	return status
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*OrderView, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	views, err := s.enrich(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *orderService) ListOrders(ctx context.Context, filter repository.OrderFilter) (*OrderPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views, err := s.enrich(ctx, orders)
	if err != nil {
		return nil, err
	}
	return &OrderPage{
		Orders: views,
		Pagination: Pagination{
			Page:       filter.Page,
			Limit:      filter.Limit,
			Total:      total,
			TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
		},
	}, nil
}

func (s *orderService) BuildPrintJob(ctx context.Context, orderID string) (printing.PrintJob, error) {
	view, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return printing.PrintJob{}, err
	}
	return printing.NewOrderJob(&view.Order, view.Enrichment()), nil
}

// enrich joins orders to their agents, villages and routes with one query
// per collaborator.
func (s *orderService) enrich(ctx context.Context, orders []models.Order) ([]OrderView, error) {
	agentIDs := uniqueStrings(len(orders), func(i int) string { return orders[i].AgentID })
	agents, err := s.agentRepo.GetByIDs(ctx, agentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}
	agentByID := make(map[string]models.Agent, len(agents))
	for _, a := range agents {
		agentByID[a.ID] = a
	}

	villageIDs := uniqueStrings(len(agents), func(i int) string { return agents[i].VillageID })
	routeIDs := uniqueStrings(len(agents), func(i int) string { return agents[i].RouteID })
	villages, err := s.agentRepo.GetVillagesByIDs(ctx, villageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load villages: %w", err)
	}
	routes, err := s.agentRepo.GetRoutesByIDs(ctx, routeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	villageNames := make(map[string]string, len(villages))
	for _, v := range villages {
		villageNames[v.ID] = v.Name
	}
	routeNames := make(map[string]string, len(routes))
	for _, r := range routes {
		routeNames[r.ID] = r.Name
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		view := OrderView{Order: o, CartTotal: o.CartTotal()}
		if a, ok := agentByID[o.AgentID]; ok {
			view.AgentName = a.Name
			view.AgentMobile = a.Mobile
			view.VillageName = villageNames[a.VillageID]
			view.RouteName = routeNames[a.RouteID]
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("action", "event_publish_failed").Str("type", event.Type).Msg("Failed to publish order event")
	}
}

func uniqueStrings(n int, at func(i int) string) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v := at(i)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

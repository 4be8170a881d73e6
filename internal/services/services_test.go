package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"delivery_ops/internal/database"
	"delivery_ops/internal/events"
	"delivery_ops/internal/models"
	"delivery_ops/internal/printing"
	"delivery_ops/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeConn struct {
	id string

	mu   sync.Mutex
	msgs []printing.Message
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(_ context.Context, msg printing.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type notification struct {
	agentID string
	route   string
	count   int
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) NotifyRouteActive(_ context.Context, agent models.Agent, routeName string, orderCount int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{agentID: agent.ID, route: routeName, count: orderCount})
	return nil
}

type fixture struct {
	db        *gorm.DB
	agent     *models.Agent
	broker    *printing.Broker
	store     *printing.MemoryJobStore
	publisher *recordingPublisher
	notifier  *fakeNotifier
	orders    OrderService
	lifecycle LifecycleService
	reports   ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenInMemory(uuid.NewString())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ctx := context.Background()

	agentRepo := repository.NewAgentRepository(db)
	village := &models.Village{Name: "Kalyanpur"}
	route := &models.Route{Name: "North Loop"}
	if err := agentRepo.CreateVillage(ctx, village); err != nil {
		t.Fatal(err)
	}
	if err := agentRepo.CreateRoute(ctx, route); err != nil {
		t.Fatal(err)
	}
	agent := &models.Agent{Name: "Ravi", Mobile: "9800000001", WhatsAppNumber: "9800000001", VillageID: village.ID, RouteID: route.ID, IsActive: true}
	if err := agentRepo.Create(ctx, agent); err != nil {
		t.Fatal(err)
	}

	store := printing.NewMemoryJobStore(100, 0)
	broker := printing.NewBroker(printing.NewRegistry(), store, 4)
	pub := &recordingPublisher{}
	notifier := &fakeNotifier{}
	orderRepo := repository.NewOrderRepository(db)
	reports := NewReportService(repository.NewReportRepository(db))

	return &fixture{
		db:        db,
		agent:     agent,
		broker:    broker,
		store:     store,
		publisher: pub,
		notifier:  notifier,
		orders:    NewOrderService(orderRepo, repository.NewCartRepository(db), agentRepo, broker, pub),
		lifecycle: NewLifecycleService(orderRepo, agentRepo, reports, notifier, pub),
		reports:   reports,
	}
}

func (f *fixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	items := []models.CartItem{
		{AgentID: f.agent.ID, ProductID: "rice", ProductName: "Rice", VariantName: "5kg", Price: 50, Quantity: 2},
		{AgentID: f.agent.ID, ProductID: "oil", ProductName: "Oil", VariantName: "1L", Price: 30, DiscountedPrice: 25, Quantity: 2},
	}
	for i := range items {
		if err := f.orders.AddToCart(ctx, &items[i]); err != nil {
			t.Fatalf("add to cart: %v", err)
		}
	}
}

func (f *fixture) placeOrder(t *testing.T) *PlacementResult {
	t.Helper()
	f.fillCart(t)
	res, err := f.orders.PlaceOrder(context.Background(), f.agent.ID, models.Delivery)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return res
}

func TestOrderLifecycle_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	printer := &fakeConn{id: "printer-1"}
	f.broker.RegisterPrinter(printer, printing.PrinterInfo{Name: "counter"})

	placed := f.placeOrder(t)
	order := placed.Order
	if order.Status != models.OrderPending {
		t.Fatalf("status = %s, want pending", order.Status)
	}
	if len(order.Items) != 2 || order.CartTotal != 150 {
		t.Fatalf("items=%d total=%v, want 2 and 150", len(order.Items), order.CartTotal)
	}
	if order.AgentName != "Ravi" || order.VillageName != "Kalyanpur" || order.RouteName != "North Loop" {
		t.Fatalf("order not enriched: %+v", order)
	}
	if placed.PrintStatus == nil || !placed.PrintStatus.Dispatched || placed.PrintStatus.Notified != 1 {
		t.Fatalf("print status = %+v", placed.PrintStatus)
	}
	if len(printer.msgs) != 1 || printer.msgs[0].Event != printing.EventPrintOrder {
		t.Fatalf("printer got %+v", printer.msgs)
	}
	if cart, _ := f.orders.GetCart(ctx, f.agent.ID); len(cart) != 0 {
		t.Fatalf("cart not cleared: %+v", cart)
	}

	if err := f.broker.ReportOutcome(ctx, order.ID, printer.id, true, ""); err != nil {
		t.Fatal(err)
	}
	status, err := f.broker.QueryOutcome(ctx, order.ID)
	if err != nil || status.Outcome != models.PrintSuccess {
		t.Fatalf("print outcome = %+v, %v", status, err)
	}

	ids := []string{order.ID}
	steps := []struct {
		apply func(context.Context, []string, string) (*TransitionResult, error)
		want  models.OrderStatus
	}{
		{f.lifecycle.Confirm, models.OrderConfirmed},
		{f.lifecycle.Dispatch, models.OrderOutForDelivery},
		{f.lifecycle.Deliver, models.OrderDelivered},
		{f.lifecycle.Return, models.OrderReturned},
	}
	var confirmedAt *time.Time
	for _, step := range steps {
		res, err := step.apply(ctx, ids, "admin")
		if err != nil {
			t.Fatal(err)
		}
		if res.Matched != 1 || res.Orders[0].Status != step.want {
			t.Fatalf("after %s: %+v", res.Transition, res)
		}
		if confirmedAt == nil {
			confirmedAt = res.Orders[0].ConfirmedAt
		}
	}
	f.lifecycle.Wait()

	got, err := f.orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ConfirmedAt == nil || got.OutForDeliveryAt == nil || got.DeliveredAt == nil || got.ReturnedAt == nil {
		t.Fatalf("timestamps missing: %+v", got.Order)
	}
	if !got.ConfirmedAt.Equal(*confirmedAt) {
		t.Fatalf("confirmed_at changed from %v to %v", confirmedAt, got.ConfirmedAt)
	}
	if got.CancellationDate != nil {
		t.Fatalf("unexpected timestamps: %+v", got.Order)
	}

	if len(f.notifier.sent) != 1 || f.notifier.sent[0].route != "North Loop" || f.notifier.sent[0].count != 1 {
		t.Fatalf("notifications = %+v", f.notifier.sent)
	}
	wantEvents := []string{"order.placed", "order.status_changed", "order.status_changed", "order.status_changed", "order.status_changed"}
	if gotEvents := f.publisher.types(); len(gotEvents) != len(wantEvents) {
		t.Fatalf("events = %v, want %v", gotEvents, wantEvents)
	}
}

func TestPlaceOrder_NoPrintersStillCreatesOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	placed := f.placeOrder(t)
	if placed.PrintStatus == nil || !placed.PrintStatus.NoPrinters || placed.PrintStatus.Dispatched {
		t.Fatalf("print status = %+v", placed.PrintStatus)
	}
	if _, err := f.orders.GetOrder(ctx, placed.Order.ID); err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if _, err := f.broker.QueryOutcome(ctx, placed.Order.ID); !errors.Is(err, printing.ErrJobNotFound) {
		t.Fatalf("undelivered job should not be tracked, got %v", err)
	}
}

type downStore struct{}

func (downStore) Put(context.Context, *models.PrintJobStatus) error {
	return errors.New("redis down")
}

func (downStore) Record(context.Context, string, models.PrintReport) error {
	return errors.New("redis down")
}

func (downStore) Get(context.Context, string) (*models.PrintJobStatus, error) {
	return nil, errors.New("redis down")
}

func TestPlaceOrder_StatusStoreDownStillPrints(t *testing.T) {
	f := newFixture(t)
	broker := printing.NewBroker(printing.NewRegistry(), downStore{}, 4)
	f.orders = NewOrderService(repository.NewOrderRepository(f.db), repository.NewCartRepository(f.db), repository.NewAgentRepository(f.db), broker, f.publisher)
	printer := &fakeConn{id: "printer-1"}
	broker.RegisterPrinter(printer, printing.PrinterInfo{})

	placed := f.placeOrder(t)
	ps := placed.PrintStatus
	if ps == nil || !ps.Dispatched || ps.Notified != 1 || !ps.StatusNotTracked || ps.Error != "" {
		t.Fatalf("print status = %+v", ps)
	}
	if len(printer.msgs) != 1 {
		t.Fatalf("printer got %d messages, want 1", len(printer.msgs))
	}
}

func TestPlaceOrder_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.orders.PlaceOrder(ctx, uuid.NewString(), models.Delivery); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("unknown agent: got %v", err)
	}
	if _, err := f.orders.PlaceOrder(ctx, f.agent.ID, models.Delivery); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("empty cart: got %v", err)
	}
	if _, err := f.orders.PlaceOrder(ctx, f.agent.ID, "drone"); !errors.Is(err, ErrInvalidOrderType) {
		t.Fatalf("bad order type: got %v", err)
	}

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected placements created %d orders", count)
	}
}

func TestAddToCart_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.orders.AddToCart(ctx, &models.CartItem{AgentID: f.agent.ID, ProductID: "rice", ProductName: "Rice", Price: 10})
	if !errors.Is(err, ErrInvalidCartItem) {
		t.Fatalf("zero quantity: got %v", err)
	}
	err = f.orders.AddToCart(ctx, &models.CartItem{AgentID: uuid.NewString(), ProductID: "rice", ProductName: "Rice", Price: 10, Quantity: 1})
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("unknown agent: got %v", err)
	}
}

func TestConfirm_PartialAndRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.placeOrder(t).Order.ID
	b := f.placeOrder(t).Order.ID

	if _, err := f.lifecycle.Confirm(ctx, []string{a}, "admin"); err != nil {
		t.Fatal(err)
	}

	res, err := f.lifecycle.Confirm(ctx, []string{a, b, b}, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if res.Requested != 2 || res.Matched != 1 || res.Orders[0].ID != b {
		t.Fatalf("result = %+v", res)
	}
	if res.Outcome() != OutcomePartiallyUpdated {
		t.Fatalf("outcome = %s", res.Outcome())
	}

	retry, err := f.lifecycle.Confirm(ctx, []string{a, b}, "admin")
	if err != nil {
		t.Fatalf("retry should not error: %v", err)
	}
	if retry.Matched != 0 || retry.Outcome() != OutcomeNoneUpdated || retry.ReportID != nil {
		t.Fatalf("retry = %+v", retry)
	}
}

func TestConfirm_GeneratesReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := []string{f.placeOrder(t).Order.ID, f.placeOrder(t).Order.ID}

	res, err := f.lifecycle.Confirm(ctx, ids, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if res.ReportID == nil {
		t.Fatal("no report generated")
	}
	report, err := f.reports.GetReport(ctx, *res.ReportID)
	if err != nil {
		t.Fatal(err)
	}
	if report.OrderCount != 2 || report.GrandTotal != 300 {
		t.Fatalf("report = %+v", report)
	}
	var body models.ReportBody
	if err := json.Unmarshal([]byte(report.ReportData), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Lines) != 2 || body.Lines[0].ProductName != "Oil" || body.Lines[0].Quantity != 4 || body.Lines[1].Total != 200 {
		t.Fatalf("report lines = %+v", body.Lines)
	}

	if _, err := f.reports.GetReport(ctx, 9999); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("missing report: got %v", err)
	}
}

func TestCancel_Boundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pending := f.placeOrder(t).Order.ID
	delivered := f.placeOrder(t).Order.ID
	for _, apply := range []func(context.Context, []string, string) (*TransitionResult, error){
		f.lifecycle.Confirm, f.lifecycle.Dispatch, f.lifecycle.Deliver,
	} {
		if _, err := apply(ctx, []string{delivered}, "admin"); err != nil {
			t.Fatal(err)
		}
	}
	f.lifecycle.Wait()

	res, err := f.lifecycle.Cancel(ctx, []string{pending, delivered}, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched != 1 || res.Orders[0].ID != pending || res.Orders[0].CancellationDate == nil {
		t.Fatalf("cancel = %+v", res)
	}

	again, err := f.lifecycle.Return(ctx, []string{pending}, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if again.Matched != 0 {
		t.Fatalf("cancelled order should be terminal, got %+v", again)
	}
}

func TestApply_RequiresIDs(t *testing.T) {
	f := newFixture(t)
	if _, err := f.lifecycle.Deliver(context.Background(), []string{"", ""}, "admin"); !errors.Is(err, ErrNoOrderIDs) {
		t.Fatalf("got %v, want ErrNoOrderIDs", err)
	}
}

func TestListOrders_DefaultsAndEnrichment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.placeOrder(t)
	f.placeOrder(t)

	page, err := f.orders.ListOrders(ctx, repository.OrderFilter{Limit: 500})
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.Page != 1 || page.Pagination.Limit != 100 || page.Pagination.Total != 2 || page.Pagination.TotalPages != 1 {
		t.Fatalf("pagination = %+v", page.Pagination)
	}
	for _, o := range page.Orders {
		if o.AgentName != "Ravi" || o.CartTotal != 150 {
			t.Fatalf("order view = %+v", o)
		}
	}

	if _, err := f.orders.GetOrder(ctx, uuid.NewString()); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("missing order: got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users := NewUserService(repository.NewUserRepository(f.db))
	if err := users.CreateUser(ctx, &models.User{Username: "ops", Role: string(models.Admin), IsActive: true}, "s3cret"); err != nil {
		t.Fatal(err)
	}

	if _, err := users.Authenticate(ctx, "ops", "s3cret"); err != nil {
		t.Fatalf("valid credentials: %v", err)
	}
	if _, err := users.Authenticate(ctx, "ops", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := users.Authenticate(ctx, "nobody", "s3cret"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown user: got %v", err)
	}
}

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"delivery_ops/internal/database"
	"delivery_ops/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory(uuid.NewString())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func seedOrder(t *testing.T, repo OrderRepository, status models.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		AgentID:   "agent-1",
		Status:    status,
		OrderType: models.Delivery,
		PlacedAt:  time.Now(),
		Items: []models.OrderItem{
			{ProductID: "p1", ProductName: "Rice", Price: 50, Quantity: 2, LineTotal: 100},
		},
	}
	if err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestTransition_PartialEffect(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	a := seedOrder(t, repo, models.OrderPending)
	b := seedOrder(t, repo, models.OrderConfirmed)

	updated, err := repo.Transition(ctx, TransitionRequest{IDs: []string{a.ID, b.ID}, Transition: models.Confirm, ChangedBy: "admin"})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if len(updated) != 1 || updated[0].ID != a.ID {
		t.Fatalf("updated = %+v, want only %s", updated, a.ID)
	}
	if updated[0].ConfirmedAt == nil {
		t.Fatal("confirmed_at not set")
	}
	if len(updated[0].Items) != 1 {
		t.Fatalf("items not preloaded: %+v", updated[0].Items)
	}

	gotB, err := repo.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotB.Status != models.OrderConfirmed || gotB.ConfirmedAt != nil {
		t.Fatalf("b should be untouched, got %+v", gotB)
	}
}

func TestTransition_RetryMatchesNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	ids := []string{
		seedOrder(t, repo, models.OrderPending).ID,
		seedOrder(t, repo, models.OrderPending).ID,
	}

	first, err := repo.Transition(ctx, TransitionRequest{IDs: ids, Transition: models.Confirm})
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.Transition(ctx, TransitionRequest{IDs: ids, Transition: models.Confirm})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || len(second) != 0 {
		t.Fatalf("first=%d second=%d, want 2 and 0", len(first), len(second))
	}
}

func TestTransition_TimestampsSetOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	o := seedOrder(t, repo, models.OrderPending)

	earlier := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	if err := db.Model(&models.Order{}).Where("id = ?", o.ID).Update("confirmed_at", earlier).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Transition(ctx, TransitionRequest{IDs: []string{o.ID}, Transition: models.Confirm}); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.OrderConfirmed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ConfirmedAt == nil || !got.ConfirmedAt.Equal(earlier) {
		t.Fatalf("confirmed_at overwritten: %v, want %v", got.ConfirmedAt, earlier)
	}
}

func TestTransition_CancelBoundary(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	delivered := seedOrder(t, repo, models.OrderDelivered)
	returned := seedOrder(t, repo, models.OrderReturned)
	out := seedOrder(t, repo, models.OrderOutForDelivery)

	updated, err := repo.Transition(ctx, TransitionRequest{
		IDs:        []string{delivered.ID, returned.ID, out.ID},
		Transition: models.Cancel,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated) != 1 || updated[0].ID != out.ID || updated[0].CancellationDate == nil {
		t.Fatalf("only the out-for-delivery order should cancel, got %+v", updated)
	}
}

func TestTransition_WritesHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	o := seedOrder(t, repo, models.OrderPending)

	for _, tr := range []models.Transition{models.Confirm, models.Dispatch, models.Deliver} {
		if _, err := repo.Transition(ctx, TransitionRequest{IDs: []string{o.ID}, Transition: tr, ChangedBy: "admin"}); err != nil {
			t.Fatal(err)
		}
	}

	history, err := repo.GetStatusHistory(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.OrderStatus{models.OrderPending, models.OrderConfirmed, models.OrderOutForDelivery, models.OrderDelivered}
	if len(history) != len(want) {
		t.Fatalf("history len = %d, want %d", len(history), len(want))
	}
	for i, h := range history {
		if h.ToStatus != want[i] {
			t.Fatalf("history[%d] = %s, want %s", i, h.ToStatus, want[i])
		}
		if i > 0 && !models.CanTransition(history[i-1].ToStatus, h.ToStatus) {
			t.Fatalf("history step %s -> %s is not a lifecycle edge", history[i-1].ToStatus, h.ToStatus)
		}
	}
}

func TestTransition_CancelHistoryKeepsOrigin(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	pending := seedOrder(t, repo, models.OrderPending)
	confirmed := seedOrder(t, repo, models.OrderPending)
	if _, err := repo.Transition(ctx, TransitionRequest{IDs: []string{confirmed.ID}, Transition: models.Confirm}); err != nil {
		t.Fatal(err)
	}

	updated, err := repo.Transition(ctx, TransitionRequest{IDs: []string{pending.ID, confirmed.ID}, Transition: models.Cancel, ChangedBy: "admin"})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated) != 2 {
		t.Fatalf("updated = %d, want 2", len(updated))
	}

	for id, want := range map[string]models.OrderStatus{pending.ID: models.OrderPending, confirmed.ID: models.OrderConfirmed} {
		history, err := repo.GetStatusHistory(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		last := history[len(history)-1]
		if last.ToStatus != models.OrderCancelled || last.FromStatus != want {
			t.Fatalf("order %s last history = %s -> %s, want %s -> cancelled", id, last.FromStatus, last.ToStatus, want)
		}
	}
}

func TestTransition_ConcurrentOverlap(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	const n = 6
	ids := make([]string, n)
	for i := range ids {
		ids[i] = seedOrder(t, repo, models.OrderPending).ID
	}

	// Two admins confirm the same batch at once; every order moves once.
	var wg sync.WaitGroup
	matched := make([]int, 2)
	errs := make([]error, 2)
	for i := range matched {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			updated, err := repo.Transition(ctx, TransitionRequest{IDs: ids, Transition: models.Confirm, ChangedBy: "admin"})
			matched[i], errs[i] = len(updated), err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if matched[0]+matched[1] != n {
		t.Fatalf("matched %d + %d, want %d in total", matched[0], matched[1], n)
	}

	// Dispatch racing cancel: each order ends in exactly one of the two
	// targets, and its history never records a step twice.
	half := ids[:n/2]
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := repo.Transition(ctx, TransitionRequest{IDs: ids, Transition: models.Dispatch}); err != nil {
			t.Error(err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := repo.Transition(ctx, TransitionRequest{IDs: half, Transition: models.Cancel}); err != nil {
			t.Error(err)
		}
	}()
	wg.Wait()

	for _, id := range ids {
		history, err := repo.GetStatusHistory(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		seen := map[models.OrderStatus]bool{}
		for i, h := range history {
			if seen[h.ToStatus] {
				t.Fatalf("order %s entered %s twice", id, h.ToStatus)
			}
			seen[h.ToStatus] = true
			if i > 0 && h.FromStatus != history[i-1].ToStatus {
				t.Fatalf("order %s history step %s -> %s does not follow %s", id, h.FromStatus, h.ToStatus, history[i-1].ToStatus)
			}
		}
		if !seen[models.OrderConfirmed] {
			t.Fatalf("order %s was never confirmed: %+v", id, history)
		}
		got, err := repo.GetByID(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != models.OrderOutForDelivery && got.Status != models.OrderCancelled {
			t.Fatalf("order %s ended in %s", id, got.Status)
		}
	}
}

func TestList_FiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	for i := 0; i < 3; i++ {
		seedOrder(t, repo, models.OrderPending)
	}
	seedOrder(t, repo, models.OrderConfirmed)

	orders, total, err := repo.List(ctx, OrderFilter{Status: models.OrderPending, Page: 1, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(orders) != 2 {
		t.Fatalf("total=%d len=%d, want 3 and 2", total, len(orders))
	}

	orders, _, err = repo.List(ctx, OrderFilter{Status: models.OrderPending, Page: 2, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("page 2 len = %d, want 1", len(orders))
	}
}

func TestCartRepository_MergesSameVariant(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(newTestDB(t))
	for i := 0; i < 2; i++ {
		item := &models.CartItem{AgentID: "a1", ProductID: "p1", ProductName: "Rice", VariantName: "5kg", Price: 10, Quantity: 1}
		if err := repo.AddItem(ctx, item); err != nil {
			t.Fatal(err)
		}
	}
	items, err := repo.GetByAgent(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("items = %+v", items)
	}
	if err := repo.ClearAgent(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if items, _ := repo.GetByAgent(ctx, "a1"); len(items) != 0 {
		t.Fatalf("cart not cleared: %+v", items)
	}
}

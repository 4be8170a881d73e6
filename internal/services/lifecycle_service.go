package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"delivery_ops/internal/events"
	"delivery_ops/internal/models"
	"delivery_ops/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	OutcomeAllUpdated       = "all_updated"
	OutcomePartiallyUpdated = "partially_updated"
	OutcomeNoneUpdated      = "none_updated"
)

// TransitionResult reports a bulk transition. Matched below Requested is a
// partial success, not an error.
type TransitionResult struct {
	Transition string         `json:"transition"`
	Requested  int            `json:"requested"`
	Matched    int            `json:"matched"`
	Orders     []models.Order `json:"orders"`
	ReportID   *uint          `json:"report_id,omitempty"`
	Advisories []string       `json:"advisories,omitempty"`
}

func (r *TransitionResult) Outcome() string {
	switch {
	case r.Matched == 0:
		return OutcomeNoneUpdated
	case r.Matched < r.Requested:
		return OutcomePartiallyUpdated
	default:
		return OutcomeAllUpdated
	}
}

type LifecycleService interface {
	Confirm(ctx context.Context, ids []string, actor string) (*TransitionResult, error)
	Dispatch(ctx context.Context, ids []string, actor string) (*TransitionResult, error)
	Deliver(ctx context.Context, ids []string, actor string) (*TransitionResult, error)
	Return(ctx context.Context, ids []string, actor string) (*TransitionResult, error)
	Cancel(ctx context.Context, ids []string, actor string) (*TransitionResult, error)
	Apply(ctx context.Context, t models.Transition, ids []string, actor string) (*TransitionResult, error)
	// Wait blocks until background agent notifications have finished.
	Wait()
}

type lifecycleService struct {
	orderRepo     repository.OrderRepository
	agentRepo     repository.AgentRepository
	reportService ReportService
	notifier      Notifier
	publisher     events.Publisher

	notifyTimeout time.Duration
	wg            sync.WaitGroup
}

func NewLifecycleService(
	orderRepo repository.OrderRepository,
	agentRepo repository.AgentRepository,
	reportService ReportService,
	notifier Notifier,
	publisher events.Publisher,
) LifecycleService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &lifecycleService{
		orderRepo:     orderRepo,
		agentRepo:     agentRepo,
		reportService: reportService,
		notifier:      notifier,
		publisher:     publisher,
		notifyTimeout: 30 * time.Second,
	}
}

func (s *lifecycleService) Confirm(ctx context.Context, ids []string, actor string) (*TransitionResult, error) {
	return s.Apply(ctx, models.Confirm, ids, actor)
}

func (s *lifecycleService) Dispatch(ctx context.Context, ids []string, actor string) (*TransitionResult, error) {
	return s.Apply(ctx, models.Dispatch, ids, actor)
}

func (s *lifecycleService) Deliver(ctx context.Context, ids []string, actor string) (*TransitionResult, error) {
	return s.Apply(ctx, models.Deliver, ids, actor)
}

func (s *lifecycleService) Return(ctx context.Context, ids []string, actor string) (*TransitionResult, error) {
	return s.Apply(ctx, models.Return, ids, actor)
}

func (s *lifecycleService) Cancel(ctx context.Context, ids []string, actor string) (*TransitionResult, error) {
	return s.Apply(ctx, models.Cancel, ids, actor)
}

// Apply runs one conditional bulk update for the transition. Orders not in an
// origin status are skipped. The call only fails when the store does;
// side effects of a successful update are best effort.
func (s *lifecycleService) Apply(ctx context.Context, t models.Transition, ids []string, actor string) (*TransitionResult, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrNoOrderIDs
	}

	now := time.Now()
	updated, err := s.orderRepo.Transition(ctx, repository.TransitionRequest{
		IDs:        ids,
		Transition: t,
		ChangedBy:  actor,
		At:         now,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(updated, func(i, j int) bool { return updated[i].ID < updated[j].ID })

	result := &TransitionResult{
		Transition: t.Name,
		Requested:  len(ids),
		Matched:    len(updated),
		Orders:     updated,
	}
	if result.Orders == nil {
		result.Orders = []models.Order{}
	}

	log.Info().
		Str("action", "orders_"+t.Name).
		Str("actor", actor).
		Int("requested", result.Requested).
		Int("matched", result.Matched).
		Str("outcome", result.Outcome()).
		Msg("Bulk transition applied")

	if result.Matched == 0 {
		return result, nil
	}

	matchedIDs := make([]string, len(updated))
	for i, o := range updated {
		matchedIDs[i] = o.ID
	}
	if err := s.publisher.Publish(ctx, events.OrderEvent{
		Type:       "order.status_changed",
		OrderIDs:   matchedIDs,
		Status:     string(t.To),
		Transition: t.Name,
		Actor:      actor,
		OccurredAt: now,
	}); err != nil {
		log.Warn().Err(err).Str("action", "event_publish_failed").Str("transition", t.Name).Msg("Failed to publish status event")
		result.Advisories = append(result.Advisories, "status event not published")
	}

	switch t.Name {
	case models.Confirm.Name:
		s.generateReport(ctx, result, actor)
	case models.Dispatch.Name:
		s.notifyAgents(updated)
	}
	return result, nil
}

func (s *lifecycleService) generateReport(ctx context.Context, result *TransitionResult, actor string) {
	if s.reportService == nil {
		return
	}
	report, err := s.reportService.GenerateConfirmationReport(ctx, result.Orders, actor)
	if err != nil {
		log.Error().Err(err).Str("action", "report_failed").Msg("Failed to generate confirmation report")
		result.Advisories = append(result.Advisories, "confirmation report not generated")
		return
	}
	result.ReportID = &report.ID
}

// notifyAgents tells each agent with dispatched orders that their route is
// active. It runs in the background; the transition has already committed.
func (s *lifecycleService) notifyAgents(orders []models.Order) {
	if s.notifier == nil {
		return
	}
	counts := map[string]int{}
	for _, o := range orders {
		counts[o.AgentID]++
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		agentIDs := make([]string, 0, len(counts))
		for id := range counts {
			agentIDs = append(agentIDs, id)
		}
		agents, err := s.agentRepo.GetByIDs(ctx, agentIDs)
		if err != nil {
			log.Error().Err(err).Str("action", "notify_agents_failed").Msg("Failed to load agents for notification")
			return
		}
		routeIDs := make([]string, 0, len(agents))
		for _, a := range agents {
			routeIDs = append(routeIDs, a.RouteID)
		}
		routeNames := map[string]string{}
		if routes, err := s.agentRepo.GetRoutesByIDs(ctx, dedupe(routeIDs)); err == nil {
			for _, r := range routes {
				routeNames[r.ID] = r.Name
			}
		}

		for _, a := range agents {
			if err := s.notifier.NotifyRouteActive(ctx, a, routeNames[a.RouteID], counts[a.ID]); err != nil {
				log.Warn().Err(err).Str("action", "notify_agent_failed").Str("agent_id", a.ID).Msg("Failed to notify agent")
				continue
			}
			log.Info().Str("action", "agent_notified").Str("agent_id", a.ID).Int("orders", counts[a.ID]).Msg("Agent notified of active route")
		}
	}()
}

func (s *lifecycleService) Wait() {
	s.wg.Wait()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

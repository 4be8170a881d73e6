package printing

import (
	"context"
	"time"

	"delivery_ops/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DispatchResult says how far a dispatch got. It never reports rendering.
// StatusNotTracked means the job went out but its outcome cannot be polled.
type DispatchResult struct {
	JobID            string `json:"job_id"`
	NoPrinters       bool   `json:"no_printers"`
	Members          int    `json:"connected_printers"`
	Notified         int    `json:"notified"`
	StatusNotTracked bool   `json:"status_not_tracked,omitempty"`
}

type Broker struct {
	registry    *Registry
	store       JobStore
	concurrency int
	now         func() time.Time
}

func NewBroker(registry *Registry, store JobStore, concurrency int) *Broker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Broker{
		registry:    registry,
		store:       store,
		concurrency: concurrency,
		now:         time.Now,
	}
}

func (b *Broker) Registry() *Registry {
	return b.registry
}

// RegisterPrinter joins a connection to the printers group.
func (b *Broker) RegisterPrinter(c Conn, info PrinterInfo) {
	b.registry.Register(c, info)
	log.Info().
		Str("action", "printer_registered").
		Str("connection_id", c.ID()).
		Str("printer_name", info.Name).
		Int("printers", b.registry.Count()).
		Msg("Printer joined")
}

// Dispatch sends the job to every registered printer. With no printers the
// job is dropped and reported as such; nothing is queued for later. Send
// failures on individual connections and on the status store are logged and
// otherwise ignored.
func (b *Broker) Dispatch(ctx context.Context, job PrintJob) (DispatchResult, error) {
	printers := b.registry.Printers()
	result := DispatchResult{JobID: job.JobID, Members: len(printers)}
	if len(printers) == 0 {
		result.NoPrinters = true
		log.Warn().Str("action", "print_no_printers").Str("job_id", job.JobID).Msg("No printers connected")
		return result, nil
	}

	if job.DispatchedAt.IsZero() {
		job.DispatchedAt = b.now()
	}
	status := &models.PrintJobStatus{
		JobID:        job.JobID,
		OrderID:      job.Payload.OrderID,
		DispatchedAt: job.DispatchedAt,
		Outcome:      models.PrintPending,
		UpdatedAt:    job.DispatchedAt,
	}
	if err := b.store.Put(ctx, status); err != nil {
		result.StatusNotTracked = true
		log.Error().Err(err).
			Str("action", "print_status_store_failed").
			Str("job_id", job.JobID).
			Msg("Failed to track print job, dispatching anyway")
	}

	msg := Message{Event: EventPrintOrder, Data: job}
	sent := make([]bool, len(printers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, p := range printers {
		g.Go(func() error {
			if err := p.Send(gctx, msg); err != nil {
				log.Warn().Err(err).
					Str("action", "print_send_failed").
					Str("job_id", job.JobID).
					Str("connection_id", p.ID()).
					Msg("Failed to deliver print job")
				return nil
			}
			sent[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range sent {
		if ok {
			result.Notified++
		}
	}
	log.Info().
		Str("action", "print_dispatched").
		Str("job_id", job.JobID).
		Int("printers", result.Members).
		Int("notified", result.Notified).
		Msg("Print job dispatched")
	return result, nil
}

// ReportOutcome records a printer's acknowledgement. Every report is kept;
// the job's outcome follows whichever report was processed last.
func (b *Broker) ReportOutcome(ctx context.Context, jobID, connectionID string, success bool, detail string) error {
	report := models.PrintReport{
		ConnectionID: connectionID,
		Success:      success,
		Detail:       detail,
		ReportedAt:   b.now(),
	}
	if err := b.store.Record(ctx, jobID, report); err != nil {
		return err
	}
	log.Info().
		Str("action", "print_outcome").
		Str("job_id", jobID).
		Str("connection_id", connectionID).
		Bool("success", success).
		Str("detail", detail).
		Msg("Printer reported outcome")
	return nil
}

// QueryOutcome returns ErrJobNotFound when the job is unknown, expired or was
// never tracked; callers must not read that as a failed print.
func (b *Broker) QueryOutcome(ctx context.Context, jobID string) (*models.PrintJobStatus, error) {
	return b.store.Get(ctx, jobID)
}

func (b *Broker) ConnectedCount() int {
	return b.registry.Count()
}

func (b *Broker) TotalConnections() int {
	return b.registry.Total()
}

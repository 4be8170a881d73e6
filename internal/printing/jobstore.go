package printing

import (
	"context"
	"errors"
	"sync"
	"time"

	"delivery_ops/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var ErrJobNotFound = errors.New("print job not found")

// JobStore keeps print job outcomes for a bounded time. Get returns
// ErrJobNotFound both for unknown and for expired jobs.
type JobStore interface {
	Put(ctx context.Context, status *models.PrintJobStatus) error
	Record(ctx context.Context, jobID string, report models.PrintReport) error
	Get(ctx context.Context, jobID string) (*models.PrintJobStatus, error)
}

// MemoryJobStore is a size-bounded LRU whose entries expire after a fixed
// TTL measured from dispatch; expired entries are swept in the background.
type MemoryJobStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *models.PrintJobStatus]
}

func NewMemoryJobStore(maxEntries int, ttl time.Duration) *MemoryJobStore {
	return &MemoryJobStore{
		cache: expirable.NewLRU[string, *models.PrintJobStatus](maxEntries, nil, ttl),
	}
}

func (s *MemoryJobStore) Put(_ context.Context, status *models.PrintJobStatus) error {
	cp := *status
	cp.Reports = append([]models.PrintReport(nil), status.Reports...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(cp.JobID, &cp)
	return nil
}

// Record applies a report in place so the entry keeps its original expiry.
// Reports for unknown jobs start a new entry.
func (s *MemoryJobStore) Record(_ context.Context, jobID string, report models.PrintReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.cache.Get(jobID)
	if !ok {
		status = &models.PrintJobStatus{
			JobID:        jobID,
			DispatchedAt: report.ReportedAt,
			Outcome:      models.PrintPending,
		}
		s.cache.Add(jobID, status)
	}
	status.Apply(report)
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, jobID string) (*models.PrintJobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.cache.Get(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *status
	cp.Reports = append([]models.PrintReport(nil), status.Reports...)
	return &cp, nil
}

func (s *MemoryJobStore) Len() int {
	return s.cache.Len()
}

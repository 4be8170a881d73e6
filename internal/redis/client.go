package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"delivery_ops/internal/models"
	"delivery_ops/internal/printing"

	"github.com/go-redis/redis/v8"
)

// Client is a print job store shared by every server process pointing at
// the same Redis. Each job lives under two keys that expire together.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

func Initialize(redisURL string, ttl time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

func jobKey(jobID string) string {
	return "print_job:" + jobID
}

func reportsKey(jobID string) string {
	return "print_job:" + jobID + ":reports"
}

func (c *Client) Put(ctx context.Context, status *models.PrintJobStatus) error {
	stored := *status
	stored.Reports = nil
	jsonData, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal print job: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, jobKey(status.JobID), jsonData, c.ttl)
	pipe.Del(ctx, reportsKey(status.JobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store print job: %w", err)
	}
	return nil
}

// Record appends the report and overwrites the job's current outcome under
// an optimistic lock on the job key, so concurrent reports serialize.
func (c *Client) Record(ctx context.Context, jobID string, report models.PrintReport) error {
	reportData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal print report: %w", err)
	}

	key := jobKey(jobID)
	txf := func(tx *redis.Tx) error {
		status := &models.PrintJobStatus{
			JobID:        jobID,
			DispatchedAt: report.ReportedAt,
			Outcome:      models.PrintPending,
		}
		ttl := c.ttl
		val, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(val), status); err != nil {
				return fmt.Errorf("failed to unmarshal print job: %w", err)
			}
			if remaining, err := tx.PTTL(ctx, key).Result(); err == nil && remaining > 0 {
				ttl = remaining
			}
		}

		status.Apply(report)
		status.Reports = nil
		jsonData, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal print job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, jsonData, ttl)
			pipe.RPush(ctx, reportsKey(jobID), reportData)
			pipe.PExpire(ctx, reportsKey(jobID), ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 5; attempt++ {
		err = c.rdb.Watch(ctx, txf, key)
		if err != redis.TxFailedErr {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to record print report: %w", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, jobID string) (*models.PrintJobStatus, error) {
	val, err := c.rdb.Get(ctx, jobKey(jobID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, printing.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}

	var status models.PrintJobStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal print job: %w", err)
	}

	raw, err := c.rdb.LRange(ctx, reportsKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get print reports: %w", err)
	}
	for _, r := range raw {
		var report models.PrintReport
		if err := json.Unmarshal([]byte(r), &report); err == nil {
			status.Reports = append(status.Reports, report)
		}
	}
	return &status, nil
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

var _ printing.JobStore = (*Client)(nil)

package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/core/ports"
	"github.com/samirrijal/rentalscope/internal/pkg/metrics"
	"github.com/samirrijal/rentalscope/internal/pkg/telemetry"
)

// minBackoff is the floor applied to every retry delay.
const minBackoff = 100 * time.Millisecond

// BatchConfig bounds concurrency and retries of detail fetching.
type BatchConfig struct {
	MaxConcurrency int
	MaxRetries     int
	BaseDelay      time.Duration
	JitterFactor   float64
}

// DefaultBatchConfig returns conservative limits for the detail endpoint.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		MaxRetries:     3,
		BaseDelay:      500 * time.Millisecond,
		JitterFactor:   0.1,
	}
}

// FetchOutcome is the per-listing result of a batch, in input order.
type FetchOutcome struct {
	ListingID string
	Record    *domain.DerivedRecord
	Err       error
	Attempts  int
}

// BatchFetchService fetches listing details with bounded concurrency and
// per-item retry of transient failures.
type BatchFetchService struct {
	fetcher ports.DetailFetcher
	cfg     BatchConfig
	sleep   func(ctx context.Context, d time.Duration) error
	rand    func() float64
}

// BatchOption customises a BatchFetchService.
type BatchOption func(*BatchFetchService)

// WithSleep replaces the backoff sleep. fn must return ctx.Err() when ctx ends first.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) BatchOption {
	return func(s *BatchFetchService) { s.sleep = fn }
}

// WithRand replaces the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) BatchOption {
	return func(s *BatchFetchService) { s.rand = fn }
}

// NewBatchFetchService creates a new BatchFetchService.
func NewBatchFetchService(fetcher ports.DetailFetcher, cfg BatchConfig, opts ...BatchOption) *BatchFetchService {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.JitterFactor < 0 {
		cfg.JitterFactor = 0
	}
	s := &BatchFetchService{
		fetcher: fetcher,
		cfg:     cfg,
		sleep:   sleepCtx,
		rand:    rand.Float64,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchAll fetches every listing and returns the records in input order.
// If any listing fails, the result is a single InvalidResponseError joining
// all failure messages; successful siblings are still fetched but discarded.
func (s *BatchFetchService) FetchAll(ctx context.Context, listingIDs []string, timeout time.Duration) ([]domain.DerivedRecord, error) {
	if len(listingIDs) == 0 {
		return []domain.DerivedRecord{}, nil
	}

	outcomes := s.FetchOutcomes(ctx, listingIDs, timeout)

	records := make([]domain.DerivedRecord, 0, len(outcomes))
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
			continue
		}
		records = append(records, *o.Record)
	}
	if len(errs) > 0 {
		return nil, domain.AggregateInvalidResponse(errs)
	}
	return records, nil
}

// FetchOutcomes runs the worker pool and returns one outcome per input id,
// slot i holding the outcome for listingIDs[i].
func (s *BatchFetchService) FetchOutcomes(ctx context.Context, listingIDs []string, timeout time.Duration) []FetchOutcome {
	n := len(listingIDs)
	slots := make([]FetchOutcome, n)
	if n == 0 {
		return slots
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanBatchFetch)
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", n))

	start := time.Now()
	defer func() { metrics.BatchFetchDuration.Observe(time.Since(start).Seconds()) }()

	workers := min(s.cfg.MaxConcurrency, n)

	// Workers claim indices from a shared cursor and write only their own slot.
	var cursor atomic.Int64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1) - 1)
				if i >= n {
					return nil
				}
				slots[i] = s.fetchWithRetry(ctx, listingIDs[i], timeout)
			}
		})
	}
	_ = g.Wait()

	return slots
}

func (s *BatchFetchService) fetchWithRetry(ctx context.Context, listingID string, timeout time.Duration) FetchOutcome {
	out := FetchOutcome{ListingID: listingID}
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		out.Attempts = attempt

		rec, err := s.fetcher.Fetch(ctx, listingID, timeout)
		if err == nil && rec == nil {
			err = domain.NewInvalidResponseError(fmt.Sprintf("Empty detail response for listingId=%s", listingID), 0)
		}
		if err == nil {
			if rec.ListingID == "" {
				rec.ListingID = listingID
			}
			metrics.DetailFetchAttempts.WithLabelValues("success").Inc()
			out.Record = rec
			return out
		}
		lastErr = err

		if !domain.IsTransient(err) || attempt == s.cfg.MaxRetries {
			metrics.DetailFetchAttempts.WithLabelValues("failure").Inc()
			break
		}
		metrics.DetailFetchAttempts.WithLabelValues("retry").Inc()
		metrics.DetailFetchRetries.Inc()

		delay := s.BackoffDelay(attempt)
		slog.Debug("retrying listing detail", "listing_id", listingID, "attempt", attempt, "delay", delay, "error", err)
		if err := s.sleep(ctx, delay); err != nil {
			lastErr = domain.NewTimeoutError(timeout, err)
			break
		}
	}

	if lastErr == nil {
		lastErr = domain.NewInvalidResponseError(fmt.Sprintf("Unknown detail error for listingId=%s", listingID), 0)
	}
	slog.Warn("listing detail failed", "listing_id", listingID, "attempts", out.Attempts, "error", lastErr)
	out.Err = lastErr
	return out
}

// BackoffDelay returns the jittered exponential delay before retry number
// attempt+1: base·2^(attempt-1) ± JitterFactor, floored to whole
// milliseconds and never below 100ms.
func (s *BatchFetchService) BackoffDelay(attempt int) time.Duration {
	exp := float64(s.cfg.BaseDelay.Milliseconds()) * math.Pow(2, float64(attempt-1))
	jitter := exp * s.cfg.JitterFactor
	lo, hi := exp-jitter, exp+jitter

	ms := math.Floor(lo + s.rand()*(hi-lo))
	d := time.Duration(ms) * time.Millisecond
	if d < minBackoff {
		return minBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

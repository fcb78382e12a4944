package usecases_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/core/usecases"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func batchConfig() usecases.BatchConfig {
	return usecases.BatchConfig{MaxConcurrency: 3, MaxRetries: 3, BaseDelay: 200 * time.Millisecond, JitterFactor: 0.2}
}

func TestBatchFetch_Empty(t *testing.T) {
	fetcher := &mockFetcher{}
	svc := usecases.NewBatchFetchService(fetcher, batchConfig())

	recs, err := svc.FetchAll(context.Background(), nil, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", recs)
	}
	if fetcher.total() != 0 {
		t.Errorf("expected no fetches, got %d", fetcher.total())
	}
}

func TestBatchFetch_PreservesInputOrder(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	// Earlier ids finish later.
	fetcher := &mockFetcher{fetchFn: func(id string, attempt int) (*domain.DerivedRecord, error) {
		time.Sleep(time.Duration(len(ids)-strings.Index("abcdefg", id)) * time.Millisecond)
		return &domain.DerivedRecord{ListingID: id, HTMLTexts: []string{"html-" + id}}, nil
	}}
	svc := usecases.NewBatchFetchService(fetcher, batchConfig())

	recs, err := svc.FetchAll(context.Background(), ids, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != len(ids) {
		t.Fatalf("expected %d records, got %d", len(ids), len(recs))
	}
	for i, id := range ids {
		if recs[i].ListingID != id || recs[i].HTMLTexts[0] != "html-"+id {
			t.Errorf("slot %d: expected %s, got %+v", i, id, recs[i])
		}
	}
}

func TestBatchFetch_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fetcher := &mockFetcher{fetchFn: func(id string, attempt int) (*domain.DerivedRecord, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return &domain.DerivedRecord{ListingID: id}, nil
	}}
	cfg := batchConfig()
	cfg.MaxConcurrency = 2
	svc := usecases.NewBatchFetchService(fetcher, cfg)

	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	if _, err := svc.FetchAll(context.Background(), ids, time.Second); err != nil {
		t.Fatal(err)
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent fetches, saw %d", peak.Load())
	}
	for _, id := range ids {
		if fetcher.count(id) != 1 {
			t.Errorf("expected %s fetched once, got %d", id, fetcher.count(id))
		}
	}
}

func TestBatchFetch_TimeoutRetriedMaxTimes(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(id string, attempt int) (*domain.DerivedRecord, error) {
		return nil, domain.NewTimeoutError(time.Second, nil)
	}}
	rec := &sleepRecorder{}
	cfg := batchConfig()
	svc := usecases.NewBatchFetchService(fetcher, cfg, usecases.WithSleep(rec.sleep))

	_, err := svc.FetchAll(context.Background(), []string{"x"}, time.Second)
	if domain.KindOf(err) != domain.KindInvalidResponse {
		t.Fatalf("expected aggregated InvalidResponseError, got %v", err)
	}
	if err.Error() != "Request timed out" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if fetcher.count("x") != cfg.MaxRetries {
		t.Errorf("expected %d attempts, got %d", cfg.MaxRetries, fetcher.count("x"))
	}
	if len(rec.delays) != cfg.MaxRetries-1 {
		t.Fatalf("expected %d sleeps, got %d", cfg.MaxRetries-1, len(rec.delays))
	}
	for i, d := range rec.delays {
		exp := float64(cfg.BaseDelay.Milliseconds()) * float64(int(1)<<i)
		lo := time.Duration(exp*(1-cfg.JitterFactor)) * time.Millisecond
		hi := time.Duration(exp*(1+cfg.JitterFactor)) * time.Millisecond
		if d < 100*time.Millisecond {
			t.Errorf("delay %d below floor: %v", i, d)
		}
		if d < lo || d > hi {
			t.Errorf("delay %d = %v outside [%v, %v]", i, d, lo, hi)
		}
	}
}

func TestBatchFetch_RateLimitIsTransient(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(id string, attempt int) (*domain.DerivedRecord, error) {
		if attempt < 3 {
			return nil, domain.NewInvalidResponseError("HTTP 429 Too Many Requests", 429)
		}
		return &domain.DerivedRecord{ListingID: id}, nil
	}}
	rec := &sleepRecorder{}
	svc := usecases.NewBatchFetchService(fetcher, batchConfig(), usecases.WithSleep(rec.sleep))

	recs, err := svc.FetchAll(context.Background(), []string{"r"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || fetcher.count("r") != 3 {
		t.Errorf("expected success on 3rd attempt, got %d attempts", fetcher.count("r"))
	}
}

func TestBatchFetch_PermanentErrorNotRetried(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(id string, attempt int) (*domain.DerivedRecord, error) {
		return nil, domain.NewInvalidResponseError("HTTP 404 Not Found", 404)
	}}
	rec := &sleepRecorder{}
	svc := usecases.NewBatchFetchService(fetcher, batchConfig(), usecases.WithSleep(rec.sleep))

	_, err := svc.FetchAll(context.Background(), []string{"p"}, time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
	if fetcher.count("p") != 1 {
		t.Errorf("expected a single attempt, got %d", fetcher.count("p"))
	}
	if len(rec.delays) != 0 {
		t.Errorf("expected no backoff, got %v", rec.delays)
	}
}

func TestBatchFetch_PartialFailureIsAggregated(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(id string, attempt int) (*domain.DerivedRecord, error) {
		if id == "B" {
			return nil, domain.NewInvalidResponseError("listing B gone", 410)
		}
		return &domain.DerivedRecord{ListingID: id}, nil
	}}
	svc := usecases.NewBatchFetchService(fetcher, batchConfig())
	ids := []string{"A", "B", "C"}

	recs, err := svc.FetchAll(context.Background(), ids, time.Second)
	if recs != nil {
		t.Errorf("expected no records on failure, got %v", recs)
	}
	if domain.KindOf(err) != domain.KindInvalidResponse || err.Error() != "listing B gone" {
		t.Fatalf("unexpected error %v", err)
	}

	outcomes := svc.FetchOutcomes(context.Background(), ids, time.Second)
	if outcomes[0].Record == nil || outcomes[0].Record.ListingID != "A" {
		t.Errorf("slot 0: expected A, got %+v", outcomes[0])
	}
	if outcomes[1].Err == nil || outcomes[1].ListingID != "B" {
		t.Errorf("slot 1: expected B failure, got %+v", outcomes[1])
	}
	if outcomes[2].Record == nil || outcomes[2].Record.ListingID != "C" {
		t.Errorf("slot 2: expected C, got %+v", outcomes[2])
	}
}

func TestBatchFetch_AggregateJoinsMessagesInOrder(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(id string, attempt int) (*domain.DerivedRecord, error) {
		return nil, domain.NewInvalidInputError("bad " + id)
	}}
	svc := usecases.NewBatchFetchService(fetcher, batchConfig())

	_, err := svc.FetchAll(context.Background(), []string{"1", "2", "3"}, time.Second)
	if err == nil || err.Error() != "bad 1; bad 2; bad 3" {
		t.Fatalf("unexpected aggregate %v", err)
	}
}

func TestBatchFetch_CancelledDuringBackoff(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(id string, attempt int) (*domain.DerivedRecord, error) {
		return nil, domain.NewTransportError(errors.New("reset"))
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := usecases.NewBatchFetchService(fetcher, batchConfig())

	outcomes := svc.FetchOutcomes(ctx, []string{"z"}, time.Second)
	if domain.KindOf(outcomes[0].Err) != domain.KindTimeout {
		t.Fatalf("expected TimeoutError after cancellation, got %v", outcomes[0].Err)
	}
	if fetcher.count("z") != 1 {
		t.Errorf("expected no retry after cancellation, got %d attempts", fetcher.count("z"))
	}
}

func TestBackoffDelay_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		r       float64
		attempt int
		want    time.Duration
	}{
		{"low edge", 0, 1, 160 * time.Millisecond},
		{"mid", 0.5, 2, 400 * time.Millisecond},
		{"high edge", 0.999999, 3, 959 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := usecases.NewBatchFetchService(&mockFetcher{}, batchConfig(),
				usecases.WithRand(func() float64 { return tt.r }))
			if got := svc.BackoffDelay(tt.attempt); got != tt.want {
				t.Errorf("BackoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestBackoffDelay_Floor(t *testing.T) {
	cfg := batchConfig()
	cfg.BaseDelay = 10 * time.Millisecond
	svc := usecases.NewBatchFetchService(&mockFetcher{}, cfg, usecases.WithRand(func() float64 { return 0 }))

	if got := svc.BackoffDelay(1); got != 100*time.Millisecond {
		t.Errorf("expected 100ms floor, got %v", got)
	}
}

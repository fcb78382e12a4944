package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// --- Mock Geocoder ---

type mockGeocoder struct {
	forwardFn func(ctx context.Context, address string, timeout time.Duration) (domain.GeoPoint, error)
}

func (m *mockGeocoder) ForwardGeocode(ctx context.Context, address string, timeout time.Duration) (domain.GeoPoint, error) {
	if m.forwardFn != nil {
		return m.forwardFn(ctx, address, timeout)
	}
	return domain.GeoPoint{Lat: 40.4168, Lng: -3.7038}, nil
}

// --- Mock RentalSearch ---

type mockSearch struct {
	mu    sync.Mutex
	calls []domain.ResolvedSearchFlags
	// findFn receives the 1-based call number.
	findFn func(call int, flags domain.ResolvedSearchFlags) ([]string, error)
}

func (m *mockSearch) FindListingIDs(ctx context.Context, flags domain.ResolvedSearchFlags, timeout time.Duration) ([]string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, flags)
	call := len(m.calls)
	m.mu.Unlock()
	if m.findFn != nil {
		return m.findFn(call, flags)
	}
	return nil, nil
}

// --- Mock DetailFetcher ---

type mockFetcher struct {
	mu     sync.Mutex
	counts map[string]int
	// fetchFn receives the 1-based attempt number for listingID.
	fetchFn func(listingID string, attempt int) (*domain.DerivedRecord, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, listingID string, timeout time.Duration) (*domain.DerivedRecord, error) {
	m.mu.Lock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[listingID]++
	attempt := m.counts[listingID]
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(listingID, attempt)
	}
	return &domain.DerivedRecord{ListingID: listingID}, nil
}

func (m *mockFetcher) count(listingID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[listingID]
}

func (m *mockFetcher) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.counts {
		n += c
	}
	return n
}

// --- Mock ListingRepository ---

type mockListingRepo struct {
	saved     []*domain.ListingsReport
	saveFn    func(ctx context.Context, report *domain.ListingsReport) error
	listFn    func(ctx context.Context, offset, limit int) ([]domain.ListingSummary, int, error)
	getByIDFn func(ctx context.Context, id string) (*domain.ListingSummary, error)
}

func (m *mockListingRepo) SaveReport(ctx context.Context, report *domain.ListingsReport) error {
	m.saved = append(m.saved, report)
	if m.saveFn != nil {
		return m.saveFn(ctx, report)
	}
	return nil
}

func (m *mockListingRepo) List(ctx context.Context, offset, limit int) ([]domain.ListingSummary, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockListingRepo) GetByID(ctx context.Context, id string) (*domain.ListingSummary, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	reports   []*domain.ListingsReport
	jobs      []domain.Job
	publishFn func(report *domain.ListingsReport) error
}

func (m *mockPublisher) PublishListingsFetched(ctx context.Context, report *domain.ListingsReport) error {
	m.mu.Lock()
	m.reports = append(m.reports, report)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(report)
	}
	return nil
}

func (m *mockPublisher) PublishJobUpdate(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, *job)
	return nil
}

// --- Mock JobStore ---

type mockJobStore struct {
	mu     sync.Mutex
	jobs   map[string]domain.Job
	saveFn func(job *domain.Job) error
}

func (m *mockJobStore) Save(ctx context.Context, job *domain.Job) error {
	if m.saveFn != nil {
		if err := m.saveFn(job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = map[string]domain.Job{}
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

// --- Mock JobRunner ---

type mockRunner struct {
	started []string
	startFn func(job *domain.Job) error
}

func (m *mockRunner) Start(ctx context.Context, job *domain.Job) error {
	m.started = append(m.started, job.ID)
	if m.startFn != nil {
		return m.startFn(job)
	}
	return nil
}

package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/rentalscope/internal/adapters/http"
	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/core/usecases"
)

// ---- Mock ports ----

type mockGeocoder struct {
	forwardFn func(ctx context.Context, address string) (domain.GeoPoint, error)
}

func (m *mockGeocoder) ForwardGeocode(ctx context.Context, address string, timeout time.Duration) (domain.GeoPoint, error) {
	if m.forwardFn != nil {
		return m.forwardFn(ctx, address)
	}
	return domain.GeoPoint{Lat: 0.5, Lng: 10}, nil
}

type mockSearch struct {
	findFn func(flags domain.ResolvedSearchFlags) ([]string, error)
}

func (m *mockSearch) FindListingIDs(ctx context.Context, flags domain.ResolvedSearchFlags, timeout time.Duration) ([]string, error) {
	if m.findFn != nil {
		return m.findFn(flags)
	}
	return []string{"101", "202"}, nil
}

type mockFetcher struct {
	fetchFn func(listingID string) (*domain.DerivedRecord, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, listingID string, timeout time.Duration) (*domain.DerivedRecord, error) {
	if m.fetchFn != nil {
		return m.fetchFn(listingID)
	}
	lat, lng := 0.5, 10.001
	return &domain.DerivedRecord{
		ListingID:       listingID,
		HTMLTexts:       []string{"<p>Bright flat</p>"},
		StructuredItems: []domain.StructuredItem{{Title: "2 guests"}, {Title: "1 bedroom"}},
		Lat:             &lat,
		Lng:             &lng,
	}, nil
}

type mockListingRepo struct {
	mu        sync.Mutex
	saved     int
	listFn    func(offset, limit int) ([]domain.ListingSummary, int, error)
	getByIDFn func(id string) (*domain.ListingSummary, error)
}

func (m *mockListingRepo) SaveReport(ctx context.Context, report *domain.ListingsReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved++
	return nil
}

func (m *mockListingRepo) List(ctx context.Context, offset, limit int) ([]domain.ListingSummary, int, error) {
	if m.listFn != nil {
		return m.listFn(offset, limit)
	}
	return []domain.ListingSummary{}, 0, nil
}

func (m *mockListingRepo) GetByID(ctx context.Context, id string) (*domain.ListingSummary, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(id)
	}
	return nil, domain.ErrNotFound
}

type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func (m *memJobStore) Save(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = map[string]domain.Job{}
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

type mockRunner struct {
	started []string
}

func (m *mockRunner) Start(ctx context.Context, job *domain.Job) error {
	m.started = append(m.started, job.ID)
	return nil
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

type fixture struct {
	geocoder *mockGeocoder
	search   *mockSearch
	fetcher  *mockFetcher
	repo     *mockListingRepo
	jobs     *memJobStore
	runner   *mockRunner
}

func newFixture() *fixture {
	return &fixture{
		geocoder: &mockGeocoder{},
		search:   &mockSearch{},
		fetcher:  &mockFetcher{},
		repo:     &mockListingRepo{},
		jobs:     &memJobStore{},
		runner:   &mockRunner{},
	}
}

func (f *fixture) deps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	resolver := usecases.NewViewportService(f.geocoder, f.search, usecases.DefaultViewportConfig())
	fetcher := usecases.NewBatchFetchService(f.fetcher, usecases.DefaultBatchConfig(),
		usecases.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
	d := &handler.Dependencies{
		Listings:    usecases.NewListingService(resolver, fetcher, f.repo, nil),
		Jobs:        usecases.NewJobService(f.jobs, f.runner, nil),
		DB:          mockPinger{},
		CallTimeout: time.Second,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, []byte, map[string]string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, b, headers
}

func decodeError(t *testing.T, body []byte) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("decode error body %s: %v", body, err)
	}
	return apiErr
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(newFixture().deps())
	status, body, _ := do(t, app, "GET", "/v1/health", "")
	if status != 200 || !strings.Contains(string(body), `"healthy"`) {
		t.Fatalf("unexpected health response %d %s", status, body)
	}
}

func TestReady(t *testing.T) {
	f := newFixture()

	app := setupApp(f.deps())
	if status, _, _ := do(t, app, "GET", "/v1/ready", ""); status != 200 {
		t.Errorf("expected 200 with healthy database, got %d", status)
	}

	app = setupApp(f.deps(func(d *handler.Dependencies) {
		d.DB = mockPinger{err: errors.New("connection refused")}
	}))
	status, body, _ := do(t, app, "GET", "/v1/ready", "")
	if status != 503 || !strings.Contains(string(body), "connection refused") {
		t.Errorf("expected 503 with failing database, got %d %s", status, body)
	}
}

// ---- Viewport ----

func TestViewport_Success(t *testing.T) {
	app := setupApp(newFixture().deps())

	status, body, _ := do(t, app, "GET", "/v1/viewport?address=1+Main+St", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var res domain.ListingsResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.ListingIDs) != 2 || res.ViewportMeta.Strategy != domain.StrategyMetersPrimary {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Center.Lat != 0.5 || res.BBox.North() <= res.BBox.South() {
		t.Errorf("unexpected geometry %+v", res)
	}
}

func TestViewport_GeoJSON(t *testing.T) {
	app := setupApp(newFixture().deps())

	status, body, headers := do(t, app, "GET", "/v1/viewport?address=1+Main+St&format=geojson", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if headers["Content-Type"] != "application/geo+json" {
		t.Errorf("unexpected content type %q", headers["Content-Type"])
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("unexpected feature collection %s", body)
	}
	if fc.Features[0].Geometry.Type != "Polygon" || fc.Features[1].Geometry.Type != "Point" {
		t.Errorf("unexpected geometries %s", body)
	}
}

func TestViewport_MissingAddress(t *testing.T) {
	app := setupApp(newFixture().deps())
	status, body, _ := do(t, app, "GET", "/v1/viewport", "")
	if status != 400 || decodeError(t, body).Code != "bad_request" {
		t.Errorf("expected 400 bad_request, got %d %s", status, body)
	}
}

func TestViewport_GeocoderTimeout(t *testing.T) {
	f := newFixture()
	f.geocoder.forwardFn = func(ctx context.Context, address string) (domain.GeoPoint, error) {
		return domain.GeoPoint{}, domain.NewTimeoutError(time.Second, context.DeadlineExceeded)
	}
	app := setupApp(f.deps())

	status, body, _ := do(t, app, "GET", "/v1/viewport?address=somewhere", "")
	if status != 504 {
		t.Fatalf("expected 504, got %d", status)
	}
	if apiErr := decodeError(t, body); apiErr.Kind != string(domain.KindTimeout) {
		t.Errorf("expected TimeoutError kind, got %+v", apiErr)
	}
}

// ---- Listings ----

func TestFindListings_Success(t *testing.T) {
	f := newFixture()
	app := setupApp(f.deps())

	status, body, _ := do(t, app, "POST", "/v1/listings", `{"address":"  1 Main St ","timeout_ms":5000}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var report domain.ListingsReport
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Address != "1 Main St" || len(report.Listings) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	first := report.Listings[0]
	if first.ListingID != "101" || first.Guests != "2 guests" || first.Description != "Bright flat" {
		t.Errorf("unexpected summary %+v", first)
	}
	if first.DistanceMeters == nil || *first.DistanceMeters < 100 || *first.DistanceMeters > 120 {
		t.Errorf("expected ~111m distance, got %v", first.DistanceMeters)
	}
	if f.repo.saved != 1 {
		t.Errorf("expected report recorded once without a broker, got %d", f.repo.saved)
	}
}

func TestFindListings_UpstreamFailure(t *testing.T) {
	f := newFixture()
	f.search.findFn = func(flags domain.ResolvedSearchFlags) ([]string, error) {
		return nil, domain.NewInvalidResponseError("HTTP 500 Internal Server Error", 500)
	}
	app := setupApp(f.deps())

	status, body, _ := do(t, app, "POST", "/v1/listings", `{"address":"1 Main St"}`)
	if status != 502 {
		t.Fatalf("expected 502, got %d: %s", status, body)
	}
	apiErr := decodeError(t, body)
	if apiErr.Kind != string(domain.KindInvalidResponse) || apiErr.StatusCode != 500 {
		t.Errorf("unexpected error body %+v", apiErr)
	}
}

func TestFindListings_PartialDetailFailure(t *testing.T) {
	f := newFixture()
	f.fetcher.fetchFn = func(listingID string) (*domain.DerivedRecord, error) {
		if listingID == "202" {
			return nil, domain.NewInvalidResponseError("HTTP 404 Not Found", 404)
		}
		return &domain.DerivedRecord{ListingID: listingID}, nil
	}
	app := setupApp(f.deps())

	status, body, _ := do(t, app, "POST", "/v1/listings", `{"address":"1 Main St"}`)
	if status != 502 || decodeError(t, body).Message != "HTTP 404 Not Found" {
		t.Errorf("expected aggregated 502, got %d %s", status, body)
	}
}

func TestFindListings_Validation(t *testing.T) {
	app := setupApp(newFixture().deps())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"blank address", `{"address":"   "}`, "Address cannot be empty"},
		{"zero timeout", `{"address":"1 Main St","timeout_ms":0}`, "timeout_ms must be positive"},
		{"malformed", `{"address":`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := do(t, app, "POST", "/v1/listings", tt.body)
			if status != 400 {
				t.Fatalf("expected 400, got %d", status)
			}
			if msg := decodeError(t, body).Message; msg != tt.want {
				t.Errorf("expected %q, got %q", tt.want, msg)
			}
		})
	}
}

func TestListStored_Pagination(t *testing.T) {
	f := newFixture()
	var gotOffset, gotLimit int
	f.repo.listFn = func(offset, limit int) ([]domain.ListingSummary, int, error) {
		gotOffset, gotLimit = offset, limit
		return []domain.ListingSummary{{ListingID: "9"}}, 45, nil
	}
	app := setupApp(f.deps())

	status, body, headers := do(t, app, "GET", "/v1/listings?offset=20&limit=10", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if gotOffset != 20 || gotLimit != 10 {
		t.Errorf("expected offset 20 limit 10, got %d %d", gotOffset, gotLimit)
	}
	var page struct {
		Data       []domain.ListingSummary `json:"data"`
		Pagination handler.Pagination      `json:"pagination"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Pagination.Total != 45 || len(page.Data) != 1 {
		t.Errorf("unexpected page %+v", page)
	}
	link := headers["Link"]
	for _, want := range []string{`offset=10&limit=10>; rel="prev"`, `offset=30&limit=10>; rel="next"`, `offset=35&limit=10>; rel="last"`} {
		if !strings.Contains(link, want) {
			t.Errorf("expected %q in Link header %q", want, link)
		}
	}
}

func TestGetStored(t *testing.T) {
	f := newFixture()
	f.repo.getByIDFn = func(id string) (*domain.ListingSummary, error) {
		if id == "42" {
			return &domain.ListingSummary{ListingID: "42", URL: usecases.ListingURL("42")}, nil
		}
		return nil, domain.ErrNotFound
	}
	app := setupApp(f.deps())

	status, body, headers := do(t, app, "GET", "/v1/listings/42", "")
	if status != 200 || !strings.Contains(string(body), "/rooms/42") {
		t.Fatalf("unexpected response %d %s", status, body)
	}
	etag := headers["Etag"]
	if etag == "" {
		t.Fatal("expected an ETag header")
	}

	req := httptest.NewRequest("GET", "/v1/listings/42", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304 for matching ETag, got %d", resp.StatusCode)
	}

	if status, _, _ := do(t, app, "GET", "/v1/listings/missing", ""); status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
}

// ---- Jobs ----

func TestJobs_SubmitAndGet(t *testing.T) {
	f := newFixture()
	app := setupApp(f.deps())

	status, body, headers := do(t, app, "POST", "/v1/jobs", `{"address":"1 Main St","timeout_ms":2500}`)
	if status != 202 {
		t.Fatalf("expected 202, got %d: %s", status, body)
	}
	var job domain.Job
	if err := json.Unmarshal(body, &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Status != domain.JobQueued || job.TimeoutMs != 2500 {
		t.Errorf("unexpected job %+v", job)
	}
	if headers["Location"] != "/v1/jobs/"+job.ID {
		t.Errorf("unexpected Location %q", headers["Location"])
	}
	if len(f.runner.started) != 1 || f.runner.started[0] != job.ID {
		t.Errorf("expected runner started with %s, got %v", job.ID, f.runner.started)
	}

	status, body, headers = do(t, app, "GET", "/v1/jobs/"+job.ID, "")
	if status != 200 || !strings.Contains(string(body), `"queued"`) {
		t.Errorf("unexpected job lookup %d %s", status, body)
	}
	if headers["Cache-Control"] != "no-cache" {
		t.Errorf("expected no-cache for job status, got %q", headers["Cache-Control"])
	}
}

func TestJobs_UnknownID(t *testing.T) {
	app := setupApp(newFixture().deps())
	if status, _, _ := do(t, app, "GET", "/v1/jobs/not-a-job", ""); status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
}

// ---- GraphQL ----

func TestGraphQL_Viewport(t *testing.T) {
	app := setupApp(newFixture().deps())

	query := `{"query":"{ viewport(address: \"1 Main St\") { listing_ids viewport_meta { strategy } center { lat } } }"}`
	status, body, _ := do(t, app, "POST", "/graphql", query)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result struct {
		Data struct {
			Viewport struct {
				ListingIDs   []string `json:"listing_ids"`
				ViewportMeta struct {
					Strategy string `json:"strategy"`
				} `json:"viewport_meta"`
				Center struct {
					Lat float64 `json:"lat"`
				} `json:"center"`
			} `json:"viewport"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}
	vp := result.Data.Viewport
	if fmt.Sprint(vp.ListingIDs) != "[101 202]" || vp.ViewportMeta.Strategy != "metersPrimary" || vp.Center.Lat != 0.5 {
		t.Errorf("unexpected viewport %+v", vp)
	}
}

func TestGraphQL_ErrorIsReported(t *testing.T) {
	app := setupApp(newFixture().deps())

	query := `{"query":"{ listings(address: \"  \") { address } }"}`
	_, body, _ := do(t, app, "POST", "/graphql", query)
	if !strings.Contains(string(body), "Address cannot be empty") {
		t.Errorf("expected validation error in GraphQL response, got %s", body)
	}
}

// ---- Status mapping ----

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewInvalidInputError("bad"), 400},
		{domain.NewInvalidResponseError("bad", 500), 502},
		{domain.NewTransportError(errors.New("reset")), 502},
		{domain.NewTimeoutError(time.Second, nil), 504},
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), 404},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		if got, _ := handler.StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

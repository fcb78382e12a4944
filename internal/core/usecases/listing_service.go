package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/core/ports"
	"github.com/samirrijal/rentalscope/internal/pkg/geospatial"
	"github.com/samirrijal/rentalscope/internal/pkg/telemetry"
)

// ListingService runs the full address → listings pipeline and serves
// previously recorded listings.
type ListingService struct {
	resolver  *ViewportService
	fetcher   *BatchFetchService
	listings  ports.ListingRepository
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewListingService creates a new ListingService. listings and publisher may
// be nil.
func NewListingService(
	resolver *ViewportService,
	fetcher *BatchFetchService,
	listings ports.ListingRepository,
	publisher ports.EventPublisher,
) *ListingService {
	return &ListingService{
		resolver:  resolver,
		fetcher:   fetcher,
		listings:  listings,
		publisher: publisher,
		now:       time.Now,
	}
}

// Viewport resolves the search viewport and listing ids for an address
// without fetching details.
func (s *ListingService) Viewport(ctx context.Context, address string, timeout time.Duration) (*domain.ListingsResult, error) {
	addr, err := domain.ParseAddress(address)
	if err != nil {
		return nil, domain.FromDomainError(err)
	}
	return s.resolver.Resolve(ctx, addr, timeout)
}

// FindListings resolves the viewport for address, fetches every listing in
// it and returns the summarised report.
func (s *ListingService) FindListings(ctx context.Context, address string, timeout time.Duration) (*domain.ListingsReport, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanFindListings)
	defer span.End()

	addr, err := domain.ParseAddress(address)
	if err != nil {
		return nil, domain.FromDomainError(err)
	}

	res, err := s.resolver.Resolve(ctx, addr, timeout)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	records, err := s.fetcher.FetchAll(ctx, res.ListingIDs, timeout)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	summaries := make([]domain.ListingSummary, 0, len(records))
	for _, rec := range records {
		sum := Summarize(rec)
		if rec.Lat != nil && rec.Lng != nil {
			d := geospatial.DistanceMeters(res.Center, domain.GeoPoint{Lat: *rec.Lat, Lng: *rec.Lng})
			sum.DistanceMeters = &d
		}
		summaries = append(summaries, sum)
	}

	report := &domain.ListingsReport{
		Address:      addr,
		Center:       res.Center,
		BBox:         res.BBox,
		ViewportMeta: res.ViewportMeta,
		Listings:     summaries,
		FetchedAt:    s.now().UTC(),
	}
	span.SetAttributes(
		attribute.String("viewport.strategy", string(res.ViewportMeta.Strategy)),
		attribute.Int("listings.count", len(summaries)),
	)

	s.announce(ctx, report)
	return report, nil
}

// announce publishes the report; without a broker it is recorded directly.
// Failures never fail the lookup.
func (s *ListingService) announce(ctx context.Context, report *domain.ListingsReport) {
	if s.publisher != nil {
		if err := s.publisher.PublishListingsFetched(ctx, report); err != nil {
			slog.Warn("publish listings fetched", "address", report.Address, "error", err)
		}
		return
	}
	if s.listings != nil {
		if err := s.listings.SaveReport(ctx, report); err != nil {
			slog.Warn("save listings report", "address", report.Address, "error", err)
		}
	}
}

// Record persists a report received from the event stream.
func (s *ListingService) Record(ctx context.Context, report *domain.ListingsReport) error {
	if s.listings == nil {
		return fmt.Errorf("record listings: no repository configured")
	}
	if err := s.listings.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("save report for %q: %w", report.Address, err)
	}
	slog.Info("listings recorded", "address", report.Address, "count", len(report.Listings))
	return nil
}

// Stored returns recorded listings, most recently seen first.
func (s *ListingService) Stored(ctx context.Context, offset, limit int) ([]domain.ListingSummary, int, error) {
	if s.listings == nil {
		return nil, 0, fmt.Errorf("list listings: no repository configured")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.listings.List(ctx, offset, limit)
}

// GetStored returns one recorded listing.
func (s *ListingService) GetStored(ctx context.Context, listingID string) (*domain.ListingSummary, error) {
	if s.listings == nil {
		return nil, domain.ErrNotFound
	}
	return s.listings.GetByID(ctx, listingID)
}

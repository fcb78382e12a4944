package usecases

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/core/ports"
	"github.com/samirrijal/rentalscope/internal/pkg/geospatial"
	"github.com/samirrijal/rentalscope/internal/pkg/metrics"
	"github.com/samirrijal/rentalscope/internal/pkg/telemetry"
)

// ViewportConfig holds the tier parameters of viewport resolution.
type ViewportConfig struct {
	Primary         domain.MeterBoxSpec
	ExpansionFactor float64
	Fallback        domain.ZoomViewportSpec
	SearchZoom      int
	RefinementPath  string
	SearchByMap     bool
}

// DefaultViewportConfig returns the production tier ladder.
func DefaultViewportConfig() ViewportConfig {
	return ViewportConfig{
		Primary:         domain.MeterBoxSpec{WidthMeters: 350, HeightMeters: 250, SafetyMeters: 10},
		ExpansionFactor: 1.5,
		Fallback:        domain.ZoomViewportSpec{Zoom: 17, WidthPx: 400, HeightPx: 300, SafetyMeters: 10},
		SearchZoom:      17,
		RefinementPath:  "/homes",
		SearchByMap:     true,
	}
}

const (
	msgFallbackTooSmall = "Zoom-based fallback viewport is smaller than primary meters-based viewport; cannot proceed"
	msgNoListings       = "No listingIds found after primary meters-based viewport, expanded retry, and zoom-based fallback"
)

// ViewportService resolves an address to listing ids through a fixed ladder
// of viewports: primary, expanded primary, zoom fallback.
type ViewportService struct {
	geocoder ports.Geocoder
	search   ports.RentalSearch
	cfg      ViewportConfig
}

// NewViewportService creates a new ViewportService.
func NewViewportService(geocoder ports.Geocoder, search ports.RentalSearch, cfg ViewportConfig) *ViewportService {
	return &ViewportService{geocoder: geocoder, search: search, cfg: cfg}
}

// Resolve geocodes address and walks the tier ladder until a search returns
// listings.
//
// A primary search that fails is not reported: resolution continues
// directly with the zoom fallback and only the fallback's error can reach
// the caller. Expansion is tried only after a primary search that succeeded
// with no results.
func (s *ViewportService) Resolve(ctx context.Context, address string, timeout time.Duration) (*domain.ListingsResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanResolveViewport)
	defer span.End()

	res, err := s.resolve(ctx, address, timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("viewport.strategy", string(res.ViewportMeta.Strategy)),
		attribute.Int("viewport.listing_count", len(res.ListingIDs)),
	)
	metrics.ViewportResolutions.WithLabelValues(string(res.ViewportMeta.Strategy)).Inc()
	return res, nil
}

func (s *ViewportService) resolve(ctx context.Context, address string, timeout time.Duration) (*domain.ListingsResult, error) {
	log := slog.Default().With("address", address)

	center, err := s.geocoder.ForwardGeocode(ctx, address, timeout)
	if err != nil {
		return nil, err
	}

	primary := s.cfg.Primary
	primaryBox, err := geospatial.BoxFromMeters(center, primary)
	if err != nil {
		return nil, domain.FromDomainError(err)
	}

	ids, primaryErr := s.searchBox(ctx, "primary", address, primaryBox, timeout)
	if primaryErr == nil && len(ids) > 0 {
		return &domain.ListingsResult{
			ListingIDs:   ids,
			BBox:         primaryBox,
			ViewportMeta: metaFor(domain.StrategyMetersPrimary, primary),
			Center:       center,
		}, nil
	}

	if primaryErr != nil {
		log.Warn("primary viewport search failed, falling back to zoom viewport", "error", primaryErr)
	} else {
		expanded := domain.MeterBoxSpec{
			WidthMeters:  primary.WidthMeters * s.cfg.ExpansionFactor,
			HeightMeters: primary.HeightMeters * s.cfg.ExpansionFactor,
			SafetyMeters: primary.SafetyMeters,
		}
		log.Debug("primary viewport empty, expanding", "width_meters", expanded.WidthMeters, "height_meters", expanded.HeightMeters)

		if expandedBox, err := geospatial.BoxFromMeters(center, expanded); err == nil {
			ids, err := s.searchBox(ctx, "expanded", address, expandedBox, timeout)
			if err == nil && len(ids) > 0 {
				return &domain.ListingsResult{
					ListingIDs:   ids,
					BBox:         expandedBox,
					ViewportMeta: metaFor(domain.StrategyMetersPrimaryExpanded, expanded),
					Center:       center,
				}, nil
			}
			if err != nil {
				log.Warn("expanded viewport search failed", "error", err)
			}
		}
	}

	fallbackBox, widthMeters, heightMeters, err := geospatial.BoxFromZoomViewport(center, s.cfg.Fallback)
	if err != nil {
		return nil, domain.FromDomainError(err)
	}
	if widthMeters < primary.WidthMeters || heightMeters < primary.HeightMeters {
		return nil, domain.NewInvalidResponseError(msgFallbackTooSmall, 0)
	}

	log.Debug("searching zoom fallback viewport", "width_meters", widthMeters, "height_meters", heightMeters)
	ids, err = s.searchBox(ctx, "fallback", address, fallbackBox, timeout)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, domain.NewInvalidResponseError(msgNoListings, 0)
	}

	return &domain.ListingsResult{
		ListingIDs: ids,
		BBox:       fallbackBox,
		ViewportMeta: domain.ViewportMeta{
			Strategy:     domain.StrategyZoomFallback,
			WidthMeters:  widthMeters,
			HeightMeters: heightMeters,
			SafetyMeters: primary.SafetyMeters,
		},
		Center: center,
	}, nil
}

func (s *ViewportService) searchBox(ctx context.Context, tier, address string, box domain.BoundingBox, timeout time.Duration) ([]string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanTierSearch)
	defer span.End()
	span.SetAttributes(attribute.String("viewport.tier", tier), attribute.String("viewport.bbox", box.String()))

	ids, err := s.search.FindListingIDs(ctx, domain.ResolvedSearchFlags{
		BBox:           box,
		ZoomLevel:      s.cfg.SearchZoom,
		QueryAddress:   address,
		RefinementPath: s.cfg.RefinementPath,
		SearchByMap:    s.cfg.SearchByMap,
	}, timeout)
	if err != nil {
		metrics.ViewportTierErrors.WithLabelValues(tier).Inc()
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("viewport.listing_count", len(ids)))
	return ids, nil
}

func metaFor(strategy domain.Strategy, spec domain.MeterBoxSpec) domain.ViewportMeta {
	return domain.ViewportMeta{
		Strategy:     strategy,
		WidthMeters:  spec.WidthMeters,
		HeightMeters: spec.HeightMeters,
		SafetyMeters: spec.SafetyMeters,
	}
}

// Package app wires the lookup pipeline shared by the API, worker and
// collector binaries.
package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/samirrijal/rentalscope/internal/adapters/airbnb"
	"github.com/samirrijal/rentalscope/internal/adapters/fetch"
	"github.com/samirrijal/rentalscope/internal/adapters/locationiq"
	"github.com/samirrijal/rentalscope/internal/core/ports"
	"github.com/samirrijal/rentalscope/internal/core/usecases"
	"github.com/samirrijal/rentalscope/internal/pkg/config"
)

// NewListingService builds the geocoder, provider client and services from
// cfg. listings and publisher may be nil.
func NewListingService(cfg *config.Config, listings ports.ListingRepository, publisher ports.EventPublisher) (*usecases.ListingService, error) {
	body, err := airbnb.LoadSearchBody(cfg.Provider.SearchBodyPath)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	httpClient := fetch.NewClient(&http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: cfg.Batch.MaxConcurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	})

	geocoder := locationiq.NewGeocoder(httpClient, locationiq.Config{
		BaseURL:        cfg.Geocoding.BaseURL,
		APIKey:         cfg.Geocoding.APIKey,
		DefaultTimeout: time.Duration(cfg.Geocoding.TimeoutMs) * time.Millisecond,
	})
	provider := airbnb.NewClient(httpClient, airbnb.Config{
		SearchURL:      cfg.Provider.SearchURL,
		DetailURL:      cfg.Provider.DetailURL,
		APIKey:         cfg.Provider.APIKey,
		SearchBody:     body,
		DefaultTimeout: time.Duration(cfg.Provider.TimeoutMs) * time.Millisecond,
	})

	resolver := usecases.NewViewportService(geocoder, provider, cfg.ViewportConfig())
	fetcher := usecases.NewBatchFetchService(provider, cfg.BatchConfig())
	return usecases.NewListingService(resolver, fetcher, listings, publisher), nil
}

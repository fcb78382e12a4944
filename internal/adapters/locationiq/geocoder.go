// Package locationiq implements forward geocoding against the LocationIQ
// search API.
package locationiq

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/samirrijal/rentalscope/internal/adapters/fetch"
	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// Config holds LocationIQ connection settings.
type Config struct {
	BaseURL        string
	APIKey         string
	DefaultTimeout time.Duration
}

// Geocoder implements ports.Geocoder.
type Geocoder struct {
	client *fetch.Client
	cfg    Config
}

// NewGeocoder creates a new Geocoder.
func NewGeocoder(client *fetch.Client, cfg Config) *Geocoder {
	return &Geocoder{client: client, cfg: cfg}
}

type place struct {
	Lat *string `json:"lat"`
	Lon *string `json:"lon"`
}

// ForwardGeocode returns the coordinate of the best match for address.
// A zero timeout falls back to the configured default.
func (g *Geocoder) ForwardGeocode(ctx context.Context, address string, timeout time.Duration) (domain.GeoPoint, error) {
	if timeout <= 0 {
		timeout = g.cfg.DefaultTimeout
	}

	var raw json.RawMessage
	err := g.client.DoJSON(ctx, fetch.Request{
		Method: http.MethodGet,
		URL:    g.cfg.BaseURL,
		Query: map[string]string{
			"key":    g.cfg.APIKey,
			"q":      address,
			"format": "json",
		},
		Timeout: timeout,
	}, &raw)
	if err != nil {
		return domain.GeoPoint{}, err
	}

	var places []place
	if err := json.Unmarshal(raw, &places); err != nil || len(places) == 0 {
		return domain.GeoPoint{}, domain.NewInvalidResponseError("LocationIQ returned no results", 0)
	}

	first := places[0]
	if first.Lat == nil || first.Lon == nil || *first.Lat == "" || *first.Lon == "" {
		return domain.GeoPoint{}, domain.NewInvalidResponseError("LocationIQ result missing lat/lon", 0)
	}

	p, err := domain.ParseGeoPoint(*first.Lat, *first.Lon)
	if err != nil {
		return domain.GeoPoint{}, domain.FromDomainError(err)
	}
	return p, nil
}

package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/pkg/geospatial"
)

func TestHaversine_SamePoint(t *testing.T) {
	if d := geospatial.Haversine(43.263, -2.935, 43.263, -2.935); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestDistanceMeters_OneDegreeLatitude(t *testing.T) {
	d := geospatial.DistanceMeters(domain.GeoPoint{Lat: 0, Lng: 0}, domain.GeoPoint{Lat: 1, Lng: 0})
	// Spherical model: 2πR/360.
	want := 2 * math.Pi * 6371000 / 360
	if math.Abs(d-want) > 0.5 {
		t.Errorf("expected ~%f m, got %f", want, d)
	}
}

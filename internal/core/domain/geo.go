package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the point lies within [-90,90] x [-180,180] and is finite.
func (p GeoPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return &GeoPointError{Message: fmt.Sprintf("Latitude must be within [-90, 90], got %v", p.Lat)}
	}
	if p.Lng < -180 || p.Lng > 180 {
		return &GeoPointError{Message: fmt.Sprintf("Longitude must be within [-180, 180], got %v", p.Lng)}
	}
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return &GeoPointError{Message: "Latitude and longitude must be finite numbers"}
	}
	return nil
}

// ParseGeoPoint parses textual coordinates as returned by geocoding providers.
func ParseGeoPoint(latStr, lngStr string) (GeoPoint, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return GeoPoint{}, &GeoPointError{Message: fmt.Sprintf("Invalid latitude: %q is not a finite number", latStr)}
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return GeoPoint{}, &GeoPointError{Message: fmt.Sprintf("Invalid longitude: %q is not a finite number", lngStr)}
	}
	p := GeoPoint{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// BoundingBox is a search viewport in provider order: [north, east, south, west].
// Ordering between edges is not enforced; boxes near a pole or the
// antimeridian may have north > 90 or east < west.
type BoundingBox [4]float64

func (b BoundingBox) North() float64 { return b[0] }
func (b BoundingBox) East() float64  { return b[1] }
func (b BoundingBox) South() float64 { return b[2] }
func (b BoundingBox) West() float64  { return b[3] }

// String renders the box as "neLat,neLng,swLat,swLng".
func (b BoundingBox) String() string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// MeterBoxSpec describes a viewport in meters. SafetyMeters is added to
// both sides of each dimension.
type MeterBoxSpec struct {
	WidthMeters  float64 `json:"width_meters"`
	HeightMeters float64 `json:"height_meters"`
	SafetyMeters float64 `json:"safety_meters"`
}

// ZoomViewportSpec describes a map viewport in pixels at a Web Mercator zoom level.
type ZoomViewportSpec struct {
	Zoom         int     `json:"zoom"`
	WidthPx      float64 `json:"width_px"`
	HeightPx     float64 `json:"height_px"`
	SafetyMeters float64 `json:"safety_meters"`
}

package geospatial

import (
	"math"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// equatorResolution is the Web Mercator ground resolution at zoom 0, in meters per pixel.
const equatorResolution = 156543.03392

// MetersPerDegreeLatitude returns the length of one degree of latitude at
// phi (radians) on the WGS-84 ellipsoid.
func MetersPerDegreeLatitude(phi float64) float64 {
	return 111132.92 - 559.82*math.Cos(2*phi) + 1.175*math.Cos(4*phi) - 0.0023*math.Cos(6*phi)
}

// MetersPerDegreeLongitude returns the length of one degree of longitude at
// phi (radians) on the WGS-84 ellipsoid.
func MetersPerDegreeLongitude(phi float64) float64 {
	return 111412.84*math.Cos(phi) - 93.5*math.Cos(3*phi) + 0.118*math.Cos(5*phi)
}

// NormalizeLng wraps a longitude into [-180, 180]. Values above 180 land in
// (-180, 180] and values below -180 land in [-180, 180).
func NormalizeLng(lng float64) float64 {
	switch {
	case lng > 180:
		r := math.Mod(lng-180, 360)
		if r == 0 {
			return 180
		}
		return r - 180
	case lng < -180:
		r := math.Mod(lng+180, 360)
		if r == 0 {
			return -180
		}
		return r + 180
	}
	return lng
}

// BoxFromMeters returns the box of the given size centred on center.
// Latitude is not clamped, so a center close to a pole can produce an
// edge beyond ±90.
func BoxFromMeters(center domain.GeoPoint, spec domain.MeterBoxSpec) (domain.BoundingBox, error) {
	if err := center.Validate(); err != nil {
		return domain.BoundingBox{}, err
	}

	phi := toRad(center.Lat)

	h := spec.HeightMeters + 2*spec.SafetyMeters
	w := spec.WidthMeters + 2*spec.SafetyMeters

	dLat := (h / 2) / MetersPerDegreeLatitude(phi)
	dLng := (w / 2) / MetersPerDegreeLongitude(phi)

	return domain.BoundingBox{
		center.Lat + dLat,
		NormalizeLng(center.Lng + dLng),
		center.Lat - dLat,
		NormalizeLng(center.Lng - dLng),
	}, nil
}

// GroundResolution returns meters per pixel at lat (degrees) and zoom.
func GroundResolution(lat float64, zoom int) float64 {
	return equatorResolution * math.Cos(toRad(lat)) / math.Pow(2, float64(zoom))
}

// BoxFromZoomViewport converts a pixel viewport to meters at center's
// latitude and delegates to BoxFromMeters. The returned dimensions exclude
// the safety margin.
func BoxFromZoomViewport(center domain.GeoPoint, spec domain.ZoomViewportSpec) (domain.BoundingBox, float64, float64, error) {
	res := GroundResolution(center.Lat, spec.Zoom)
	widthMeters := spec.WidthPx * res
	heightMeters := spec.HeightPx * res

	box, err := BoxFromMeters(center, domain.MeterBoxSpec{
		WidthMeters:  widthMeters,
		HeightMeters: heightMeters,
		SafetyMeters: spec.SafetyMeters,
	})
	if err != nil {
		return domain.BoundingBox{}, 0, 0, err
	}
	return box, widthMeters, heightMeters, nil
}

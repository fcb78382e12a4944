package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// ViewportGeoJSON renders a resolved viewport as a FeatureCollection holding
// the box polygon and the geocoded center. An antimeridian-crossing box
// (east < west) is emitted as-is.
func ViewportGeoJSON(center domain.GeoPoint, box domain.BoundingBox, meta domain.ViewportMeta) *geojson.FeatureCollection {
	bound := orb.Bound{
		Min: orb.Point{box.West(), box.South()},
		Max: orb.Point{box.East(), box.North()},
	}

	area := geojson.NewFeature(bound.ToPolygon())
	area.Properties["kind"] = "viewport"
	area.Properties["strategy"] = string(meta.Strategy)
	area.Properties["width_meters"] = meta.WidthMeters
	area.Properties["height_meters"] = meta.HeightMeters
	area.Properties["safety_meters"] = meta.SafetyMeters

	pt := geojson.NewFeature(orb.Point{center.Lng, center.Lat})
	pt.Properties["kind"] = "center"

	fc := geojson.NewFeatureCollection()
	fc.Append(area)
	fc.Append(pt)
	return fc
}

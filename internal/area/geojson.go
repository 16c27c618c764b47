package area

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Coverage renders zones as a GeoJSON FeatureCollection for the map overlay.
// Zones without a sampled polygon are emitted as their center point with the
// radius in the properties.
func Coverage(zones []Zone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		var f *geojson.Feature
		if len(z.Polygon) >= 4 {
			f = geojson.NewFeature(orb.Polygon{orb.Ring(z.Polygon)})
		} else {
			f = geojson.NewFeature(z.Center.Point())
		}
		f.ID = z.ID
		f.Properties["id"] = z.ID
		f.Properties["name"] = z.Name
		f.Properties["radius"] = z.Radius
		fc.Append(f)
	}
	return fc
}

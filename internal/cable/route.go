package cable

import (
	"math"

	"cablenet/internal/geo"

	"github.com/paulmach/orb"
)

// DefaultColor is used when a service type has no marking color.
const DefaultColor = "#1E88E5"

// NewRoute draws a straight hub-to-location cable densified so consecutive
// vertices are at most spacingMeters apart. The feature id is left at 0; the
// caller assigns it when appending.
func NewRoute(hub, location geo.Coordinates, spacingMeters float64, color, locationID string) Feature {
	if color == "" {
		color = DefaultColor
	}
	a, b := hub.Point(), location.Point()

	steps := 1
	if spacingMeters > 0 {
		steps = int(math.Ceil(geo.Distance(a, b) / spacingMeters))
		if steps < 1 {
			steps = 1
		}
	}

	line := make(orb.LineString, 0, steps+1)
	line = append(line, a)
	line = append(line, geo.Interpolate(a, b, steps)...)
	line = append(line, b)

	return Feature{
		Type:        TypeFeature,
		Geometry:    Geometry{Type: TypeLineString, Coordinates: line},
		Properties:  Properties{Color: color, LocationID: locationID},
		Coordinates: location,
	}
}

// Append adds f at the end with the next positional id and returns the new
// collection; fc is not modified.
func (fc FeatureCollection) Append(f Feature) FeatureCollection {
	out := fc.Clone()
	if out.Type == "" {
		out.Type = TypeFeatureCollection
	}
	f = f.Clone()
	f.Properties.ID = len(out.Features)
	out.Features = append(out.Features, f)
	return out
}

// Length is the great-circle length of the route in meters.
func (f Feature) Length() float64 {
	var total float64
	line := f.Geometry.Coordinates
	for i := 1; i < len(line); i++ {
		total += geo.Distance(line[i-1], line[i])
	}
	return total
}

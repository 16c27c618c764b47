// Package area decides which locations fall inside the selected coverage
// areas.
package area

import (
	"cablenet/internal/geo"

	"github.com/paulmach/orb"
)

// DefaultRadius applies to areas stored without a radius.
const DefaultRadius = 500.0

// Zone is a coverage area reduced to what membership needs. Polygon is the
// closed ring sampled when the area was created; it may be empty for areas
// that only carry a radius.
type Zone struct {
	ID      string
	Name    string
	Center  geo.Coordinates
	Radius  float64
	Polygon []orb.Point
}

// NewZone samples a circle of the given radius around center.
func NewZone(id, name string, center geo.Coordinates, radius float64, sides int) Zone {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return Zone{
		ID:      id,
		Name:    name,
		Center:  center,
		Radius:  radius,
		Polygon: geo.CircleCoordinates(center, radius, sides),
	}
}

// Contains reports whether p is inside the zone: inside its polygon when it
// has one, otherwise within its radius of the center. The center itself is
// always inside.
func (z Zone) Contains(p geo.Coordinates) bool {
	if p.Equal(z.Center) {
		return true
	}
	if len(z.Polygon) >= 3 {
		return geo.PolygonContains(z.Polygon, p.Point())
	}
	r := z.Radius
	if r <= 0 {
		r = DefaultRadius
	}
	return geo.Distance(z.Center.Point(), p.Point()) <= r
}

// Located is anything with a position on the map.
type Located interface {
	Position() geo.Coordinates
}

// Filter keeps the items that lie inside at least one selected zone. An empty
// selection keeps everything. Selected ids that match no zone are ignored.
// The input slice is not modified.
func Filter[T Located](items []T, selected []string, zones []Zone) []T {
	if len(selected) == 0 {
		return append([]T(nil), items...)
	}

	want := make(map[string]bool, len(selected))
	for _, id := range selected {
		want[id] = true
	}
	active := make([]Zone, 0, len(selected))
	for _, z := range zones {
		if want[z.ID] {
			active = append(active, z)
		}
	}

	out := make([]T, 0, len(items))
	for _, it := range items {
		pos := it.Position()
		for _, z := range active {
			if z.Contains(pos) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

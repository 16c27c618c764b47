// Package geo holds the small amount of spherical and planar math the route
// editor and area filter need. Points are orb.Point values in GeoJSON order
// ([lng, lat]); Coordinates is the {latitude, longitude} form stored on
// locations, hubs and route anchors.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// EarthRadius is the WGS84 equatorial radius in meters.
const EarthRadius = 6378137.0

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point converts c to GeoJSON [lng, lat] order.
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// Equal reports exact floating-point equality. Route anchors are matched to
// locations with this comparison, so no tolerance is applied.
func (c Coordinates) Equal(o Coordinates) bool {
	return c.Latitude == o.Latitude && c.Longitude == o.Longitude
}

// FromPoint converts a GeoJSON [lng, lat] point.
func FromPoint(p orb.Point) Coordinates {
	return Coordinates{Latitude: p.Lat(), Longitude: p.Lon()}
}

// ValidCoordinates reports whether c is a finite lat/lng inside the usual ranges.
func ValidCoordinates(c Coordinates) bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// ValidPoint is ValidCoordinates for a [lng, lat] point.
func ValidPoint(p orb.Point) bool {
	return ValidCoordinates(FromPoint(p))
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// Destination projects a point distanceMeters away from (lat, lng) along
// bearingDegrees (clockwise from north) using the spherical law of cosines.
func Destination(lat, lng, distanceMeters, bearingDegrees float64) Coordinates {
	delta := distanceMeters / EarthRadius
	theta := deg2rad(bearingDegrees)
	phi1 := deg2rad(lat)
	lambda1 := deg2rad(lng)

	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	phi2 := math.Asin(clamp(sinPhi2, -1, 1))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*sinPhi2,
	)

	return Coordinates{
		Latitude:  rad2deg(phi2),
		Longitude: normalizeLongitude(rad2deg(lambda2)),
	}
}

// CircleCoordinates samples a circle of radiusMeters around center at
// numPoints equally spaced bearings. The result has numPoints+1 entries and
// the last one is the first repeated, so it can be used as a closed ring.
func CircleCoordinates(center Coordinates, radiusMeters float64, numPoints int) []orb.Point {
	if numPoints < 3 {
		numPoints = 3
	}
	pts := make([]orb.Point, 0, numPoints+1)
	for i := 0; i < numPoints; i++ {
		bearing := 360 * float64(i) / float64(numPoints)
		pts = append(pts, Destination(center.Latitude, center.Longitude, radiusMeters, bearing).Point())
	}
	pts = append(pts, pts[0])
	return pts
}

// Lerp blends a and b at parameter t in lng/lat space. The (1-t)*a + t*b form
// returns a exactly at t=0 and b exactly at t=1.
func Lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{
		(1-t)*a[0] + t*b[0],
		(1-t)*a[1] + t*b[1],
	}
}

// Interpolate returns the numSteps-1 points strictly between a and b at
// t = i/numSteps.
func Interpolate(a, b orb.Point, numSteps int) []orb.Point {
	if numSteps < 2 {
		return nil
	}
	out := make([]orb.Point, 0, numSteps-1)
	for i := 1; i < numSteps; i++ {
		out = append(out, Lerp(a, b, float64(i)/float64(numSteps)))
	}
	return out
}

// Distance is the great-circle distance in meters.
func Distance(a, b orb.Point) float64 {
	return orbgeo.Distance(a, b)
}

// Bearing is the initial bearing from a to b in degrees within [0, 360).
func Bearing(a, b orb.Point) float64 {
	br := math.Mod(orbgeo.Bearing(a, b), 360)
	if br < 0 {
		br += 360
	}
	return br
}

// PolygonContains reports whether point lies inside the ring.
func PolygonContains(ring []orb.Point, point orb.Point) bool {
	if len(ring) < 3 {
		return false
	}
	return planar.RingContains(orb.Ring(ring), point)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func normalizeLongitude(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

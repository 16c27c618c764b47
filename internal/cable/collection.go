// Package cable models the route document: the GeoJSON FeatureCollection of
// cable routes stored on an operator's record, plus the pure operations the
// editor and reconciler run over it.
package cable

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"cablenet/internal/geo"

	"github.com/paulmach/orb"
)

const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
	TypeLineString        = "LineString"
)

var (
	ErrNotObject     = errors.New("route document must be a JSON object")
	ErrTooFewPoints  = errors.New("route needs at least two points")
	ErrBadCoordinate = errors.New("route coordinate out of range")
	ErrMalformed     = errors.New("malformed route document")
)

// FeatureCollection is the whole route document of one operator. Members the
// server does not model are kept and written back unchanged.
type FeatureCollection struct {
	Type     string
	Features []Feature

	extra members
}

// Feature is one cable route. Coordinates is a denormalized anchor copied from
// the owning location at creation; it is only used to associate legacy
// features that carry no LocationID.
type Feature struct {
	Type        string
	Geometry    Geometry
	Properties  Properties
	Coordinates geo.Coordinates

	hasAnchor bool
	extra     members
}

// Geometry holds a LineString. Any other geometry is carried as raw JSON and
// its feature is not a route.
type Geometry struct {
	Type        string
	Coordinates orb.LineString

	raw   json.RawMessage
	extra members
}

// Properties.Color is a snapshot of the service type's marking color when the
// route was drawn; it is not refreshed when the service type changes.
type Properties struct {
	ID         int
	Color      string
	LocationID string

	extra members
}

// Anchor is a live location or hub a route can belong to.
type Anchor struct {
	LocationID  string
	Coordinates geo.Coordinates
}

// Empty returns a collection with no features.
func Empty() FeatureCollection {
	return FeatureCollection{Type: TypeFeatureCollection, Features: []Feature{}}
}

// Parse decodes a stored document. An empty or null document is an empty
// collection. Anything that is not a JSON object is rejected.
func Parse(raw []byte) (FeatureCollection, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return Empty(), nil
	}
	if !IsObject(raw) {
		return FeatureCollection{}, ErrNotObject
	}
	var fc FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return FeatureCollection{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fc.Type == "" {
		fc.Type = TypeFeatureCollection
	}
	if fc.Features == nil {
		fc.Features = []Feature{}
	}
	return fc, nil
}

// IsObject reports whether raw is a JSON object. This is the only shape check
// the server applies to stored route documents.
func IsObject(raw []byte) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

// Clone deep-copies the collection so edits to the copy never reach fc.
func (fc FeatureCollection) Clone() FeatureCollection {
	out := FeatureCollection{Type: fc.Type, Features: make([]Feature, len(fc.Features)), extra: fc.extra}
	for i, f := range fc.Features {
		out.Features[i] = f.Clone()
	}
	return out
}

// Clone deep-copies the feature's geometry.
func (f Feature) Clone() Feature {
	c := f
	c.Geometry.Coordinates = append(orb.LineString(nil), f.Geometry.Coordinates...)
	return c
}

// IsRoute reports whether the feature carries a LineString the editor can
// work on.
func (f Feature) IsRoute() bool {
	return f.Geometry.raw == nil && f.Geometry.Type == TypeLineString
}

// BelongsTo reports whether the feature is the route of the given location.
func (f Feature) BelongsTo(locationID string, at geo.Coordinates) bool {
	if !f.IsRoute() {
		return false
	}
	if f.Properties.LocationID != "" {
		return f.Properties.LocationID == locationID
	}
	return f.Coordinates.Equal(at)
}

// FindForLocation returns the index of the location's route, or -1.
func (fc FeatureCollection) FindForLocation(locationID string, at geo.Coordinates) int {
	for i, f := range fc.Features {
		if f.BelongsTo(locationID, at) {
			return i
		}
	}
	return -1
}

// Validate checks every route has at least two in-range vertices. Features
// that are not routes are skipped.
func (fc FeatureCollection) Validate() error {
	for i, f := range fc.Features {
		if !f.IsRoute() {
			continue
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks the route has at least two in-range vertices.
func (f Feature) Validate() error {
	if len(f.Geometry.Coordinates) < 2 {
		return ErrTooFewPoints
	}
	for j, p := range f.Geometry.Coordinates {
		if !geo.ValidPoint(p) {
			return fmt.Errorf("vertex %d: %w", j, ErrBadCoordinate)
		}
	}
	return nil
}

// Marshal encodes the collection for storage.
func (fc FeatureCollection) Marshal() (json.RawMessage, error) {
	if fc.Type == "" {
		fc.Type = TypeFeatureCollection
	}
	if fc.Features == nil {
		fc.Features = []Feature{}
	}
	return json.Marshal(fc)
}

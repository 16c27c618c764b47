// Package mapview keeps a map surface in step with the route document. Map is
// the subset of a web-map SDK the editor drives; MemoryMap is the server-side
// implementation each editing workspace renders into.
package mapview

import (
	"errors"
	"fmt"

	"cablenet/internal/cable"

	"github.com/paulmach/orb"
)

var (
	ErrNotReady   = errors.New("map style not loaded")
	ErrExists     = errors.New("already exists")
	ErrNotFound   = errors.New("not found")
	ErrSourceBusy = errors.New("routes source is owned by another editor")
)

// Layer is a line layer bound to a source.
type Layer struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Source string            `json:"source"`
	Layout map[string]string `json:"layout"`
	Paint  map[string]string `json:"paint"`
}

type MarkerKind string

const (
	MarkerControl   MarkerKind = "control"
	MarkerCandidate MarkerKind = "candidate"
	MarkerJunction  MarkerKind = "junction"
)

// MarkerSpec describes a marker to place. Ref ties the marker back to what it
// represents: a vertex index for control and candidate markers, a junction
// box id for junction markers.
type MarkerSpec struct {
	Kind      MarkerKind `json:"kind"`
	Ref       string     `json:"ref"`
	At        orb.Point  `json:"at"`
	Color     string     `json:"color"`
	Draggable bool       `json:"draggable"`
}

type MarkerID int

// Map is the map surface. Every call can fail while the style is loading or
// when ids collide; callers treat failures as non-fatal.
type Map interface {
	AddSource(id string, data cable.FeatureCollection) error
	GetSource(id string) (cable.FeatureCollection, bool)
	SetSourceData(id string, data cable.FeatureCollection) error
	RemoveSource(id string) error

	AddLayer(layer Layer) error
	GetLayer(id string) (Layer, bool)
	RemoveLayer(id string) error
	SetLayoutProperty(layerID, name, value string) error

	AddMarker(spec MarkerSpec) (MarkerID, error)
	MoveMarker(id MarkerID, at orb.Point) error
	SetMarkerColor(id MarkerID, color string) error
	RemoveMarker(id MarkerID) error
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

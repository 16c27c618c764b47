package mapview

import (
	"sort"
	"sync"

	"cablenet/internal/cable"

	"github.com/paulmach/orb"
)

// MemoryMap is an in-memory Map. Sources are copied on write and on read so a
// caller mutating its collection afterwards never changes what was rendered.
type MemoryMap struct {
	mu      sync.RWMutex
	ready   bool
	sources map[string]cable.FeatureCollection
	layers  []Layer
	markers map[MarkerID]MarkerSpec
	nextID  MarkerID

	// fail injects an error for the named operation; used by tests.
	fail map[string]error
}

// NewMemoryMap returns a map whose style is already loaded.
func NewMemoryMap() *MemoryMap {
	return &MemoryMap{
		ready:   true,
		sources: make(map[string]cable.FeatureCollection),
		markers: make(map[MarkerID]MarkerSpec),
		fail:    make(map[string]error),
	}
}

// SetReady toggles whether the style counts as loaded.
func (m *MemoryMap) SetReady(ready bool) {
	m.mu.Lock()
	m.ready = ready
	m.mu.Unlock()
}

func (m *MemoryMap) check(op string) error {
	if !m.ready {
		return ErrNotReady
	}
	if err, ok := m.fail[op]; ok {
		return err
	}
	return nil
}

func (m *MemoryMap) AddSource(id string, data cable.FeatureCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("AddSource"); err != nil {
		return err
	}
	if _, ok := m.sources[id]; ok {
		return ErrExists
	}
	m.sources[id] = data.Clone()
	return nil
}

func (m *MemoryMap) GetSource(id string) (cable.FeatureCollection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return cable.FeatureCollection{}, false
	}
	fc, ok := m.sources[id]
	if !ok {
		return cable.FeatureCollection{}, false
	}
	return fc.Clone(), true
}

func (m *MemoryMap) SetSourceData(id string, data cable.FeatureCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SetSourceData"); err != nil {
		return err
	}
	if _, ok := m.sources[id]; !ok {
		return notFound("source", id)
	}
	m.sources[id] = data.Clone()
	return nil
}

func (m *MemoryMap) RemoveSource(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("RemoveSource"); err != nil {
		return err
	}
	if _, ok := m.sources[id]; !ok {
		return notFound("source", id)
	}
	delete(m.sources, id)
	return nil
}

func (m *MemoryMap) AddLayer(layer Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("AddLayer"); err != nil {
		return err
	}
	if _, ok := m.sources[layer.Source]; !ok {
		return notFound("source", layer.Source)
	}
	for _, l := range m.layers {
		if l.ID == layer.ID {
			return ErrExists
		}
	}
	m.layers = append(m.layers, copyLayer(layer))
	return nil
}

func (m *MemoryMap) GetLayer(id string) (Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return Layer{}, false
	}
	for _, l := range m.layers {
		if l.ID == id {
			return copyLayer(l), true
		}
	}
	return Layer{}, false
}

func (m *MemoryMap) RemoveLayer(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("RemoveLayer"); err != nil {
		return err
	}
	for i, l := range m.layers {
		if l.ID == id {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			return nil
		}
	}
	return notFound("layer", id)
}

func (m *MemoryMap) SetLayoutProperty(layerID, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SetLayoutProperty"); err != nil {
		return err
	}
	for i := range m.layers {
		if m.layers[i].ID == layerID {
			if m.layers[i].Layout == nil {
				m.layers[i].Layout = map[string]string{}
			}
			m.layers[i].Layout[name] = value
			return nil
		}
	}
	return notFound("layer", layerID)
}

func (m *MemoryMap) AddMarker(spec MarkerSpec) (MarkerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("AddMarker"); err != nil {
		return 0, err
	}
	m.nextID++
	m.markers[m.nextID] = spec
	return m.nextID, nil
}

func (m *MemoryMap) MoveMarker(id MarkerID, at orb.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("MoveMarker"); err != nil {
		return err
	}
	spec, ok := m.markers[id]
	if !ok {
		return ErrNotFound
	}
	spec.At = at
	m.markers[id] = spec
	return nil
}

func (m *MemoryMap) SetMarkerColor(id MarkerID, color string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SetMarkerColor"); err != nil {
		return err
	}
	spec, ok := m.markers[id]
	if !ok {
		return ErrNotFound
	}
	spec.Color = color
	m.markers[id] = spec
	return nil
}

func (m *MemoryMap) RemoveMarker(id MarkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("RemoveMarker"); err != nil {
		return err
	}
	if _, ok := m.markers[id]; !ok {
		return ErrNotFound
	}
	delete(m.markers, id)
	return nil
}

// MarkerState is a placed marker as reported by Snapshot.
type MarkerState struct {
	ID MarkerID `json:"id"`
	MarkerSpec
}

// Snapshot is the whole rendered state, suitable for JSON.
type Snapshot struct {
	Ready   bool                               `json:"ready"`
	Sources map[string]cable.FeatureCollection `json:"sources"`
	Layers  []Layer                            `json:"layers"`
	Markers []MarkerState                      `json:"markers"`
}

// Snapshot copies the current state. Markers are ordered by id.
func (m *MemoryMap) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		Ready:   m.ready,
		Sources: make(map[string]cable.FeatureCollection, len(m.sources)),
		Layers:  make([]Layer, 0, len(m.layers)),
		Markers: make([]MarkerState, 0, len(m.markers)),
	}
	for id, fc := range m.sources {
		s.Sources[id] = fc.Clone()
	}
	for _, l := range m.layers {
		s.Layers = append(s.Layers, copyLayer(l))
	}
	for id, spec := range m.markers {
		s.Markers = append(s.Markers, MarkerState{ID: id, MarkerSpec: spec})
	}
	sort.Slice(s.Markers, func(i, j int) bool { return s.Markers[i].ID < s.Markers[j].ID })
	return s
}

// Markers returns the placed markers of one kind, ordered by id.
func (m *MemoryMap) Markers(kind MarkerKind) []MarkerState {
	all := m.Snapshot().Markers
	out := all[:0]
	for _, mk := range all {
		if mk.Kind == kind {
			out = append(out, mk)
		}
	}
	return out
}

func copyLayer(l Layer) Layer {
	c := l
	c.Layout = make(map[string]string, len(l.Layout))
	for k, v := range l.Layout {
		c.Layout[k] = v
	}
	c.Paint = make(map[string]string, len(l.Paint))
	for k, v := range l.Paint {
		c.Paint[k] = v
	}
	return c
}

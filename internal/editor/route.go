package editor

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"cablenet/internal/cable"
	"cablenet/internal/geo"
	"cablenet/internal/mapview"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// RouteSession edits one route through its control points. The workspace
// document is never touched until Save succeeds; all drags go to working.
type RouteSession struct {
	w          *Workspace
	locationID uuid.UUID
	index      int
	base       int

	original cable.FeatureCollection
	working  cable.FeatureCollection

	state    State
	interval int
	controls []int
	markers  []mapview.MarkerID
	active   int

	lease *mapview.Lease
}

// EditRoute opens a control-point session on the location's route with
// every vertex draggable.
func (w *Workspace) EditRoute(ctx context.Context, locationID uuid.UUID) (*RouteSession, error) {
	loc, err := w.locations.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode() != ModeNone || w.persist {
		return nil, ErrEditorBusy
	}
	if err := w.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	idx := w.doc.FindForLocation(loc.ID.String(), loc.Coordinates)
	if idx < 0 {
		w.logr.Warn("route lookup failed", zap.String("location_id", loc.ID.String()))
		return nil, fmt.Errorf("%w %q", ErrRouteNotFound, loc.Name)
	}

	lease, err := w.renderer.Acquire(string(ModeRouteEdit))
	if err != nil {
		return nil, err
	}

	s := &RouteSession{
		w:          w,
		locationID: loc.ID,
		index:      idx,
		base:       w.version,
		original:   w.doc.Clone(),
		working:    w.doc.Clone(),
		state:      StateEditing,
		interval:   1,
		active:     -1,
		lease:      lease,
	}
	s.placeMarkers()
	w.route = s
	w.logr.Info("route edit started",
		zap.String("location_id", loc.ID.String()),
		zap.Int("feature", idx),
		zap.Int("vertices", len(s.line())))
	return s, nil
}

// Route returns the active route session, if any.
func (w *Workspace) Route() (*RouteSession, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.route, w.route != nil
}

func (s *RouteSession) feature() cable.Feature { return s.working.Features[s.index] }

func (s *RouteSession) line() orb.LineString { return s.working.Features[s.index].Geometry.Coordinates }

// Working returns a copy of the edited feature.
func (s *RouteSession) Working() cable.Feature {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.feature().Clone()
}

func (s *RouteSession) Interval() int {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.interval
}

// Controls returns the current control-point vertex indices.
func (s *RouteSession) Controls() []int {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return append([]int(nil), s.controls...)
}

// checkEditing must be called with w.mu held.
func (s *RouteSession) checkEditing() error {
	if s.w.route != s {
		return ErrNotEditing
	}
	s.w.touch()
	switch s.state {
	case StateEditing:
		return nil
	case StateSaving:
		return ErrSaveInProgress
	default:
		return ErrNotEditing
	}
}

func (s *RouteSession) controlPos(vertex int) (int, error) {
	k := sort.SearchInts(s.controls, vertex)
	if k >= len(s.controls) || s.controls[k] != vertex {
		return 0, fmt.Errorf("%w: %d", ErrNotControlPoint, vertex)
	}
	return k, nil
}

// DragStart highlights the marker of a control point.
func (s *RouteSession) DragStart(vertex int) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if err := s.checkEditing(); err != nil {
		return err
	}
	if _, err := s.controlPos(vertex); err != nil {
		return err
	}
	if s.active >= 0 && s.active != vertex {
		s.recolor(s.active, ColorControl)
	}
	s.active = vertex
	s.recolor(vertex, ColorActive)
	return nil
}

// Drag moves a control point, re-derives the vertices between it and its
// neighbouring control points and pushes the working copy to the map.
func (s *RouteSession) Drag(vertex int, p orb.Point) error {
	if !geo.ValidPoint(p) {
		return ErrInvalidPoint
	}
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if err := s.checkEditing(); err != nil {
		return err
	}
	k, err := s.controlPos(vertex)
	if err != nil {
		return err
	}

	cable.MoveControl(s.line(), s.controls, k, p)
	if err := s.w.m.MoveMarker(s.markers[k], p); err != nil {
		s.w.logr.Debug("move control marker", zap.Int("vertex", vertex), zap.Error(err))
	}
	if err := s.lease.Render(s.working); err != nil {
		s.w.logr.Debug("render working copy", zap.Error(err))
	}
	return nil
}

// DragEnd reverts the highlight. The edit stays in the working copy.
func (s *RouteSession) DragEnd(vertex int) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if err := s.checkEditing(); err != nil {
		return err
	}
	if _, err := s.controlPos(vertex); err != nil {
		return err
	}
	s.recolor(vertex, ColorControl)
	if s.active == vertex {
		s.active = -1
	}
	return nil
}

// SetInterval regenerates the control points at interval n against the
// current working geometry, so edits made so far are kept.
func (s *RouteSession) SetInterval(n int) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if err := s.checkEditing(); err != nil {
		return err
	}
	if n < 1 || n > s.w.opts.MaxInterval {
		return fmt.Errorf("%w: %d not in 1..%d", ErrIntervalOutOfRange, n, s.w.opts.MaxInterval)
	}
	s.applyInterval(n)
	return nil
}

// StepInterval moves the interval by delta, clamped to the allowed range, and
// returns the interval in effect.
func (s *RouteSession) StepInterval(delta int) (int, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if err := s.checkEditing(); err != nil {
		return 0, err
	}
	n := s.interval + delta
	if n < 1 {
		n = 1
	}
	if n > s.w.opts.MaxInterval {
		n = s.w.opts.MaxInterval
	}
	if n != s.interval {
		s.applyInterval(n)
	}
	return s.interval, nil
}

func (s *RouteSession) applyInterval(n int) {
	s.removeMarkers()
	s.interval = n
	s.active = -1
	s.placeMarkers()
}

// Save persists the full document with the edited feature. On failure the
// session returns to editing with the working copy untouched.
func (s *RouteSession) Save(ctx context.Context) error {
	w := s.w
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := s.checkEditing(); err != nil {
		return err
	}
	if err := s.feature().Validate(); err != nil {
		return err
	}

	s.state = StateSaving
	doc := s.working.Clone()
	w.mu.Unlock()
	version, err := w.routes.SaveRoutes(ctx, w.userID, doc, s.base)
	w.mu.Lock()
	w.metrics.IncRouteSave("editor", err)
	if err != nil {
		s.state = StateEditing
		w.logr.Error("route save failed", zap.String("location_id", s.locationID.String()), zap.Error(err))
		return fmt.Errorf("save route: %w", err)
	}

	s.teardown()
	if err := s.lease.Render(doc); err != nil {
		w.logr.Debug("render saved routes", zap.Error(err))
	}
	s.lease.Release()
	s.state = StateIdle
	w.route = nil
	w.doc, w.version = doc, version
	w.logr.Info("route saved", zap.String("location_id", s.locationID.String()), zap.Int("version", version))
	return nil
}

// Cancel discards the working copy after confirmation and puts the pre-edit
// document back on the map. Declining keeps the session as it was.
func (s *RouteSession) Cancel(c Confirmer) error {
	w := s.w
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := s.checkEditing(); err != nil {
		return err
	}

	s.state = StateDiscarding
	w.mu.Unlock()
	err := confirm(c, "discard route changes")
	w.mu.Lock()
	if err != nil {
		s.state = StateEditing
		return err
	}

	s.teardown()
	if err := s.lease.Render(s.original); err != nil {
		w.logr.Debug("restore original routes", zap.Error(err))
	}
	s.lease.Release()
	s.state = StateIdle
	w.route = nil
	w.logr.Info("route edit discarded", zap.String("location_id", s.locationID.String()))
	return nil
}

func (s *RouteSession) placeMarkers() {
	line := s.line()
	s.controls = cable.ControlIndices(len(line), s.interval)
	s.markers = make([]mapview.MarkerID, len(s.controls))
	for k, v := range s.controls {
		id, err := s.w.m.AddMarker(mapview.MarkerSpec{
			Kind:      mapview.MarkerControl,
			Ref:       strconv.Itoa(v),
			At:        line[v],
			Color:     ColorControl,
			Draggable: true,
		})
		if err != nil {
			s.w.logr.Debug("add control marker", zap.Int("vertex", v), zap.Error(err))
		}
		s.markers[k] = id
	}
}

func (s *RouteSession) removeMarkers() {
	for k, id := range s.markers {
		if id == 0 {
			continue
		}
		if err := s.w.m.RemoveMarker(id); err != nil {
			s.w.logr.Debug("remove control marker", zap.Int("vertex", s.controls[k]), zap.Error(err))
		}
	}
	s.markers = nil
}

func (s *RouteSession) recolor(vertex int, color string) {
	k, err := s.controlPos(vertex)
	if err != nil || s.markers[k] == 0 {
		return
	}
	if err := s.w.m.SetMarkerColor(s.markers[k], color); err != nil {
		s.w.logr.Debug("recolor control marker", zap.Int("vertex", vertex), zap.Error(err))
	}
}

func (s *RouteSession) teardown() {
	s.removeMarkers()
	s.controls = nil
	s.active = -1
}

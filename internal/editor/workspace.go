package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cablenet/internal/cable"
	"cablenet/internal/geo"
	"cablenet/internal/mapview"
	"cablenet/internal/metrics"
	"cablenet/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workspace is one operator's editing surface.
type Workspace struct {
	userID    uuid.UUID
	routes    RouteStore
	locations LocationStore
	opts      Options
	logr      *zap.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	loaded   bool
	doc      cable.FeatureCollection
	version  int
	persist  bool
	lastUsed time.Time

	m        *mapview.MemoryMap
	renderer *mapview.Renderer

	route    *RouteSession
	junction *JunctionSession
	// junctions maps a junction box id to the marker showing it.
	junctions map[uuid.UUID]mapview.MarkerID
}

func NewWorkspace(userID uuid.UUID, routes RouteStore, locations LocationStore, opts Options, logr *zap.Logger, m *metrics.Metrics) *Workspace {
	if logr == nil {
		logr = zap.NewNop()
	}
	logr = logr.With(zap.String("user_id", userID.String()))
	mm := mapview.NewMemoryMap()
	return &Workspace{
		userID:    userID,
		routes:    routes,
		locations: locations,
		opts:      opts.withDefaults(),
		logr:      logr,
		metrics:   m,
		lastUsed:  time.Now(),
		m:         mm,
		renderer:  mapview.NewRenderer(mm, logr),
		junctions: make(map[uuid.UUID]mapview.MarkerID),
	}
}

// Status is the externally visible state of a workspace.
type Status struct {
	Mode       Mode    `json:"mode"`
	State      State   `json:"state"`
	LocationID string  `json:"locationId,omitempty"`
	Interval   int     `json:"interval,omitempty"`
	Controls   []int   `json:"controls,omitempty"`
	Candidates []int   `json:"candidates,omitempty"`
	Version    int     `json:"version"`
	Routes     int     `json:"routes"`
	Visible    bool    `json:"visible"`
	Owner      string  `json:"owner,omitempty"`
	LengthM    float64 `json:"lengthMeters,omitempty"`
}

func (w *Workspace) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	st := Status{
		Mode:    w.mode(),
		State:   StateIdle,
		Version: w.version,
		Routes:  len(w.doc.Features),
		Visible: w.renderer.Visible(),
		Owner:   w.renderer.Owner(),
	}
	switch {
	case w.route != nil:
		st.State = w.route.state
		st.LocationID = w.route.locationID.String()
		st.Interval = w.route.interval
		st.Controls = append([]int(nil), w.route.controls...)
		st.LengthM = w.route.feature().Length()
	case w.junction != nil:
		st.State = StatePlacing
		st.LocationID = w.junction.location.ID.String()
		st.Candidates = w.junction.candidateVertices()
	}
	return st
}

// Map returns a copy of what the workspace map shows.
func (w *Workspace) Map() mapview.Snapshot {
	w.mu.Lock()
	w.touch()
	w.mu.Unlock()
	return w.m.Snapshot()
}

// Routes returns the committed route document and its version.
func (w *Workspace) Routes(ctx context.Context) (cable.FeatureCollection, int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureLoaded(ctx); err != nil {
		return cable.FeatureCollection{}, 0, err
	}
	return w.doc.Clone(), w.version, nil
}

// Open loads the document if needed and renders it.
func (w *Workspace) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ensureLoaded(ctx)
}

// Reload discards the cached document and reads it again. Only allowed while
// no session is active.
func (w *Workspace) Reload(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode() != ModeNone || w.persist {
		return ErrEditorBusy
	}
	w.loaded = false
	return w.ensureLoaded(ctx)
}

// Invalidate marks the cached document stale after an out-of-band write. An
// active session keeps its copy and will hit a version conflict on save.
func (w *Workspace) Invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode() == ModeNone && !w.persist {
		w.loaded = false
	}
}

// SetVisible shows or hides the routes layer without touching its data.
func (w *Workspace) SetVisible(ctx context.Context, show bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureLoaded(ctx); err != nil {
		return err
	}
	return w.renderer.SetVisible(show)
}

func (w *Workspace) mode() Mode {
	switch {
	case w.route != nil:
		return ModeRouteEdit
	case w.junction != nil:
		return ModeJunctionPlacement
	default:
		return ModeNone
	}
}

func (w *Workspace) touch() { w.lastUsed = time.Now() }

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed
}

// ensureLoaded must be called with w.mu held.
func (w *Workspace) ensureLoaded(ctx context.Context) error {
	w.touch()
	if w.loaded {
		return nil
	}
	fc, version, err := w.routes.LoadRoutes(ctx, w.userID)
	if err != nil {
		return fmt.Errorf("load routes: %w", err)
	}
	w.doc, w.version, w.loaded = fc, version, true
	if err := w.renderer.Render(w.doc); err != nil {
		w.logr.Debug("render routes after load", zap.Error(err))
	}
	return nil
}

// commit installs a persisted document. Must be called with w.mu held.
func (w *Workspace) commit(fc cable.FeatureCollection, version int) {
	w.doc, w.version = fc, version
	if err := w.renderer.Render(w.doc); err != nil {
		w.logr.Debug("render committed routes", zap.Error(err))
	}
}

// beginPersist reserves the document for a write outside any session and
// returns a copy of it with its version. Must be called with w.mu held.
func (w *Workspace) beginPersist(ctx context.Context) (cable.FeatureCollection, int, error) {
	if w.mode() != ModeNone || w.persist {
		return cable.FeatureCollection{}, 0, ErrEditorBusy
	}
	if err := w.ensureLoaded(ctx); err != nil {
		return cable.FeatureCollection{}, 0, err
	}
	w.persist = true
	return w.doc.Clone(), w.version, nil
}

// save writes fc outside the lock, then reacquires it and commits on success.
// w.mu must be held on entry and is held on return.
func (w *Workspace) save(ctx context.Context, origin string, fc cable.FeatureCollection, base int) error {
	w.mu.Unlock()
	version, err := w.routes.SaveRoutes(ctx, w.userID, fc, base)
	w.mu.Lock()
	w.persist = false
	w.metrics.IncRouteSave(origin, err)
	if err != nil {
		return fmt.Errorf("save routes: %w", err)
	}
	w.commit(fc, version)
	return nil
}

// GhostReport lists the features no live location or hub claims.
type GhostReport struct {
	Total  int   `json:"total"`
	Ghosts []int `json:"ghosts"`
}

func (w *Workspace) Ghosts(ctx context.Context) (GhostReport, error) {
	anchors, err := w.locations.ListAnchors(ctx)
	if err != nil {
		return GhostReport{}, fmt.Errorf("list anchors: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureLoaded(ctx); err != nil {
		return GhostReport{}, err
	}
	ghosts := cable.FindGhosts(w.doc, anchors)
	if ghosts == nil {
		ghosts = []int{}
	}
	return GhostReport{Total: len(w.doc.Features), Ghosts: ghosts}, nil
}

// EraseGhosts removes unclaimed features and persists the cleaned document.
// With nothing to remove it returns 0 without asking or writing.
func (w *Workspace) EraseGhosts(ctx context.Context, c Confirmer) (int, error) {
	anchors, err := w.locations.ListAnchors(ctx)
	if err != nil {
		return 0, fmt.Errorf("list anchors: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	doc, base, err := w.beginPersist(ctx)
	if err != nil {
		return 0, err
	}
	ghosts := cable.FindGhosts(doc, anchors)
	if len(ghosts) == 0 {
		w.persist = false
		w.logr.Info("no ghost routes found")
		return 0, nil
	}
	if err := confirm(c, fmt.Sprintf("erase %d ghost routes", len(ghosts))); err != nil {
		w.persist = false
		return 0, err
	}

	cleaned := cable.RemoveGhosts(doc, ghosts)
	if err := w.save(ctx, "ghosts", cleaned, base); err != nil {
		return 0, err
	}
	w.metrics.AddGhostsRemoved(len(ghosts))
	w.logr.Info("ghost routes erased", zap.Int("removed", len(ghosts)), zap.Int("remaining", len(cleaned.Features)))
	return len(ghosts), nil
}

// AppendRoute draws a default cable from hub to the location and persists
// it. A location that already has a route is rejected.
func (w *Workspace) AppendRoute(ctx context.Context, loc *models.Location, hub geo.Coordinates, color string) (cable.Feature, error) {
	if !geo.ValidCoordinates(loc.Coordinates) || !geo.ValidCoordinates(hub) {
		return cable.Feature{}, ErrInvalidPoint
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	doc, base, err := w.beginPersist(ctx)
	if err != nil {
		return cable.Feature{}, err
	}
	if doc.FindForLocation(loc.ID.String(), loc.Coordinates) >= 0 {
		w.persist = false
		return cable.Feature{}, fmt.Errorf("%w: %s", ErrRouteExists, loc.Name)
	}

	next := doc.Append(cable.NewRoute(hub, loc.Coordinates, w.opts.SpacingMeters, color, loc.ID.String()))
	if err := w.save(ctx, "cable", next, base); err != nil {
		return cable.Feature{}, err
	}
	f := next.Features[len(next.Features)-1]
	w.logr.Info("route created",
		zap.String("location_id", loc.ID.String()),
		zap.Int("vertices", len(f.Geometry.Coordinates)),
		zap.Float64("length_m", f.Length()))
	return f.Clone(), nil
}

// ShowJunctions puts a marker on every saved junction box of the location
// that is not shown yet.
func (w *Workspace) ShowJunctions(ctx context.Context, locationID uuid.UUID) ([]models.JunctionBox, error) {
	loc, err := w.locations.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	w.showBoxes(loc.JunctionBoxes)
	return loc.JunctionBoxes, nil
}

// showBoxes adds a junction marker for every box not on the map yet and
// returns the ids it drew. Callers hold w.mu.
func (w *Workspace) showBoxes(boxes []models.JunctionBox) []uuid.UUID {
	var drawn []uuid.UUID
	for _, box := range boxes {
		if _, ok := w.junctions[box.ID]; ok {
			continue
		}
		id, err := w.m.AddMarker(junctionMarker(box))
		if err != nil {
			w.logr.Debug("add junction marker", zap.String("box_id", box.ID.String()), zap.Error(err))
			continue
		}
		w.junctions[box.ID] = id
		drawn = append(drawn, box.ID)
	}
	return drawn
}

// DeleteJunctionBox removes one junction box from the location and exactly
// the marker showing it. Available in any mode.
func (w *Workspace) DeleteJunctionBox(ctx context.Context, locationID, boxID uuid.UUID, c Confirmer) error {
	if err := confirm(c, "delete junction box"); err != nil {
		return err
	}
	if err := w.locations.DeleteJunctionBox(ctx, locationID, boxID); err != nil {
		return err
	}
	w.metrics.IncJunctionBox("delete")

	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	if id, ok := w.junctions[boxID]; ok {
		if err := w.m.RemoveMarker(id); err != nil {
			w.logr.Debug("remove junction marker", zap.String("box_id", boxID.String()), zap.Error(err))
		}
		delete(w.junctions, boxID)
	}
	if w.junction != nil {
		delete(w.junction.placed, boxID)
	}
	return nil
}

// close tears down whatever session is active, discarding uncommitted work.
func (w *Workspace) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.route != nil {
		w.route.teardown()
		w.route.lease.Release()
		w.route = nil
	}
	if w.junction != nil {
		w.junction.clearCandidates()
		w.junction.lease.Release()
		w.junction = nil
	}
}

func junctionMarker(box models.JunctionBox) mapview.MarkerSpec {
	return mapview.MarkerSpec{
		Kind:  mapview.MarkerJunction,
		Ref:   box.ID.String(),
		At:    box.Coordinates.Point(),
		Color: ColorJunction,
	}
}

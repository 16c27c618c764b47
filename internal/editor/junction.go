package editor

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"cablenet/internal/cable"
	"cablenet/internal/geo"
	"cablenet/internal/mapview"
	"cablenet/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JunctionSession offers the interior vertices of a route as junction box
// candidates. Boxes picked during the session are saved immediately and
// survive Cancel; only the markers of this session are taken down.
type JunctionSession struct {
	w        *Workspace
	location *models.Location
	index    int
	original cable.FeatureCollection

	candidates map[int]mapview.MarkerID
	placed     map[uuid.UUID]mapview.MarkerID
	shown      []uuid.UUID
	picking    bool

	lease *mapview.Lease
}

// PlaceJunctions enters placement for the location's route.
func (w *Workspace) PlaceJunctions(ctx context.Context, locationID uuid.UUID) (*JunctionSession, error) {
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

	lease, err := w.renderer.Acquire(string(ModeJunctionPlacement))
	if err != nil {
		return nil, err
	}

	s := &JunctionSession{
		w:          w,
		location:   loc,
		index:      idx,
		original:   w.doc.Clone(),
		candidates: make(map[int]mapview.MarkerID),
		placed:     make(map[uuid.UUID]mapview.MarkerID),
		lease:      lease,
	}

	s.shown = w.showBoxes(loc.JunctionBoxes)

	line := w.doc.Features[idx].Geometry.Coordinates
	for v := 1; v < len(line)-1; v++ {
		if hasBoxAt(loc.JunctionBoxes, geo.FromPoint(line[v])) {
			continue
		}
		id, err := w.m.AddMarker(mapview.MarkerSpec{
			Kind:  mapview.MarkerCandidate,
			Ref:   strconv.Itoa(v),
			At:    line[v],
			Color: ColorCandidate,
		})
		if err != nil {
			w.logr.Debug("add candidate marker", zap.Int("vertex", v), zap.Error(err))
			continue
		}
		s.candidates[v] = id
	}

	w.junction = s
	w.logr.Info("junction placement started",
		zap.String("location_id", loc.ID.String()),
		zap.Int("candidates", len(s.candidates)),
		zap.Int("saved", len(loc.JunctionBoxes)))
	return s, nil
}

// Junctions returns the active placement session, if any.
func (w *Workspace) Junctions() (*JunctionSession, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.junction, w.junction != nil
}

func hasBoxAt(boxes []models.JunctionBox, at geo.Coordinates) bool {
	for _, b := range boxes {
		if b.Coordinates.Equal(at) {
			return true
		}
	}
	return false
}

// Candidates returns the vertices still offered, ascending.
func (s *JunctionSession) Candidates() []int {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.candidateVertices()
}

func (s *JunctionSession) candidateVertices() []int {
	out := make([]int, 0, len(s.candidates))
	for v := range s.candidates {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func (s *JunctionSession) check() error {
	if s.w.junction != s {
		return ErrNotPlacing
	}
	s.w.touch()
	if s.picking {
		return ErrSaveInProgress
	}
	return nil
}

// Pick saves a junction box at a candidate vertex and swaps its candidate
// marker for a junction marker.
func (s *JunctionSession) Pick(ctx context.Context, vertex int, notes, image string) (*models.JunctionBox, error) {
	w := s.w
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if _, ok := s.candidates[vertex]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotCandidate, vertex)
	}

	line := s.original.Features[s.index].Geometry.Coordinates
	box := models.JunctionBox{
		Coordinates: geo.FromPoint(line[vertex]),
		Notes:       notes,
		Image:       image,
	}

	s.picking = true
	w.mu.Unlock()
	saved, err := w.locations.AddJunctionBox(ctx, s.location.ID, box)
	w.mu.Lock()
	s.picking = false
	if err != nil {
		w.logr.Error("junction box save failed", zap.String("location_id", s.location.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("add junction box: %w", err)
	}
	w.metrics.IncJunctionBox("create")
	s.location.JunctionBoxes = append(s.location.JunctionBoxes, *saved)

	if w.junction != s {
		// Session ended while the box was being saved; the box stays.
		return saved, nil
	}
	if id, ok := s.candidates[vertex]; ok {
		if err := w.m.RemoveMarker(id); err != nil {
			w.logr.Debug("remove candidate marker", zap.Int("vertex", vertex), zap.Error(err))
		}
		delete(s.candidates, vertex)
	}
	id, err := w.m.AddMarker(junctionMarker(*saved))
	if err != nil {
		w.logr.Debug("add junction marker", zap.String("box_id", saved.ID.String()), zap.Error(err))
		return saved, nil
	}
	s.placed[saved.ID] = id
	w.junctions[saved.ID] = id
	return saved, nil
}

// Done leaves placement. Junction markers stay on the map.
func (s *JunctionSession) Done() error {
	w := s.w
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.clearCandidates()
	s.lease.Release()
	w.junction = nil
	w.logr.Info("junction placement finished",
		zap.String("location_id", s.location.ID.String()),
		zap.Int("placed", len(s.placed)))
	return nil
}

// Cancel takes down every marker this session drew, including the saved boxes
// shown on entry, and restores the routes source. Boxes already saved are not
// deleted.
func (s *JunctionSession) Cancel(c Confirmer) error {
	w := s.w
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if err := confirm(c, "cancel adding junctions"); err != nil {
		return err
	}

	s.clearCandidates()
	for boxID, id := range s.placed {
		if err := w.m.RemoveMarker(id); err != nil {
			w.logr.Debug("remove junction marker", zap.String("box_id", boxID.String()), zap.Error(err))
		}
		delete(w.junctions, boxID)
	}
	s.placed = map[uuid.UUID]mapview.MarkerID{}
	for _, boxID := range s.shown {
		if id, ok := w.junctions[boxID]; ok {
			if err := w.m.RemoveMarker(id); err != nil {
				w.logr.Debug("remove junction marker", zap.String("box_id", boxID.String()), zap.Error(err))
			}
			delete(w.junctions, boxID)
		}
	}
	s.shown = nil
	if err := s.lease.Render(s.original); err != nil {
		w.logr.Debug("restore original routes", zap.Error(err))
	}
	s.lease.Release()
	w.junction = nil
	w.logr.Info("junction placement cancelled", zap.String("location_id", s.location.ID.String()))
	return nil
}

func (s *JunctionSession) clearCandidates() {
	for v, id := range s.candidates {
		if err := s.w.m.RemoveMarker(id); err != nil {
			s.w.logr.Debug("remove candidate marker", zap.Int("vertex", v), zap.Error(err))
		}
	}
	s.candidates = map[int]mapview.MarkerID{}
}

package handlers

import (
	"net/http"
	"strconv"

	"cablenet/internal/editor"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// EditorHandler drives the calling operator's editing workspace. Every
// response that changes state returns the workspace status.
type EditorHandler struct {
	editors *editor.Manager
	logr    *zap.Logger
}

func NewEditorHandler(editors *editor.Manager, logr *zap.Logger) *EditorHandler {
	return &EditorHandler{editors: editors, logr: logr}
}

func (h *EditorHandler) workspace(w http.ResponseWriter, r *http.Request) (*editor.Workspace, bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	return h.editors.Get(userID), true
}

func (h *EditorHandler) status(w http.ResponseWriter, ws *editor.Workspace) {
	writeJSON(w, http.StatusOK, ws.Status())
}

// GET /editor
func (h *EditorHandler) Status(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Open(r.Context()); err != nil {
		fail(w, h.logr, "failed to open editor", err)
		return
	}
	h.status(w, ws)
}

// POST /editor/reload
func (h *EditorHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Reload(r.Context()); err != nil {
		fail(w, h.logr, "failed to reload routes", err)
		return
	}
	h.status(w, ws)
}

// GET /editor/map
func (h *EditorHandler) Map(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Open(r.Context()); err != nil {
		fail(w, h.logr, "failed to open editor", err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Map())
}

type visibilityReq struct {
	Visible bool `json:"visible"`
}

// PUT /editor/map/visibility
func (h *EditorHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req visibilityReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := ws.SetVisible(r.Context(), req.Visible); err != nil {
		fail(w, h.logr, "failed to change visibility", err)
		return
	}
	h.status(w, ws)
}

type locationReq struct {
	LocationID uuid.UUID `json:"locationId"`
}

// POST /editor/route
func (h *EditorHandler) EditRoute(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req locationReq
	if err := decodeJSON(w, r, &req); err != nil || req.LocationID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "locationId is required")
		return
	}
	if _, err := ws.EditRoute(r.Context(), req.LocationID); err != nil {
		fail(w, h.logr, "failed to open route", err)
		return
	}
	h.status(w, ws)
}

func (h *EditorHandler) route(w http.ResponseWriter, ws *editor.Workspace) (*editor.RouteSession, bool) {
	s, ok := ws.Route()
	if !ok {
		writeError(w, errorStatus(editor.ErrNotEditing), editor.ErrNotEditing.Error())
	}
	return s, ok
}

type markerReq struct {
	Phase string  `json:"phase"`
	Lng   float64 `json:"lng"`
	Lat   float64 `json:"lat"`
}

// POST /editor/route/markers/{vertex}
func (h *EditorHandler) DragMarker(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	vertex, err := strconv.Atoi(chi.URLParam(r, "vertex"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vertex parameter")
		return
	}
	var req markerReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	s, ok := h.route(w, ws)
	if !ok {
		return
	}

	switch req.Phase {
	case "start":
		err = s.DragStart(vertex)
	case "move", "":
		err = s.Drag(vertex, orb.Point{req.Lng, req.Lat})
	case "end":
		if err = s.Drag(vertex, orb.Point{req.Lng, req.Lat}); err == nil {
			err = s.DragEnd(vertex)
		}
	default:
		writeError(w, http.StatusBadRequest, "phase must be start, move or end")
		return
	}
	if err != nil {
		fail(w, h.logr, "failed to move marker", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Working())
}

type intervalReq struct {
	Interval *int `json:"interval"`
	Step     *int `json:"step"`
}

// PUT /editor/route/interval
func (h *EditorHandler) SetInterval(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req intervalReq
	if err := decodeJSON(w, r, &req); err != nil || (req.Interval == nil) == (req.Step == nil) {
		writeError(w, http.StatusBadRequest, "exactly one of interval or step is required")
		return
	}
	s, ok := h.route(w, ws)
	if !ok {
		return
	}

	var err error
	if req.Interval != nil {
		err = s.SetInterval(*req.Interval)
	} else {
		_, err = s.StepInterval(*req.Step)
	}
	if err != nil {
		fail(w, h.logr, "failed to change interval", err)
		return
	}
	h.status(w, ws)
}

// POST /editor/route/save
func (h *EditorHandler) SaveRoute(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	s, ok := h.route(w, ws)
	if !ok {
		return
	}
	if err := s.Save(r.Context()); err != nil {
		fail(w, h.logr, "failed to save route", err)
		return
	}
	h.status(w, ws)
}

// POST /editor/route/cancel?confirm=true
func (h *EditorHandler) CancelRoute(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	s, ok := h.route(w, ws)
	if !ok {
		return
	}
	if err := s.Cancel(confirmation(r)); err != nil {
		fail(w, h.logr, "failed to cancel route edit", err)
		return
	}
	h.status(w, ws)
}

// POST /editor/junctions
func (h *EditorHandler) PlaceJunctions(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req locationReq
	if err := decodeJSON(w, r, &req); err != nil || req.LocationID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "locationId is required")
		return
	}
	if _, err := ws.PlaceJunctions(r.Context(), req.LocationID); err != nil {
		fail(w, h.logr, "failed to start junction placement", err)
		return
	}
	h.status(w, ws)
}

func (h *EditorHandler) junctions(w http.ResponseWriter, ws *editor.Workspace) (*editor.JunctionSession, bool) {
	s, ok := ws.Junctions()
	if !ok {
		writeError(w, errorStatus(editor.ErrNotPlacing), editor.ErrNotPlacing.Error())
	}
	return s, ok
}

type pickReq struct {
	Vertex int    `json:"vertex"`
	Notes  string `json:"notes"`
	Image  string `json:"image"`
}

// POST /editor/junctions/pick
func (h *EditorHandler) PickJunction(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req pickReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	s, ok := h.junctions(w, ws)
	if !ok {
		return
	}
	box, err := s.Pick(r.Context(), req.Vertex, req.Notes, req.Image)
	if err != nil {
		fail(w, h.logr, "failed to place junction box", err)
		return
	}
	writeJSON(w, http.StatusCreated, box)
}

// POST /editor/junctions/done
func (h *EditorHandler) DoneJunctions(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	s, ok := h.junctions(w, ws)
	if !ok {
		return
	}
	if err := s.Done(); err != nil {
		fail(w, h.logr, "failed to finish junction placement", err)
		return
	}
	h.status(w, ws)
}

// POST /editor/junctions/cancel?confirm=true
func (h *EditorHandler) CancelJunctions(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	s, ok := h.junctions(w, ws)
	if !ok {
		return
	}
	if err := s.Cancel(confirmation(r)); err != nil {
		fail(w, h.logr, "failed to cancel junction placement", err)
		return
	}
	h.status(w, ws)
}

// POST /editor/junctions/show
func (h *EditorHandler) ShowJunctions(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req locationReq
	if err := decodeJSON(w, r, &req); err != nil || req.LocationID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "locationId is required")
		return
	}
	boxes, err := ws.ShowJunctions(r.Context(), req.LocationID)
	if err != nil {
		fail(w, h.logr, "failed to show junction boxes", err)
		return
	}
	writeJSON(w, http.StatusOK, boxes)
}

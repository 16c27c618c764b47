package handlers

import (
	"context"
	"net/http"
	"strings"

	"cablenet/internal/editor"
	"cablenet/internal/geo"
	"cablenet/internal/metrics"
	"cablenet/internal/models"
	"cablenet/internal/services"
	"cablenet/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type locationStore interface {
	List(ctx context.Context, params models.LocationQueryParams) ([]models.Location, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*models.Location, error)
	Create(ctx context.Context, in services.LocationInput) (*models.Location, error)
	Update(ctx context.Context, id uuid.UUID, in services.LocationInput) (*models.Location, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddJunctionBox(ctx context.Context, locationID uuid.UUID, box models.JunctionBox) (*models.JunctionBox, error)
}

type centralHub interface {
	Central(ctx context.Context) (geo.Coordinates, error)
}

type LocationHandler struct {
	service locationStore
	hubs    centralHub
	editors *editor.Manager
	metrics *metrics.Metrics
	logr    *zap.Logger
}

func NewLocationHandler(svc locationStore, hubs centralHub, editors *editor.Manager, m *metrics.Metrics, logr *zap.Logger) *LocationHandler {
	return &LocationHandler{service: svc, hubs: hubs, editors: editors, metrics: m, logr: logr}
}

// GET /locations?areaIds=a,b&search=x
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := models.LocationQueryParams{
		AreaIDs: utils.ParseQueryList(q, "areaIds"),
		Search:  strings.TrimSpace(q.Get("search")),
	}
	locs, err := h.service.List(r.Context(), params)
	if err != nil {
		fail(w, h.logr, "failed to list locations", err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loc, err := h.service.GetLocation(r.Context(), id)
	if err != nil {
		fail(w, h.logr, "failed to get location", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.LocationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	loc, err := h.service.Create(r.Context(), in)
	if err != nil {
		fail(w, h.logr, "failed to create location", err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in services.LocationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	loc, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		fail(w, h.logr, "failed to update location", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		fail(w, h.logr, "failed to delete location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /locations/{id}/cable draws a default cable from the central hub.
func (h *LocationHandler) CreateCable(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()

	loc, err := h.service.GetLocation(ctx, id)
	if err != nil {
		fail(w, h.logr, "failed to get location", err)
		return
	}
	hub, err := h.hubs.Central(ctx)
	if err != nil {
		fail(w, h.logr, "no central hub configured", err)
		return
	}
	f, err := h.editors.Get(userID).AppendRoute(ctx, loc, hub, services.RouteColor(loc))
	if err != nil {
		fail(w, h.logr, "failed to create cable", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

type junctionBoxReq struct {
	Coordinates geo.Coordinates `json:"coordinates"`
	Notes       string          `json:"notes"`
	Image       string          `json:"image"`
}

// POST /locations/{id}/junction-boxes
func (h *LocationHandler) AddJunctionBox(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req junctionBoxReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	box, err := h.service.AddJunctionBox(r.Context(), id, models.JunctionBox{
		Coordinates: req.Coordinates,
		Notes:       req.Notes,
		Image:       req.Image,
	})
	if err != nil {
		fail(w, h.logr, "failed to add junction box", err)
		return
	}
	h.metrics.IncJunctionBox("create")
	writeJSON(w, http.StatusCreated, box)
}

// DELETE /locations/{id}/junction-boxes/{boxId}?confirm=true
func (h *LocationHandler) DeleteJunctionBox(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	boxID, err := uuidParam(r, "boxId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.editors.Get(userID).DeleteJunctionBox(r.Context(), id, boxID, confirmation(r)); err != nil {
		fail(w, h.logr, "failed to delete junction box", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

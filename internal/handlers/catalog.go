package handlers

import (
	"context"
	"net/http"

	"cablenet/internal/area"
	"cablenet/internal/models"
	"cablenet/internal/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type serviceTypeStore interface {
	List(ctx context.Context) ([]models.ServiceType, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ServiceType, error)
	Create(ctx context.Context, in services.ServiceTypeInput) (*models.ServiceType, error)
	Update(ctx context.Context, id uuid.UUID, in services.ServiceTypeInput) (*models.ServiceType, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ServiceTypeHandler struct {
	service serviceTypeStore
	logr    *zap.Logger
}

func NewServiceTypeHandler(svc serviceTypeStore, logr *zap.Logger) *ServiceTypeHandler {
	return &ServiceTypeHandler{service: svc, logr: logr}
}

func (h *ServiceTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.List(r.Context())
	if err != nil {
		fail(w, h.logr, "failed to list service types", err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *ServiceTypeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.service.Get(r.Context(), id)
	if err != nil {
		fail(w, h.logr, "failed to get service type", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *ServiceTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ServiceTypeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	st, err := h.service.Create(r.Context(), in)
	if err != nil {
		fail(w, h.logr, "failed to create service type", err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *ServiceTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in services.ServiceTypeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	st, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		fail(w, h.logr, "failed to update service type", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *ServiceTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		fail(w, h.logr, "failed to delete service type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type hubStore interface {
	List(ctx context.Context) ([]models.Hub, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Hub, error)
	Create(ctx context.Context, in services.HubInput) (*models.Hub, error)
	Update(ctx context.Context, id uuid.UUID, in services.HubInput) (*models.Hub, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type HubHandler struct {
	service hubStore
	logr    *zap.Logger
}

func NewHubHandler(svc hubStore, logr *zap.Logger) *HubHandler {
	return &HubHandler{service: svc, logr: logr}
}

func (h *HubHandler) List(w http.ResponseWriter, r *http.Request) {
	hubs, err := h.service.List(r.Context())
	if err != nil {
		fail(w, h.logr, "failed to list hubs", err)
		return
	}
	writeJSON(w, http.StatusOK, hubs)
}

func (h *HubHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hub, err := h.service.Get(r.Context(), id)
	if err != nil {
		fail(w, h.logr, "failed to get hub", err)
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (h *HubHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.HubInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	hub, err := h.service.Create(r.Context(), in)
	if err != nil {
		fail(w, h.logr, "failed to create hub", err)
		return
	}
	writeJSON(w, http.StatusCreated, hub)
}

func (h *HubHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in services.HubInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	hub, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		fail(w, h.logr, "failed to update hub", err)
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (h *HubHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		fail(w, h.logr, "failed to delete hub", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type areaStore interface {
	List(ctx context.Context) ([]models.Area, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Area, error)
	Create(ctx context.Context, in services.AreaInput) (*models.Area, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Zones(ctx context.Context, ids []string) ([]area.Zone, error)
}

type AreaHandler struct {
	service areaStore
	logr    *zap.Logger
}

func NewAreaHandler(svc areaStore, logr *zap.Logger) *AreaHandler {
	return &AreaHandler{service: svc, logr: logr}
}

func (h *AreaHandler) List(w http.ResponseWriter, r *http.Request) {
	areas, err := h.service.List(r.Context())
	if err != nil {
		fail(w, h.logr, "failed to list areas", err)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

func (h *AreaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		fail(w, h.logr, "failed to get area", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AreaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.AreaInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	a, err := h.service.Create(r.Context(), in)
	if err != nil {
		fail(w, h.logr, "failed to create area", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AreaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		fail(w, h.logr, "failed to delete area", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /areas/geojson returns every area as a GeoJSON FeatureCollection.
func (h *AreaHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	zones, err := h.service.Zones(r.Context(), nil)
	if err != nil {
		fail(w, h.logr, "failed to load areas", err)
		return
	}
	writeJSON(w, http.StatusOK, area.Coverage(zones))
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"cablenet/internal/editor"
	"cablenet/internal/metrics"
	"cablenet/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type userStore interface {
	GetMe(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetGeoJSON(ctx context.Context, userID uuid.UUID) (json.RawMessage, int, error)
	PutGeoJSON(ctx context.Context, userID uuid.UUID, raw json.RawMessage, baseVersion int) (int, error)
}

type UserHandler struct {
	users   userStore
	editors *editor.Manager
	metrics *metrics.Metrics
	logr    *zap.Logger
}

func NewUserHandler(users userStore, editors *editor.Manager, m *metrics.Metrics, logr *zap.Logger) *UserHandler {
	return &UserHandler{users: users, editors: editors, metrics: m, logr: logr}
}

// GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	u, err := h.users.GetMe(r.Context(), userID)
	if err != nil {
		fail(w, h.logr, "failed to load user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type geoJSONDoc struct {
	GeoJSON json.RawMessage `json:"geojson"`
	Version int             `json:"version"`
}

// GET /users/me/geojson
func (h *UserHandler) GetGeoJSON(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	raw, version, err := h.users.GetGeoJSON(r.Context(), userID)
	if err != nil {
		fail(w, h.logr, "failed to load geojson", err)
		return
	}
	writeJSON(w, http.StatusOK, geoJSONDoc{GeoJSON: raw, Version: version})
}

// PUT /users/me/geojson replaces the whole route document.
func (h *UserHandler) PutGeoJSON(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req geoJSONDoc
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	version, err := h.users.PutGeoJSON(r.Context(), userID, req.GeoJSON, req.Version)
	h.metrics.IncRouteSave("api", err)
	if err != nil {
		fail(w, h.logr, "failed to save geojson", err)
		return
	}
	if ws, ok := h.editors.Lookup(userID); ok {
		ws.Invalidate()
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "version": version})
}

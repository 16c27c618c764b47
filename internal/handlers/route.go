package handlers

import (
	"context"
	"net/http"

	"cablenet/internal/cable"
	"cablenet/internal/editor"
	"cablenet/internal/models"

	"go.uber.org/zap"
)

type locationLister interface {
	List(ctx context.Context, params models.LocationQueryParams) ([]models.Location, error)
}

// RouteHandler serves the whole-document route operations.
type RouteHandler struct {
	locations locationLister
	editors   *editor.Manager
	logr      *zap.Logger
}

func NewRouteHandler(locations locationLister, editors *editor.Manager, logr *zap.Logger) *RouteHandler {
	return &RouteHandler{locations: locations, editors: editors, logr: logr}
}

// GET /routes/ghosts
func (h *RouteHandler) Ghosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	report, err := h.editors.Get(userID).Ghosts(r.Context())
	if err != nil {
		fail(w, h.logr, "failed to find ghost routes", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// POST /routes/ghosts/erase?confirm=true
func (h *RouteHandler) EraseGhosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	removed, err := h.editors.Get(userID).EraseGhosts(r.Context(), confirmation(r))
	if err != nil {
		fail(w, h.logr, "failed to erase ghost routes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}

// GET /routes/export.kml
func (h *RouteHandler) ExportKML(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	fc, _, err := h.editors.Get(userID).Routes(ctx)
	if err != nil {
		fail(w, h.logr, "failed to load routes", err)
		return
	}
	locs, err := h.locations.List(ctx, models.LocationQueryParams{})
	if err != nil {
		fail(w, h.logr, "failed to list locations", err)
		return
	}

	labels := make(map[string]string, len(locs))
	var boxes []cable.Placemark
	for _, loc := range locs {
		labels[loc.ID.String()] = loc.Name
		for _, box := range loc.JunctionBoxes {
			boxes = append(boxes, cable.Placemark{
				Name:        loc.Name + " junction",
				Description: box.Notes,
				At:          box.Coordinates,
			})
		}
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="routes.kml"`)
	if err := cable.WriteKML(w, "Cable routes", fc, labels, boxes); err != nil {
		h.logr.Error("failed to write kml", zap.Error(err))
	}
}

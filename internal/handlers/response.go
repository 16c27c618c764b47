package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cablenet/internal/cable"
	"cablenet/internal/editor"
	"cablenet/internal/mapview"
	mdlwr "cablenet/internal/middleware"
	"cablenet/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; route documents can be large.
const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

// errorStatus maps a domain error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, editor.ErrInvalidPoint),
		errors.Is(err, editor.ErrIntervalOutOfRange),
		errors.Is(err, editor.ErrNotControlPoint),
		errors.Is(err, editor.ErrNotCandidate),
		errors.Is(err, cable.ErrNotObject),
		errors.Is(err, cable.ErrTooFewPoints),
		errors.Is(err, cable.ErrBadCoordinate):
		return http.StatusBadRequest
	case errors.Is(err, cable.ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, editor.ErrRouteNotFound),
		errors.Is(err, mapview.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrVersionConflict),
		errors.Is(err, editor.ErrEditorBusy),
		errors.Is(err, editor.ErrRouteExists),
		errors.Is(err, editor.ErrNotConfirmed),
		errors.Is(err, editor.ErrNotEditing),
		errors.Is(err, editor.ErrNotPlacing),
		errors.Is(err, editor.ErrSaveInProgress),
		errors.Is(err, mapview.ErrSourceBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged and
// their message hidden.
func fail(w http.ResponseWriter, logr *zap.Logger, msg string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logr.Error(msg, zap.Error(err))
		writeError(w, status, msg)
		return
	}
	logr.Debug(msg, zap.Error(err), zap.Int("status", status))
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

// currentUser reads the user placed on the context by the auth middleware.
func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := mdlwr.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	}
	return id, ok
}

// confirmation approves destructive operations when the request carries
// ?confirm=true.
func confirmation(r *http.Request) editor.Confirmer {
	ok := r.URL.Query().Get("confirm") == "true"
	return editor.ConfirmFunc(func(string) bool { return ok })
}

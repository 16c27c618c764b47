// Package editor holds the per-operator editing workspaces: the route
// document as last loaded, the map it is rendered into and at most one active
// session, either a control-point route edit or a junction placement.
//
// Every transition runs under the workspace lock. Persistence runs outside
// it with the session marked as saving, so a conflicting request fails fast
// instead of queueing behind the store.
package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cablenet/internal/cable"
	"cablenet/internal/models"

	"github.com/google/uuid"
)

var (
	ErrEditorBusy         = errors.New("another editing session is active")
	ErrRouteNotFound      = errors.New("no route for location")
	ErrRouteExists        = errors.New("location already has a route")
	ErrNotConfirmed       = errors.New("confirmation required")
	ErrNotEditing         = errors.New("no route edit in progress")
	ErrNotPlacing         = errors.New("no junction placement in progress")
	ErrSaveInProgress     = errors.New("a save is already in flight")
	ErrIntervalOutOfRange = errors.New("interval out of range")
	ErrNotControlPoint    = errors.New("vertex is not a control point")
	ErrNotCandidate       = errors.New("vertex is not a junction candidate")
	ErrInvalidPoint       = errors.New("coordinate out of range")
)

// Marker colors.
const (
	ColorControl   = "#3FB1CE"
	ColorActive    = "#FF5722"
	ColorCandidate = "#9E9E9E"
	ColorJunction  = "#FFC107"
)

// Mode names the active session of a workspace.
type Mode string

const (
	ModeNone              Mode = "none"
	ModeRouteEdit         Mode = "route_edit"
	ModeJunctionPlacement Mode = "junction_placement"
)

// State is the route editor state. Idle means no route session exists.
type State string

const (
	StateIdle       State = "idle"
	StateEditing    State = "editing"
	StateSaving     State = "saving"
	StateDiscarding State = "discarding"
	StatePlacing    State = "placing"
)

// RouteStore persists an operator's route document. SaveRoutes must reject a
// stale baseVersion and return the new version on success.
type RouteStore interface {
	LoadRoutes(ctx context.Context, userID uuid.UUID) (cable.FeatureCollection, int, error)
	SaveRoutes(ctx context.Context, userID uuid.UUID, fc cable.FeatureCollection, baseVersion int) (int, error)
}

// LocationStore is what the editor needs from the location and hub records.
type LocationStore interface {
	GetLocation(ctx context.Context, id uuid.UUID) (*models.Location, error)
	AddJunctionBox(ctx context.Context, locationID uuid.UUID, box models.JunctionBox) (*models.JunctionBox, error)
	DeleteJunctionBox(ctx context.Context, locationID, boxID uuid.UUID) error
	ListAnchors(ctx context.Context) ([]cable.Anchor, error)
}

// Confirmer gates destructive transitions.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Confirmed approves every prompt.
var Confirmed = ConfirmFunc(func(string) bool { return true })

func confirm(c Confirmer, prompt string) error {
	if c == nil || !c.Confirm(prompt) {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, prompt)
	}
	return nil
}

type Options struct {
	MaxInterval   int
	SpacingMeters float64
	IdleTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxInterval < 1 {
		o.MaxInterval = 100
	}
	if o.SpacingMeters <= 0 {
		o.SpacingMeters = 25
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Minute
	}
	return o
}

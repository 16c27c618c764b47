package mapview

import (
	"sync"

	"cablenet/internal/cable"

	"go.uber.org/zap"
)

const (
	SourceID = "routes"
	LayerID  = "routes-line"

	visibilityProperty = "visibility"
	visible            = "visible"
	hidden             = "none"
)

// Renderer projects a route collection onto the "routes" source and its line
// layer. At most one Lease exists at a time; while it is held, only the lease
// may write the source.
type Renderer struct {
	m    Map
	logr *zap.Logger

	mu    sync.Mutex
	lease *Lease
}

func NewRenderer(m Map, logr *zap.Logger) *Renderer {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Renderer{m: m, logr: logr}
}

func routeLayer() Layer {
	return Layer{
		ID:     LayerID,
		Type:   "line",
		Source: SourceID,
		Layout: map[string]string{
			visibilityProperty: visible,
			"line-join":        "round",
			"line-cap":         "round",
		},
		Paint: map[string]string{
			"line-color": `["get","color"]`,
			"line-width": "3",
		},
	}
}

// Render makes the map show fc. It fails with ErrSourceBusy while a lease is
// held.
func (r *Renderer) Render(fc cable.FeatureCollection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lease != nil {
		return ErrSourceBusy
	}
	return r.render(fc)
}

func (r *Renderer) render(fc cable.FeatureCollection) error {
	if _, ok := r.m.GetSource(SourceID); ok {
		if err := r.m.SetSourceData(SourceID, fc); err != nil {
			r.logr.Debug("set routes source data", zap.Error(err))
			return err
		}
		if _, ok := r.m.GetLayer(LayerID); ok {
			return nil
		}
		if err := r.m.AddLayer(routeLayer()); err != nil {
			r.logr.Debug("add routes layer", zap.Error(err))
			return err
		}
		return nil
	}

	if err := r.m.AddSource(SourceID, fc); err != nil {
		r.logr.Debug("add routes source", zap.Error(err))
		return err
	}
	if err := r.m.AddLayer(routeLayer()); err != nil {
		r.logr.Debug("add routes layer", zap.Error(err))
		if rerr := r.m.RemoveSource(SourceID); rerr != nil {
			r.logr.Debug("roll back routes source", zap.Error(rerr))
		}
		return err
	}
	return nil
}

// Current returns what the routes source holds, if it exists.
func (r *Renderer) Current() (cable.FeatureCollection, bool) {
	return r.m.GetSource(SourceID)
}

// SetVisible flips the layer's visibility layout property. The layer is
// never removed for this.
func (r *Renderer) SetVisible(show bool) error {
	value := hidden
	if show {
		value = visible
	}
	if err := r.m.SetLayoutProperty(LayerID, visibilityProperty, value); err != nil {
		r.logr.Debug("set routes visibility", zap.String("value", value), zap.Error(err))
		return err
	}
	return nil
}

// Visible reports whether the routes layer exists and is shown.
func (r *Renderer) Visible() bool {
	l, ok := r.m.GetLayer(LayerID)
	if !ok {
		return false
	}
	return l.Layout[visibilityProperty] != hidden
}

// Remove drops the layer and source. It reports whether neither is left on
// the map afterwards, so calling it twice returns true both times. It does
// nothing while a lease is held.
func (r *Renderer) Remove() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lease != nil {
		return false
	}

	ok := true
	if _, exists := r.m.GetLayer(LayerID); exists {
		if err := r.m.RemoveLayer(LayerID); err != nil {
			r.logr.Debug("remove routes layer", zap.Error(err))
			ok = false
		}
	}
	if _, exists := r.m.GetSource(SourceID); exists {
		if err := r.m.RemoveSource(SourceID); err != nil {
			r.logr.Debug("remove routes source", zap.Error(err))
			ok = false
		}
	}
	return ok
}

// Acquire hands out the single write token for the routes source.
func (r *Renderer) Acquire(owner string) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lease != nil {
		return nil, ErrSourceBusy
	}
	r.lease = &Lease{r: r, owner: owner}
	return r.lease, nil
}

// Owner names the current lease holder, or "" when the source is free.
func (r *Renderer) Owner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lease == nil {
		return ""
	}
	return r.lease.owner
}

// Lease is exclusive write access to the routes source.
type Lease struct {
	r     *Renderer
	owner string
}

func (l *Lease) Owner() string { return l.owner }

// Render writes fc to the source. It fails with ErrSourceBusy once the lease
// has been released.
func (l *Lease) Render(fc cable.FeatureCollection) error {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	if l.r.lease != l {
		return ErrSourceBusy
	}
	return l.r.render(fc)
}

// Release gives the source back. Safe to call more than once.
func (l *Lease) Release() {
	l.r.mu.Lock()
	defer l.r.mu.Unlock()
	if l.r.lease == l {
		l.r.lease = nil
	}
}

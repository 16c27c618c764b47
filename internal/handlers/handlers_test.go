package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cablenet/internal/area"
	"cablenet/internal/cable"
	"cablenet/internal/editor"
	"cablenet/internal/geo"
	"cablenet/internal/mapview"
	mdlwr "cablenet/internal/middleware"
	"cablenet/internal/models"
	"cablenet/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRoutes struct {
	mu      sync.Mutex
	doc     cable.FeatureCollection
	version int
	saves   int
}

func (f *fakeRoutes) LoadRoutes(context.Context, uuid.UUID) (cable.FeatureCollection, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Clone(), f.version, nil
}

func (f *fakeRoutes) SaveRoutes(_ context.Context, _ uuid.UUID, fc cable.FeatureCollection, base int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if base != f.version {
		return 0, services.ErrVersionConflict
	}
	f.doc, f.version = fc.Clone(), f.version+1
	f.saves++
	return f.version, nil
}

type fakeLocations struct {
	mu         sync.Mutex
	locs       map[uuid.UUID]*models.Location
	lastParams models.LocationQueryParams
}

func (f *fakeLocations) List(_ context.Context, p models.LocationQueryParams) ([]models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastParams = p
	out := []models.Location{}
	for _, l := range f.locs {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeLocations) GetLocation(_ context.Context, id uuid.UUID) (*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locs[id]
	if !ok {
		return nil, fmt.Errorf("location: %w", services.ErrNotFound)
	}
	c := *l
	c.JunctionBoxes = append([]models.JunctionBox(nil), l.JunctionBoxes...)
	return &c, nil
}

func (f *fakeLocations) Create(_ context.Context, in services.LocationInput) (*models.Location, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", services.ErrValidation)
	}
	l := &models.Location{ID: uuid.New(), Name: in.Name, Coordinates: in.Coordinates}
	f.mu.Lock()
	f.locs[l.ID] = l
	f.mu.Unlock()
	return l, nil
}

func (f *fakeLocations) Update(ctx context.Context, id uuid.UUID, in services.LocationInput) (*models.Location, error) {
	return f.GetLocation(ctx, id)
}

func (f *fakeLocations) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.locs[id]; !ok {
		return services.ErrNotFound
	}
	delete(f.locs, id)
	return nil
}

func (f *fakeLocations) AddJunctionBox(_ context.Context, id uuid.UUID, box models.JunctionBox) (*models.JunctionBox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locs[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	box.ID = uuid.New()
	l.JunctionBoxes = append(l.JunctionBoxes, box)
	return &box, nil
}

func (f *fakeLocations) DeleteJunctionBox(_ context.Context, id, boxID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locs[id]
	if !ok {
		return services.ErrNotFound
	}
	for i, b := range l.JunctionBoxes {
		if b.ID == boxID {
			l.JunctionBoxes = append(l.JunctionBoxes[:i], l.JunctionBoxes[i+1:]...)
			return nil
		}
	}
	return services.ErrNotFound
}

func (f *fakeLocations) ListAnchors(context.Context) ([]cable.Anchor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cable.Anchor
	for _, l := range f.locs {
		out = append(out, cable.Anchor{LocationID: l.ID.String(), Coordinates: l.Coordinates})
	}
	return out, nil
}

type fakeHub struct{ at geo.Coordinates }

func (f fakeHub) Central(context.Context) (geo.Coordinates, error) { return f.at, nil }

type fakeAreas struct{ zones []area.Zone }

func (f fakeAreas) List(context.Context) ([]models.Area, error) { return nil, nil }
func (f fakeAreas) Get(context.Context, uuid.UUID) (*models.Area, error) {
	return nil, services.ErrNotFound
}
func (f fakeAreas) Delete(context.Context, uuid.UUID) error { return nil }
func (f fakeAreas) Zones(context.Context, []string) ([]area.Zone, error) {
	return f.zones, nil
}
func (f fakeAreas) Create(context.Context, services.AreaInput) (*models.Area, error) {
	return nil, nil
}

type fixture struct {
	router    http.Handler
	routes    *fakeRoutes
	locations *fakeLocations
	editors   *editor.Manager
	userID    uuid.UUID
	withRoute *models.Location
	bare      *models.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	withRoute := &models.Location{ID: uuid.New(), Name: "North site", Coordinates: geo.Coordinates{Latitude: 10.9820, Longitude: 76.9650}}
	bare := &models.Location{ID: uuid.New(), Name: "South site", Coordinates: geo.Coordinates{Latitude: 10.9700, Longitude: 76.9600}}

	doc := cable.Empty().Append(cable.Feature{
		Type: cable.TypeFeature,
		Geometry: cable.Geometry{
			Type:        cable.TypeLineString,
			Coordinates: orb.LineString{{76.9640, 10.9810}, {76.9645, 10.9815}, {76.9650, 10.9820}},
		},
		Properties:  cable.Properties{Color: "#ff0000", LocationID: withRoute.ID.String()},
		Coordinates: withRoute.Coordinates,
	})

	f := &fixture{
		routes:    &fakeRoutes{doc: doc, version: 1},
		locations: &fakeLocations{locs: map[uuid.UUID]*models.Location{withRoute.ID: withRoute, bare.ID: bare}},
		userID:    uuid.New(),
		withRoute: withRoute,
		bare:      bare,
	}
	f.editors = editor.NewManager(f.routes, f.locations, editor.Options{MaxInterval: 100}, zap.NewNop(), nil)

	locH := NewLocationHandler(f.locations, fakeHub{at: geo.Coordinates{Latitude: 10.9810, Longitude: 76.9640}}, f.editors, nil, zap.NewNop())
	routeH := NewRouteHandler(f.locations, f.editors, zap.NewNop())
	edH := NewEditorHandler(f.editors, zap.NewNop())
	areaH := NewAreaHandler(fakeAreas{zones: []area.Zone{area.NewZone("a1", "North", withRoute.Coordinates, 300, 16)}}, zap.NewNop())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-Anonymous") == "" {
				req = req.WithContext(mdlwr.WithUser(req.Context(), f.userID, "local", nil))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/locations", locH.List)
	r.Post("/locations", locH.Create)
	r.Post("/locations/{id}/cable", locH.CreateCable)
	r.Post("/locations/{id}/junction-boxes", locH.AddJunctionBox)
	r.Delete("/locations/{id}/junction-boxes/{boxId}", locH.DeleteJunctionBox)
	r.Get("/routes/ghosts", routeH.Ghosts)
	r.Post("/routes/ghosts/erase", routeH.EraseGhosts)
	r.Get("/routes/export.kml", routeH.ExportKML)
	r.Get("/areas/geojson", areaH.Coverage)
	r.Get("/editor", edH.Status)
	r.Get("/editor/map", edH.Map)
	r.Post("/editor/route", edH.EditRoute)
	r.Post("/editor/route/markers/{vertex}", edH.DragMarker)
	r.Put("/editor/route/interval", edH.SetInterval)
	r.Post("/editor/route/save", edH.SaveRoute)
	r.Post("/editor/route/cancel", edH.CancelRoute)
	r.Post("/editor/junctions", edH.PlaceJunctions)
	r.Post("/editor/junctions/pick", edH.PickJunction)
	r.Post("/editor/junctions/done", edH.DoneJunctions)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) editor.Status {
	t.Helper()
	var st editor.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st), rec.Body.String())
	return st
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.False(t, body.Success)
	return body.Error
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", services.ErrValidation), http.StatusBadRequest},
		{editor.ErrIntervalOutOfRange, http.StatusBadRequest},
		{cable.ErrTooFewPoints, http.StatusBadRequest},
		{fmt.Errorf("load routes: %w", fmt.Errorf("%w: bad id", cable.ErrMalformed)), http.StatusUnprocessableEntity},
		{fmt.Errorf("location: %w", services.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w %q", editor.ErrRouteNotFound, "x"), http.StatusNotFound},
		{fmt.Errorf("save route: %w", services.ErrVersionConflict), http.StatusConflict},
		{editor.ErrEditorBusy, http.StatusConflict},
		{fmt.Errorf("%w: discard", editor.ErrNotConfirmed), http.StatusConflict},
		{mapview.ErrSourceBusy, http.StatusConflict},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, errorStatus(c.err), c.err.Error())
	}
}

func TestEditorRouteFlow_CancelNeedsConfirmation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/editor/route", map[string]any{"locationId": f.withRoute.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeStatus(t, rec)
	assert.Equal(t, editor.ModeRouteEdit, st.Mode)
	assert.Equal(t, []int{0, 1, 2}, st.Controls)

	rec = f.do(t, http.MethodPost, "/editor/route/markers/1", map[string]any{"phase": "move", "lng": 76.9660, "lat": 10.9830})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved cable.Feature
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &moved))
	assert.Equal(t, orb.Point{76.9660, 10.9830}, moved.Geometry.Coordinates[1])

	rec = f.do(t, http.MethodPost, "/editor/route/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "confirmation required")

	rec = f.do(t, http.MethodPost, "/editor/route/cancel?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, editor.ModeNone, decodeStatus(t, rec).Mode)
	assert.Equal(t, 0, f.routes.saves)
}

func TestEditorRouteFlow_Save(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/editor/route", map[string]any{"locationId": f.withRoute.ID}).Code)
	rec := f.do(t, http.MethodPost, "/editor/route/markers/1", map[string]any{"phase": "end", "lng": 76.9660, "lat": 10.9830})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/editor/route/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeStatus(t, rec)
	assert.Equal(t, editor.ModeNone, st.Mode)
	assert.Equal(t, 2, st.Version)
	assert.Equal(t, 1, f.routes.saves)
	assert.Equal(t, orb.Point{76.9660, 10.9830}, f.routes.doc.Features[0].Geometry.Coordinates[1])

	rec = f.do(t, http.MethodPost, "/editor/route/save", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEditorRoute_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/editor/route", map[string]any{"locationId": f.bare.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "South site")

	rec = f.do(t, http.MethodPost, "/editor/route", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/editor/route", map[string]any{"locationId": f.withRoute.ID}).Code)

	rec = f.do(t, http.MethodPost, "/editor/junctions", map[string]any{"locationId": f.withRoute.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPut, "/editor/route/interval", map[string]any{"interval": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/editor/route/interval", map[string]any{"interval": 2, "step": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/editor/route/interval", map[string]any{"interval": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []int{0, 2}, decodeStatus(t, rec).Controls)

	rec = f.do(t, http.MethodPost, "/editor/route/markers/1", map[string]any{"phase": "move", "lng": 1, "lat": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/editor/route/markers/2", map[string]any{"phase": "wiggle"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditorJunctions_PickAndDelete(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/editor/junctions", map[string]any{"locationId": f.withRoute.ID}).Code)

	rec := f.do(t, http.MethodPost, "/editor/junctions/pick", map[string]any{"vertex": 1, "notes": "splice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var box models.JunctionBox
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &box))
	assert.Equal(t, geo.Coordinates{Latitude: 10.9815, Longitude: 76.9645}, box.Coordinates)

	rec = f.do(t, http.MethodPost, "/editor/junctions/pick", map[string]any{"vertex": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/editor/junctions/done", nil).Code)

	path := fmt.Sprintf("/locations/%s/junction-boxes/%s", f.withRoute.ID, box.ID)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path+"?confirm=true", nil).Code)
	assert.Empty(t, f.locations.locs[f.withRoute.ID].JunctionBoxes)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path+"?confirm=true", nil).Code)

	rec = f.do(t, http.MethodGet, "/editor/map", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap mapview.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Empty(t, snap.Markers)
}

func TestGhosts_EraseNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	delete(f.locations.locs, f.withRoute.ID)

	rec := f.do(t, http.MethodGet, "/routes/ghosts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report editor.GhostReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, []int{0}, report.Ghosts)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/routes/ghosts/erase", nil).Code)
	rec = f.do(t, http.MethodPost, "/routes/ghosts/erase?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"removed":1}`, rec.Body.String())
	assert.Empty(t, f.routes.doc.Features)
}

func TestCreateCable(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/locations/%s/cable", f.bare.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var feat cable.Feature
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feat))
	assert.Equal(t, f.bare.ID.String(), feat.Properties.LocationID)
	assert.Equal(t, cable.DefaultColor, feat.Properties.Color)
	assert.Len(t, f.routes.doc.Features, 2)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/locations/%s/cable", f.bare.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/locations/not-a-uuid/cable", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocations_ListParsesAreaIDs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/locations?areaIds=a1,%20a2,&search=north", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a1", "a2"}, f.locations.lastParams.AreaIDs)
	assert.Equal(t, "north", f.locations.lastParams.Search)

	f.do(t, http.MethodGet, "/locations", nil)
	assert.Nil(t, f.locations.lastParams.AreaIDs)

	rec = f.do(t, http.MethodPost, "/locations", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAreaCoverage(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/areas/geojson", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FeatureCollection", body.Type)
	require.Len(t, body.Features, 1)
	assert.Equal(t, "Polygon", body.Features[0].Geometry.Type)
	assert.Equal(t, "North", body.Features[0].Properties["name"])
}

func TestExportKML(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/routes/export.kml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.google-earth.kml+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<LineString>")
	assert.Contains(t, rec.Body.String(), "North site")
}

func TestUnauthenticated(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/editor", nil)
	req.Header.Set("X-Anonymous", "1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

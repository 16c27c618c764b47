package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics
	m.IncRouteSave("editor", nil)
	m.AddGhostsRemoved(3)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "metrics unavailable")
}

func TestHandler_exposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/healthz", http.StatusOK, 12*time.Millisecond)
	m.IncRouteSave("editor", nil)
	m.IncRouteSave("editor", errors.New("conflict"))
	m.AddGhostsRemoved(2)
	m.AddGhostsRemoved(0)
	m.IncJunctionBox("create")
	m.SetEditorWorkspaces(4)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `cablenet_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
	assert.Contains(t, body, `cablenet_route_saves_total{origin="editor",result="ok"} 1`)
	assert.Contains(t, body, `cablenet_route_saves_total{origin="editor",result="error"} 1`)
	assert.Contains(t, body, "cablenet_ghost_routes_removed_total 2")
	assert.Contains(t, body, `cablenet_junction_boxes_total{op="create"} 1`)
	assert.Contains(t, body, "cablenet_editor_workspaces 4")
}

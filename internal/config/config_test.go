package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"APP_PORT", "AUTO_MIGRATE", "DEFAULT_AREA_RADIUS_M", "CIRCLE_POLYGON_SIDES",
		"ROUTE_VERTEX_SPACING_M", "MAX_CONTROL_INTERVAL", "EDITOR_IDLE_TIMEOUT",
		"CENTRAL_HUB_LAT", "CENTRAL_HUB_LNG", "ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8780", cfg.Port)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 500.0, cfg.DefaultAreaRadius)
	assert.Equal(t, 64, cfg.CirclePolygonSides)
	assert.Equal(t, 25.0, cfg.RouteVertexSpacing)
	assert.Equal(t, 100, cfg.MaxControlInterval)
	assert.Equal(t, 30*time.Minute, cfg.EditorIdleTimeout)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Nil(t, cfg.CentralHub)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("DEFAULT_AREA_RADIUS_M", "750.5")
	t.Setenv("CIRCLE_POLYGON_SIDES", "32")
	t.Setenv("EDITOR_IDLE_TIMEOUT", "5m")
	t.Setenv("CENTRAL_HUB_LAT", "10.9810")
	t.Setenv("CENTRAL_HUB_LNG", "76.9640")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg := Load()
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 750.5, cfg.DefaultAreaRadius)
	assert.Equal(t, 32, cfg.CirclePolygonSides)
	assert.Equal(t, 5*time.Minute, cfg.EditorIdleTimeout)
	require.NotNil(t, cfg.CentralHub)
	assert.Equal(t, 10.9810, cfg.CentralHub.Latitude)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_CONTROL_INTERVAL", "lots")
	t.Setenv("EDITOR_IDLE_TIMEOUT", "soon")
	t.Setenv("BUNDEBUG", "maybe")
	t.Setenv("CENTRAL_HUB_LAT", "123")
	t.Setenv("CENTRAL_HUB_LNG", "76")

	cfg := Load()
	assert.Equal(t, 100, cfg.MaxControlInterval)
	assert.Equal(t, 30*time.Minute, cfg.EditorIdleTimeout)
	assert.False(t, cfg.BunDebug)
	assert.Nil(t, cfg.CentralHub)
}

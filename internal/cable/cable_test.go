package cable

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"cablenet/internal/geo"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feature(id int, anchor geo.Coordinates, locationID string, pts ...orb.Point) Feature {
	return Feature{
		Type:        TypeFeature,
		Geometry:    Geometry{Type: TypeLineString, Coordinates: pts},
		Properties:  Properties{ID: id, Color: "#ff0000", LocationID: locationID},
		Coordinates: anchor,
	}
}

func TestParse_ShapeRules(t *testing.T) {
	fc, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, TypeFeatureCollection, fc.Type)
	assert.Empty(t, fc.Features)

	_, err = Parse([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)

	raw := `{"type":"FeatureCollection","features":[{"type":"Feature",` +
		`"geometry":{"type":"LineString","coordinates":[[76.964,10.981],[76.965,10.982]]},` +
		`"properties":{"id":0,"color":"#00ff00"},"coordinates":{"latitude":10.982,"longitude":76.965}}]}`
	fc, err = Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, orb.Point{76.964, 10.981}, fc.Features[0].Geometry.Coordinates[0])
	assert.Equal(t, geo.Coordinates{Latitude: 10.982, Longitude: 76.965}, fc.Features[0].Coordinates)

	out, err := fc.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"coordinates":{"latitude":10.982,"longitude":76.965}`)
}

func TestClone_IsDeep(t *testing.T) {
	fc := Empty().Append(feature(0, geo.Coordinates{}, "", orb.Point{0, 0}, orb.Point{1, 1}))
	cp := fc.Clone()
	cp.Features[0].Geometry.Coordinates[0] = orb.Point{9, 9}

	assert.Equal(t, orb.Point{0, 0}, fc.Features[0].Geometry.Coordinates[0])
}

func TestFindForLocation_PrefersForeignKey(t *testing.T) {
	at := geo.Coordinates{Latitude: 10.982, Longitude: 76.965}
	fc := FeatureCollection{Type: TypeFeatureCollection, Features: []Feature{
		feature(0, at, "other", orb.Point{0, 0}, orb.Point{1, 1}),
		feature(1, geo.Coordinates{}, "loc-1", orb.Point{0, 0}, orb.Point{1, 1}),
		feature(2, at, "", orb.Point{0, 0}, orb.Point{1, 1}),
	}}

	assert.Equal(t, 1, fc.FindForLocation("loc-1", geo.Coordinates{Latitude: 1, Longitude: 1}))
	assert.Equal(t, 2, fc.FindForLocation("loc-2", at))
	assert.Equal(t, -1, fc.FindForLocation("loc-3", geo.Coordinates{Latitude: 5, Longitude: 5}))
}

func TestValidate(t *testing.T) {
	ok := Empty().Append(feature(0, geo.Coordinates{}, "", orb.Point{0, 0}, orb.Point{1, 1}))
	assert.NoError(t, ok.Validate())

	short := Empty().Append(feature(0, geo.Coordinates{}, "", orb.Point{0, 0}))
	assert.ErrorIs(t, short.Validate(), ErrTooFewPoints)

	bad := Empty().Append(feature(0, geo.Coordinates{}, "", orb.Point{0, 0}, orb.Point{200, 0}))
	assert.ErrorIs(t, bad.Validate(), ErrBadCoordinate)
}

func TestControlIndices(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, ControlIndices(3, 1))
	assert.Equal(t, []int{0, 3, 6, 9, 10}, ControlIndices(11, 3))
	assert.Equal(t, []int{0, 4}, ControlIndices(5, 100))
	assert.Equal(t, []int{0}, ControlIndices(1, 2))
	assert.Nil(t, ControlIndices(0, 1))
}

func TestMoveControl_ReinterpolatesNeighbours(t *testing.T) {
	line := orb.LineString{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}, {6, 0}}
	controls := ControlIndices(len(line), 3) // 0, 3, 6

	MoveControl(line, controls, 1, orb.Point{3, 3})

	assert.Equal(t, orb.Point{0, 0}, line[0])
	assert.Equal(t, orb.Point{3, 3}, line[3])
	assert.Equal(t, orb.Point{6, 0}, line[6])
	for k := 1; k < 3; k++ {
		want := geo.Lerp(line[0], line[3], float64(k)/3)
		assert.InDelta(t, want[0], line[k][0], 1e-12)
		assert.InDelta(t, want[1], line[k][1], 1e-12)
	}
	for k := 4; k < 6; k++ {
		want := geo.Lerp(line[3], line[6], float64(k-3)/3)
		assert.InDelta(t, want[0], line[k][0], 1e-12)
		assert.InDelta(t, want[1], line[k][1], 1e-12)
	}
}

func TestMoveControl_NoIntermediateVertices(t *testing.T) {
	line := orb.LineString{{76.9640, 10.9810}, {76.9645, 10.9815}, {76.9650, 10.9820}}
	MoveControl(line, ControlIndices(3, 1), 1, orb.Point{76.9648, 10.9818})

	assert.Equal(t, orb.LineString{{76.9640, 10.9810}, {76.9648, 10.9818}, {76.9650, 10.9820}}, line)
}

func TestFindGhosts_PartitionAndIdempotent(t *testing.T) {
	live := geo.Coordinates{Latitude: 10.982, Longitude: 76.965}
	gone := geo.Coordinates{Latitude: 11.5, Longitude: 77.1}
	fc := FeatureCollection{Type: TypeFeatureCollection, Features: []Feature{
		feature(0, live, "", orb.Point{0, 0}, orb.Point{1, 1}),
		feature(1, gone, "", orb.Point{0, 0}, orb.Point{1, 1}),
		feature(2, gone, "loc-live", orb.Point{0, 0}, orb.Point{1, 1}),
		feature(3, live, "loc-deleted", orb.Point{0, 0}, orb.Point{1, 1}),
		feature(4, gone, "", orb.Point{0, 0}, orb.Point{1, 1}),
	}}
	anchors := []Anchor{{LocationID: "loc-live", Coordinates: live}}

	ghosts := FindGhosts(fc, anchors)
	assert.Equal(t, []int{1, 3, 4}, ghosts)

	ghostSet := map[int]bool{}
	for _, g := range ghosts {
		ghostSet[g] = true
	}
	liveCount := 0
	for i := range fc.Features {
		if !ghostSet[i] {
			liveCount++
		}
	}
	assert.Equal(t, len(fc.Features), liveCount+len(ghosts))

	cleaned := RemoveGhosts(fc, ghosts)
	require.Len(t, cleaned.Features, 2)
	assert.Empty(t, FindGhosts(cleaned, anchors))
	assert.Len(t, fc.Features, 5, "input must not be modified")
}

func TestRemoveGhosts_ReindexesContiguously(t *testing.T) {
	fc := FeatureCollection{Type: TypeFeatureCollection}
	for i := 0; i < 6; i++ {
		fc.Features = append(fc.Features, feature(i*10, geo.Coordinates{}, "", orb.Point{0, 0}, orb.Point{1, 1}))
	}

	cleaned := RemoveGhosts(fc, []int{0, 2, 5})

	ids := map[int]bool{}
	for _, f := range cleaned.Features {
		ids[f.Properties.ID] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, ids)
}

func TestNewRoute_Densified(t *testing.T) {
	hub := geo.Coordinates{Latitude: 10.9810, Longitude: 76.9640}
	loc := geo.Destination(hub.Latitude, hub.Longitude, 90, 45)

	f := NewRoute(hub, loc, 25, "", "loc-1")

	line := f.Geometry.Coordinates
	require.Len(t, line, 5)
	assert.Equal(t, hub.Point(), line[0])
	assert.Equal(t, loc.Point(), line[len(line)-1])
	for i := 1; i < len(line); i++ {
		assert.InDelta(t, 22.5, geo.Distance(line[i-1], line[i]), 0.5)
	}
	assert.Equal(t, DefaultColor, f.Properties.Color)
	assert.Equal(t, "loc-1", f.Properties.LocationID)
	assert.True(t, f.Coordinates.Equal(loc))
	assert.InDelta(t, 90, f.Length(), 0.5)
}

func TestAppend_AssignsNextID(t *testing.T) {
	fc := Empty()
	fc = fc.Append(feature(7, geo.Coordinates{}, "", orb.Point{0, 0}, orb.Point{1, 1}))
	fc = fc.Append(feature(7, geo.Coordinates{}, "", orb.Point{0, 0}, orb.Point{1, 1}))

	assert.Equal(t, 0, fc.Features[0].Properties.ID)
	assert.Equal(t, 1, fc.Features[1].Properties.ID)
}

func TestWriteKML(t *testing.T) {
	fc := Empty().Append(feature(0, geo.Coordinates{}, "loc-1", orb.Point{76.964, 10.981}, orb.Point{76.965, 10.982}))

	var buf bytes.Buffer
	err := WriteKML(&buf, "cables", fc, map[string]string{"loc-1": "Gandhipuram"}, []Placemark{
		{Name: "JB-1", Description: "splice", At: geo.Coordinates{Latitude: 10.9815, Longitude: 76.9645}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<name>Gandhipuram</name>")
	assert.Contains(t, out, "<name>JB-1</name>")
	assert.Contains(t, out, "76.964,10.981")
	assert.Equal(t, 2, strings.Count(out, "<Placemark>"))
	assert.Contains(t, out, `<Style id="`+styleID("#ff0000")+`">`)
	assert.Contains(t, out, "<styleUrl>#"+styleID("#ff0000")+"</styleUrl>")
}

func TestFeatureJSON_KeepsAnchorOutsideProperties(t *testing.T) {
	f := feature(0, geo.Coordinates{Latitude: 1, Longitude: 2}, "", orb.Point{0, 0}, orb.Point{1, 1})
	raw, err := json.Marshal(f)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	anchor, ok := generic["coordinates"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, anchor["latitude"])
	assert.Equal(t, 2.0, anchor["longitude"])
}

func TestParse_KeepsUnknownMembers(t *testing.T) {
	raw := `{"type":"FeatureCollection","name":"net","crs":{"type":"name"},"features":[{"type":"Feature","id":"f1",` +
		`"geometry":{"type":"LineString","coordinates":[[76.964,10.981],[76.965,10.982]],"bbox":[1,2,3,4]},` +
		`"properties":{"id":0,"color":"#fff","name":"Cable A","serviceType":"fiber"},` +
		`"coordinates":{"latitude":10.982,"longitude":76.965}}]}`

	fc, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.True(t, fc.Features[0].IsRoute())
	out, err := fc.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))

	edited := fc.Clone()
	edited.Features[0].Geometry.Coordinates[1] = orb.Point{76.966, 10.983}
	out, err = edited.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, strings.Replace(raw, "[76.965,10.982]]", "[76.966,10.983]]", 1), string(out))
}

func TestParse_CarriesNonRouteFeatures(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[` +
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[76.96,10.98]},"properties":{"id":0}},` +
		`{"type":"Feature","geometry":{"type":"LineString","coordinates":"bad"},"properties":{"id":1}},` +
		`{"type":"Feature","geometry":null,"properties":{"id":2}},` +
		`{"type":"Feature","geometry":{"type":"LineString","coordinates":[[76.964,10.981],[76.965,10.982]]},` +
		`"properties":{"id":3,"locationId":"loc-1"}}]}`

	fc, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, fc.Features, 4)
	for i := 0; i < 3; i++ {
		assert.False(t, fc.Features[i].IsRoute(), "feature %d", i)
	}
	assert.True(t, fc.Features[3].IsRoute())

	assert.NoError(t, fc.Validate())
	assert.Equal(t, 3, fc.FindForLocation("loc-1", geo.Coordinates{}))
	assert.Empty(t, FindGhosts(fc, []Anchor{{LocationID: "loc-1"}}))

	out, err := fc.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))

	var buf bytes.Buffer
	require.NoError(t, WriteKML(&buf, "cables", fc, nil, nil))
	assert.Equal(t, 1, strings.Count(buf.String(), "<Placemark>"))
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"features":[{"properties":{"id":"zero"}}]}`))
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Parse([]byte(`{"features":{}}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_EmptyObjects(t *testing.T) {
	for _, raw := range []string{"{}", "{ }", " null ", ""} {
		fc, err := Parse([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, TypeFeatureCollection, fc.Type, raw)
		assert.Empty(t, fc.Features, raw)
	}

	fc, err := Parse([]byte(`{"a":1}`))
	require.NoError(t, err)
	out, err := fc.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"type":"FeatureCollection","features":[]}`, string(out))
}

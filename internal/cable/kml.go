package cable

import (
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"cablenet/internal/geo"

	"github.com/twpayne/go-kml"
)

// Placemark is a named point written alongside the routes, e.g. a junction box.
type Placemark struct {
	Name        string
	Description string
	At          geo.Coordinates
}

// WriteKML writes the routes as styled LineString placemarks followed by the
// given point placemarks. labels maps a location id to the name used for its
// route; unlabeled routes are named by their positional id.
func WriteKML(w io.Writer, name string, fc FeatureCollection, labels map[string]string, points []Placemark) error {
	children := []kml.Element{kml.Name(name)}

	styles := map[string]bool{}
	for _, f := range fc.Features {
		if !f.IsRoute() {
			continue
		}
		id := styleID(f.Properties.Color)
		if styles[id] {
			continue
		}
		styles[id] = true
		children = append(children, kml.SharedStyle(id,
			kml.LineStyle(
				kml.Color(parseHexColor(f.Properties.Color)),
				kml.Width(3),
			),
		))
	}

	for _, f := range fc.Features {
		if !f.IsRoute() {
			continue
		}
		label := labels[f.Properties.LocationID]
		if label == "" {
			label = fmt.Sprintf("Route %d", f.Properties.ID)
		}
		coords := make([]kml.Coordinate, 0, len(f.Geometry.Coordinates))
		for _, p := range f.Geometry.Coordinates {
			coords = append(coords, kml.Coordinate{Lon: p.Lon(), Lat: p.Lat()})
		}
		children = append(children, kml.Placemark(
			kml.Name(label),
			kml.Description(fmt.Sprintf("%.0f m", f.Length())),
			kml.StyleURL("#"+styleID(f.Properties.Color)),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coords...),
			),
		))
	}

	for _, p := range points {
		children = append(children, kml.Placemark(
			kml.Name(p.Name),
			kml.Description(p.Description),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.At.Longitude, Lat: p.At.Latitude})),
		))
	}

	return kml.KML(kml.Document(children...)).WriteIndent(w, "", "  ")
}

func styleID(hex string) string {
	h := strings.TrimPrefix(strings.ToLower(hex), "#")
	if h == "" {
		h = strings.TrimPrefix(strings.ToLower(DefaultColor), "#")
	}
	return "route-" + h
}

// parseHexColor accepts #RRGGBB; anything else falls back to DefaultColor.
func parseHexColor(hex string) color.Color {
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		h = strings.TrimPrefix(DefaultColor, "#")
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		v, _ = strconv.ParseUint(strings.TrimPrefix(DefaultColor, "#"), 16, 32)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

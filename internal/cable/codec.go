package cable

import (
	"encoding/json"
	"fmt"

	"cablenet/internal/geo"

	"github.com/paulmach/orb"
)

// members holds the JSON object members of a document node that the server
// does not model. Values are never modified in place.
type members map[string]json.RawMessage

func decodeMembers(raw []byte) (members, error) {
	var m members
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// take decodes and removes key. A missing key leaves dst alone.
func (m members) take(key string, dst any) (bool, error) {
	v, ok := m[key]
	if !ok {
		return false, nil
	}
	delete(m, key)
	if err := json.Unmarshal(v, dst); err != nil {
		return true, fmt.Errorf("%s: %w", key, err)
	}
	return true, nil
}

// rest returns what is left after the known members were taken.
func (m members) rest() members {
	if len(m) == 0 {
		return nil
	}
	return m
}

// with returns a copy of m holding the known members as well.
func (m members) with(known map[string]any) (members, error) {
	out := make(members, len(m)+len(known))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range known {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

func (fc *FeatureCollection) UnmarshalJSON(raw []byte) error {
	m, err := decodeMembers(raw)
	if err != nil {
		return err
	}
	var out FeatureCollection
	if _, err := m.take("type", &out.Type); err != nil {
		return err
	}
	if _, err := m.take("features", &out.Features); err != nil {
		return err
	}
	out.extra = m.rest()
	*fc = out
	return nil
}

func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	typ := fc.Type
	if typ == "" {
		typ = TypeFeatureCollection
	}
	features := fc.Features
	if features == nil {
		features = []Feature{}
	}
	m, err := fc.extra.with(map[string]any{"type": typ, "features": features})
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (f *Feature) UnmarshalJSON(raw []byte) error {
	m, err := decodeMembers(raw)
	if err != nil {
		return err
	}
	var out Feature
	if _, err := m.take("type", &out.Type); err != nil {
		return err
	}
	if ok, err := m.take("geometry", &out.Geometry); err != nil {
		return err
	} else if !ok {
		out.Geometry.raw = json.RawMessage("null")
	}
	if _, err := m.take("properties", &out.Properties); err != nil {
		return err
	}
	if out.hasAnchor, err = m.take("coordinates", &out.Coordinates); err != nil {
		return err
	}
	out.extra = m.rest()
	*f = out
	return nil
}

func (f Feature) MarshalJSON() ([]byte, error) {
	typ := f.Type
	if typ == "" {
		typ = TypeFeature
	}
	known := map[string]any{
		"type":       typ,
		"geometry":   f.Geometry,
		"properties": f.Properties,
	}
	if f.hasAnchor || f.Coordinates != (geo.Coordinates{}) {
		known["coordinates"] = f.Coordinates
	}
	m, err := f.extra.with(known)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// UnmarshalJSON keeps anything but a well-formed LineString as raw JSON.
func (g *Geometry) UnmarshalJSON(raw []byte) error {
	opaque := Geometry{raw: append(json.RawMessage(nil), raw...)}

	m, err := decodeMembers(raw)
	if err != nil || m == nil {
		*g = opaque
		return nil
	}
	var out Geometry
	if _, err := m.take("type", &out.Type); err != nil || out.Type != TypeLineString {
		*g = opaque
		return nil
	}
	if _, err := m.take("coordinates", &out.Coordinates); err != nil {
		*g = opaque
		return nil
	}
	out.extra = m.rest()
	*g = out
	return nil
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.raw != nil {
		return g.raw, nil
	}
	coords := g.Coordinates
	if coords == nil {
		coords = orb.LineString{}
	}
	m, err := g.extra.with(map[string]any{"type": g.Type, "coordinates": coords})
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (p *Properties) UnmarshalJSON(raw []byte) error {
	m, err := decodeMembers(raw)
	if err != nil {
		return err
	}
	var out Properties
	if _, err := m.take("id", &out.ID); err != nil {
		return err
	}
	if _, err := m.take("color", &out.Color); err != nil {
		return err
	}
	if _, err := m.take("locationId", &out.LocationID); err != nil {
		return err
	}
	out.extra = m.rest()
	*p = out
	return nil
}

func (p Properties) MarshalJSON() ([]byte, error) {
	known := map[string]any{"id": p.ID}
	if p.Color != "" {
		known["color"] = p.Color
	}
	if p.LocationID != "" {
		known["locationId"] = p.LocationID
	}
	m, err := p.extra.with(known)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

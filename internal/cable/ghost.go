package cable

// FindGhosts returns, ascending, the indices of routes that no live anchor
// claims. A route with a LocationID is live when an anchor has that id; a
// legacy route without one is live when some anchor's coordinates equal its
// anchor exactly. Features that are not routes are never ghosts.
func FindGhosts(fc FeatureCollection, anchors []Anchor) []int {
	ids := make(map[string]struct{}, len(anchors))
	for _, a := range anchors {
		if a.LocationID != "" {
			ids[a.LocationID] = struct{}{}
		}
	}

	var ghosts []int
	for i, f := range fc.Features {
		if !f.IsRoute() {
			continue
		}
		if f.Properties.LocationID != "" {
			if _, ok := ids[f.Properties.LocationID]; !ok {
				ghosts = append(ghosts, i)
			}
			continue
		}
		matched := false
		for _, a := range anchors {
			if a.Coordinates.Equal(f.Coordinates) {
				matched = true
				break
			}
		}
		if !matched {
			ghosts = append(ghosts, i)
		}
	}
	return ghosts
}

// RemoveGhosts returns a copy of fc without the given feature indices and with
// properties.id renumbered 0..N-1 in the surviving order. Ids are positional,
// so anything cached against an old id must be resolved again.
func RemoveGhosts(fc FeatureCollection, ghosts []int) FeatureCollection {
	drop := make(map[int]struct{}, len(ghosts))
	for _, g := range ghosts {
		drop[g] = struct{}{}
	}
	out := FeatureCollection{Type: fc.Type, Features: make([]Feature, 0, len(fc.Features)), extra: fc.extra}
	if out.Type == "" {
		out.Type = TypeFeatureCollection
	}
	for i, f := range fc.Features {
		if _, ok := drop[i]; ok {
			continue
		}
		f = f.Clone()
		f.Properties.ID = len(out.Features)
		out.Features = append(out.Features, f)
	}
	return out
}

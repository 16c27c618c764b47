package cable

import (
	"cablenet/internal/geo"

	"github.com/paulmach/orb"
)

// ControlIndices returns the draggable vertex indices of an n-vertex route at
// the given interval: 0, n-1 and every multiple of interval, ascending.
func ControlIndices(n, interval int) []int {
	if n <= 0 {
		return nil
	}
	if interval < 1 {
		interval = 1
	}
	out := make([]int, 0, n/interval+2)
	for i := 0; i < n; i++ {
		if i == 0 || i == n-1 || i%interval == 0 {
			out = append(out, i)
		}
	}
	return out
}

// MoveControl sets line[controls[k]] to p and re-derives every vertex strictly
// between that control point and its neighbouring control points by straight
// lng/lat interpolation against the neighbours' current positions. controls
// must be ascending and k a valid position in it. line is modified in place.
func MoveControl(line orb.LineString, controls []int, k int, p orb.Point) {
	v := controls[k]
	line[v] = p
	if k > 0 {
		fillBetween(line, controls[k-1], v)
	}
	if k < len(controls)-1 {
		fillBetween(line, v, controls[k+1])
	}
}

func fillBetween(line orb.LineString, from, to int) {
	span := to - from
	if span < 2 {
		return
	}
	a, b := line[from], line[to]
	for j := from + 1; j < to; j++ {
		line[j] = geo.Lerp(a, b, float64(j-from)/float64(span))
	}
}

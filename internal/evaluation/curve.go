package evaluation

import (
	"fmt"
	"strings"
)

// Levels is the number of standard recall levels: 0.0, 0.1, ..., 1.0.
const Levels = 11

// recallEpsilon absorbs rounding in i/R against the decimal levels.
const recallEpsilon = 1e-9

// Curve holds interpolated precision indexed by recall level i/10.
type Curve [Levels]float64

// RecallLevel returns the recall value of level i.
func RecallLevel(i int) float64 {
	return float64(i) / float64(Levels-1)
}

// InterpolatedCurve computes the 11-point curve: the value at level r is the
// highest precision at any rank whose recall is at least r, and 0 when no
// rank reaches r. It scans ranks from last to first carrying the running
// maximum, so the raw precision series need not be monotonic. When R = 0 the
// curve is all zeros.
func (r *Result) InterpolatedCurve() Curve {
	var curve Curve
	n := r.Hits()
	if n == 0 || r.RecallUndefined() {
		return curve
	}
	points := r.Series()

	// maxFrom[i] is the highest precision at rank i+1 or deeper.
	maxFrom := make([]float64, n)
	running := 0.0
	for i := n - 1; i >= 0; i-- {
		if points[i].Precision > running {
			running = points[i].Precision
		}
		maxFrom[i] = running
	}

	// Recall is non-decreasing with rank, so the first rank reaching a level
	// covers every deeper rank too.
	rank := 0
	for level := 0; level < Levels; level++ {
		target := RecallLevel(level) - recallEpsilon
		for rank < n && points[rank].Recall < target {
			rank++
		}
		if rank == n {
			break
		}
		curve[level] = maxFrom[rank]
	}
	return curve
}

// AverageCurves averages curves point-wise. No curves yields the zero curve;
// a single curve is returned unchanged.
func AverageCurves(curves []Curve) Curve {
	var avg Curve
	if len(curves) == 0 {
		return avg
	}
	if len(curves) == 1 {
		return curves[0]
	}
	for _, c := range curves {
		for i := range c {
			avg[i] += c[i]
		}
	}
	for i := range avg {
		avg[i] /= float64(len(curves))
	}
	return avg
}

// Points pairs each level with its precision.
func (c Curve) Points() []Point {
	points := make([]Point, Levels)
	for i, p := range c {
		points[i] = Point{Recall: RecallLevel(i), Precision: p}
	}
	return points
}

func (c Curve) String() string {
	parts := make([]string, Levels)
	for i, p := range c {
		parts[i] = fmt.Sprintf("%.1f:%.4f", RecallLevel(i), p)
	}
	return strings.Join(parts, " ")
}

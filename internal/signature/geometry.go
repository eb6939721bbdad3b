package signature

import "math"

// interval is a closed range of integers. It is empty when lo > hi.
type interval struct {
	lo, hi int
}

func (iv interval) empty() bool {
	return iv.lo > iv.hi
}

// length returns the number of integers in the interval.
func (iv interval) length() int {
	return max(iv.hi-iv.lo+1, 0)
}

func (iv interval) intersect(other interval) interval {
	return interval{lo: max(iv.lo, other.lo), hi: min(iv.hi, other.hi)}
}

// shrink moves both ends inward by r. An interval that would cross itself
// collapses to its midpoint.
func (iv interval) shrink(r int) interval {
	if iv.lo+r > iv.hi-r {
		mid := (iv.lo + iv.hi) / 2
		return interval{lo: mid, hi: mid}
	}
	return interval{lo: iv.lo + r, hi: iv.hi - r}
}

// rect is a box on the integer lattice.
type rect struct {
	x, y interval
}

// square returns the box of half-width r centered on (cx, cy).
func square(cx, cy, r int) rect {
	return rect{
		x: interval{lo: cx - r, hi: cx + r},
		y: interval{lo: cy - r, hi: cy + r},
	}
}

func (r rect) intersect(other rect) rect {
	return rect{x: r.x.intersect(other.x), y: r.y.intersect(other.y)}
}

func (r rect) empty() bool {
	return r.x.empty() || r.y.empty()
}

func (r rect) area() int {
	return r.x.length() * r.y.length()
}

// linspace returns n evenly spaced integers from start to end inclusive,
// rounded to the nearest integer. A single point is the midpoint.
func linspace(start, end, n int) []int {
	points := make([]int, n)
	switch n {
	case 0:
	case 1:
		points[0] = int(0.5*float64(start) + 0.5*float64(end))
	default:
		step := float64(end-start) / float64(n-1)
		for i := range points {
			points[i] = int(math.Round(float64(start) + float64(i)*step))
		}
	}
	return points
}

package signature

import (
	"image"
	"math"
)

// plane is a zero-based view over the pixels of a grayscale image.
type plane struct {
	pix    []uint8
	stride int
	width  int
	height int
}

func newPlane(img *image.Gray) plane {
	b := img.Bounds()
	if b.Empty() {
		panic("signature: empty image")
	}
	return plane{
		pix:    img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
		stride: img.Stride,
		width:  b.Dx(),
		height: b.Dy(),
	}
}

func (p plane) at(x, y int) uint8 {
	return p.pix[y*p.stride+x]
}

func (p plane) bounds() rect {
	return rect{
		x: interval{lo: 0, hi: p.width - 1},
		y: interval{lo: 0, hi: p.height - 1},
	}
}

// lattice is the set of grid points sampled from an image along with the
// half-width of the square averaged around each point.
type lattice struct {
	xs     [GridSize]int
	ys     [GridSize]int
	radius int
}

// sampleGrid places a GridSize x GridSize lattice over the content area of the
// image. Low-variation borders are cropped away first.
func sampleGrid(p plane) lattice {
	colDeltas, rowDeltas := axisDeltas(p)
	xBounds := cropAxis(colDeltas)
	yBounds := cropAxis(rowDeltas)

	radius := sampleRadius(xBounds.hi-xBounds.lo, yBounds.hi-yBounds.lo)
	xBounds = xBounds.shrink(radius)
	yBounds = yBounds.shrink(radius)

	var l lattice
	copy(l.xs[:], linspace(xBounds.lo, xBounds.hi, GridSize))
	copy(l.ys[:], linspace(yBounds.lo, yBounds.hi, GridSize))
	l.radius = radius
	return l
}

// axisDeltas returns the summed absolute difference between each pair of
// adjacent columns and each pair of adjacent rows.
func axisDeltas(p plane) (cols, rows []uint64) {
	cols = make([]uint64, p.width-1)
	rows = make([]uint64, p.height-1)
	for y := range p.height {
		for x := range p.width {
			v := p.at(x, y)
			if x+1 < p.width {
				cols[x] += absDiff(v, p.at(x+1, y))
			}
			if y+1 < p.height {
				rows[y] += absDiff(v, p.at(x, y+1))
			}
		}
	}
	return cols, rows
}

// cropAxis returns the positions where the variation accumulated from each
// end first reaches CropPercent of the axis total. An axis without any
// variation is not cropped.
func cropAxis(deltas []uint64) interval {
	n := len(deltas) + 1

	var total uint64
	for _, d := range deltas {
		total += d
	}
	if total == 0 {
		return interval{lo: 0, hi: n - 1}
	}
	limit := total * CropPercent / 100

	lo := 0
	var sum uint64
	for sum < limit && lo < len(deltas) {
		sum += deltas[lo]
		lo++
	}

	hi := n - 1
	sum = 0
	for sum < limit && hi > 0 {
		hi--
		sum += deltas[hi]
	}

	// A single dominant edge makes both ends pass each other.
	if lo > hi {
		lo, hi = hi, lo
	}
	return interval{lo: lo, hi: hi}
}

// sampleRadius scales the sampled square with the smaller cropped extent.
func sampleRadius(width, height int) int {
	size := 0.5 + float64(min(width, height))/20
	return int(math.Round(size / 2))
}

func absDiff(a, b uint8) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}

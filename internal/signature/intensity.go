package signature

// intensityMatrix holds average intensities indexed by [row][column], where
// rows follow the lattice y coordinates and columns the x coordinates.
type intensityMatrix [GridSize][GridSize]uint8

// sampleIntensities averages the pixels in the square around every lattice
// point. Squares are clipped to the image bounds.
func sampleIntensities(p plane, l lattice) intensityMatrix {
	var m intensityMatrix
	bounds := p.bounds()
	for r, y := range l.ys {
		for c, x := range l.xs {
			area := square(x, y, l.radius).intersect(bounds)
			if area.empty() {
				panic("signature: sample square outside image bounds")
			}

			var sum uint64
			for py := area.y.lo; py <= area.y.hi; py++ {
				for px := area.x.lo; px <= area.x.hi; px++ {
					sum += uint64(p.at(px, py))
				}
			}
			m[r][c] = uint8(sum / uint64(area.area()))
		}
	}
	return m
}

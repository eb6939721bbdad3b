package signature

// differences compares every cell with each of its neighbors. Cells are
// visited row by row and neighbors in row-major order within the 3x3 block.
// Neighbors outside the grid are skipped, not treated as zero, which fixes
// the output length at Len.
func differences(m *intensityMatrix) [Len]int16 {
	var out [Len]int16
	n := 0
	for r := range GridSize {
		for c := range GridSize {
			center := int16(m[r][c])
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					nr, nc := r+dr, c+dc
					if nr < 0 || nr >= GridSize || nc < 0 || nc >= GridSize {
						continue
					}
					if n == Len {
						panic("signature: too many neighbor differences")
					}
					out[n] = int16(m[nr][nc]) - center
					n++
				}
			}
		}
	}
	if n != Len {
		panic("signature: too few neighbor differences")
	}
	return out
}

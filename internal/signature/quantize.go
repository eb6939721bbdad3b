package signature

import "slices"

// cutoff is an upper bound of a quantization level. Levels with no samples
// have no cutoff and never match.
type cutoff struct {
	value   int16
	present bool
}

// levelCutoffs sorts the kept differences, splits them into LuminanceLevels
// chunks of equal size (the last one may be shorter) and returns the largest
// value of each chunk.
func levelCutoffs(diffs *[Len]int16, keep func(int16) bool) [LuminanceLevels]cutoff {
	var out [LuminanceLevels]cutoff

	values := make([]int16, 0, Len)
	for _, d := range diffs {
		if keep(d) {
			values = append(values, d)
		}
	}
	if len(values) == 0 {
		return out
	}
	slices.Sort(values)

	size := (len(values) + LuminanceLevels - 1) / LuminanceLevels
	for i := range LuminanceLevels {
		start := i * size
		if start >= len(values) {
			break
		}
		end := min(start+size, len(values))
		out[i] = cutoff{value: values[end-1], present: true}
	}
	return out
}

// quantize maps every difference onto one of NumSymbols levels. Level
// LuminanceLevels means no change, lower levels are darker and higher
// levels lighter.
func quantize(diffs [Len]int16) Signature {
	dark := levelCutoffs(&diffs, func(d int16) bool { return d < -IdenticalTolerance })
	light := levelCutoffs(&diffs, func(d int16) bool { return d > IdenticalTolerance })

	var cutoffs [NumSymbols]cutoff
	copy(cutoffs[:LuminanceLevels], dark[:])
	cutoffs[LuminanceLevels] = cutoff{value: IdenticalTolerance, present: true}
	copy(cutoffs[LuminanceLevels+1:], light[:])

	var sig Signature
	for i, d := range diffs {
		level := -1
		for l, c := range cutoffs {
			if c.present && d <= c.value {
				level = l
				break
			}
		}
		if level < 0 {
			panic("signature: difference above every cutoff")
		}
		sig[i] = uint8(level)
	}
	return sig
}

// Package signature computes perceptual image signatures used for
// reverse image search.
//
// A signature is derived from a 9x9 grid of average intensities sampled over
// the cropped image content. Each grid cell is compared with its neighbors
// and the differences are quantized into five luminance levels. Signatures
// are stored compressed as base-5 integers and indexed by a fixed set of
// words that can be matched with array-overlap queries.
package signature

// Algorithm parameters. Changing any of them changes the stored format,
// so Version must be bumped as well.
const (
	// GridSize is the number of sample points along each axis.
	GridSize = 9

	// CropPercent is the share of total intensity variation that is
	// trimmed from each end of an axis before placing the grid.
	CropPercent = 1

	// IdenticalTolerance is the largest difference treated as no change.
	IdenticalTolerance = 1

	// LuminanceLevels is the number of darker and lighter levels.
	LuminanceLevels = 2

	// NumSymbols is the number of distinct signature values.
	NumSymbols = 2*LuminanceLevels + 1

	// Len is the number of values in a signature. Interior cells have
	// eight neighbors, edge cells five and corner cells three.
	Len = 8*(GridSize-2)*(GridSize-2) + 20*(GridSize-2) + 12

	// Digits is the number of signature values packed into one int64.
	// It is floor(log5(MaxUint64)) - 1.
	Digits = 26

	// CompressedLen is the number of integers in a compressed signature.
	CompressedLen = (Len + Digits - 1) / Digits

	// NumWords is the number of index words generated per signature.
	NumWords = 100

	// NumLetters is the number of signature values covered by a word.
	NumLetters = 12

	// Version identifies the signature and word format.
	Version = 1
)

const (
	// reducedSymbols is the alphabet size of word letters.
	reducedSymbols = 3

	// wordIndexDigits is the number of base-3 digits reserved for the
	// word position, ilog3(NumWords) + 1.
	wordIndexDigits = 5

	// wordIndexBase is reducedSymbols^wordIndexDigits.
	wordIndexBase = 243
)

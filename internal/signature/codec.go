package signature

import (
	"errors"
	"fmt"
)

// Signature is the quantized form of an image. Every value is in
// [0, NumSymbols) with LuminanceLevels meaning no change.
type Signature [Len]uint8

// Compressed is a signature packed into base-5 integers, Digits values per
// integer with the first value in the least significant digit.
type Compressed [CompressedLen]int64

// ErrInvalidCompressed is returned when a stored signature cannot have been
// produced by Encode.
var ErrInvalidCompressed = errors.New("invalid compressed signature")

// chunkBounds returns the signature range packed into integer k.
func chunkBounds(k int) (start, end int) {
	start = k * Digits
	return start, min(start+Digits, Len)
}

// Encode packs a signature. It panics if a value is out of range.
func Encode(sig Signature) Compressed {
	var c Compressed
	for k := range c {
		start, end := chunkBounds(k)
		var v int64
		for i := end - 1; i >= start; i-- {
			if sig[i] >= NumSymbols {
				panic(fmt.Sprintf("signature: value %d at %d out of range", sig[i], i))
			}
			v = v*NumSymbols + int64(sig[i])
		}
		c[k] = v
	}
	return c
}

// Decode unpacks a compressed signature.
func Decode(c Compressed) Signature {
	var sig Signature
	for k, v := range c {
		start, end := chunkBounds(k)
		for i := start; i < end; i++ {
			sig[i] = uint8(v % NumSymbols)
			v /= NumSymbols
		}
	}
	return sig
}

// Validate reports whether every integer holds exactly the digits of its
// chunk.
func (c Compressed) Validate() error {
	for k, v := range c {
		start, end := chunkBounds(k)
		limit := int64(1)
		for range end - start {
			limit *= NumSymbols
		}
		if v < 0 || v >= limit {
			return fmt.Errorf("%w: value %d at %d", ErrInvalidCompressed, v, k)
		}
	}
	return nil
}

// FromSlice converts stored integers into a compressed signature.
func FromSlice(values []int64) (Compressed, error) {
	var c Compressed
	if len(values) != CompressedLen {
		return c, fmt.Errorf("%w: got %d values, want %d", ErrInvalidCompressed, len(values), CompressedLen)
	}
	copy(c[:], values)
	if err := c.Validate(); err != nil {
		return Compressed{}, err
	}
	return c, nil
}

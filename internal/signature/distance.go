package signature

import "math"

// Cache is a decoded signature with its norm, for comparing one signature
// against many candidates.
type Cache struct {
	sig  Signature
	norm float64
}

// NewCache decodes c and precomputes its norm.
func NewCache(c Compressed) *Cache {
	sig := Decode(c)
	return &Cache{sig: sig, norm: norm(&sig)}
}

// Signature returns the decoded signature.
func (c *Cache) Signature() Signature {
	return c.sig
}

// Norm returns the L2 norm of the centered signature.
func (c *Cache) Norm() float64 {
	return c.norm
}

// Distance returns the normalized L2 distance to other. Lower is more
// similar, identical signatures return 0.
func (c *Cache) Distance(other Compressed) float64 {
	sig := Decode(other)

	var sq int64
	for i := range c.sig {
		d := int64(c.sig[i]) - int64(sig[i])
		sq += d * d
	}

	denominator := c.norm + norm(&sig)
	if denominator == 0 {
		return 0
	}
	return math.Sqrt(float64(sq)) / denominator
}

// Distance compares two compressed signatures directly.
func Distance(a, b Compressed) float64 {
	return NewCache(a).Distance(b)
}

// Centered returns the signature shifted so that no change is zero. Its
// Euclidean norm equals Cache.Norm.
func (s Signature) Centered() []float32 {
	out := make([]float32, Len)
	for i, v := range s {
		out[i] = float32(int(v) - LuminanceLevels)
	}
	return out
}

func norm(sig *Signature) float64 {
	var sq int64
	for _, v := range sig {
		d := int64(v) - LuminanceLevels
		sq += d * d
	}
	return math.Sqrt(float64(sq))
}

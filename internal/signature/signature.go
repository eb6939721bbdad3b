package signature

import "image"

// ComputeSignature returns the quantized signature of a grayscale image.
// It panics on an empty image.
func ComputeSignature(img *image.Gray) Signature {
	p := newPlane(img)
	grid := sampleGrid(p)
	m := sampleIntensities(p, grid)
	return quantize(differences(&m))
}

// Compute returns the compressed signature of an image and its index words.
func Compute(img *image.Gray) (Compressed, Words) {
	c := Encode(ComputeSignature(img))
	return c, GenerateWords(c)
}

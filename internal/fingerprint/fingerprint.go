package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/kozaktomas/sigboard/internal/signature"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyImage is returned for images without any pixels.
	ErrEmptyImage = errors.New("image has no pixels")
	// ErrImageTooLarge is returned for images with more than MaxPixels pixels.
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
)

// DefaultMaxPixels keeps decoded RGBA images within 1 GiB.
const DefaultMaxPixels int64 = 1 << 28

// MaxPixels is the largest width*height DecodeImage accepts. Non-positive
// values disable the check. Set it before decoding starts.
var MaxPixels = DefaultMaxPixels

// DecodeImage decodes image data and returns the image with its format name.
// Dimensions are read from the header first so oversized images are rejected
// before any pixel buffer is allocated.
func DecodeImage(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); MaxPixels > 0 && pixels > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, "", ErrEmptyImage
	}
	return img, format, nil
}

// DecodeGray decodes image data into an 8-bit grayscale image.
func DecodeGray(data []byte) (*image.Gray, error) {
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

// ToGray converts an image to grayscale using the ITU-R BT.601 luma formula.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := range bounds.Dy() {
		row := gray.Pix[y*gray.Stride:]
		for x := range bounds.Dx() {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			luma := 299*(r>>8) + 587*(g>>8) + 114*(b>>8)
			row[x] = uint8((luma + 500) / 1000)
		}
	}
	return gray
}

// ComputeSignature decodes image data and computes its signature and words.
func ComputeSignature(data []byte) (signature.Compressed, signature.Words, error) {
	gray, err := DecodeGray(data)
	if err != nil {
		return signature.Compressed{}, signature.Words{}, err
	}
	c, words := signature.Compute(gray)
	return c, words, nil
}

// Thumbnail resizes an image to fit within maxSize while keeping aspect ratio.
// Returns JPEG-encoded bytes. Images that already fit are re-encoded as is.
func Thumbnail(data []byte, maxSize int) ([]byte, error) {
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	newWidth, newHeight := width, height
	if width > maxSize || height > maxSize {
		if width > height {
			newWidth = maxSize
			newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
		} else {
			newHeight = maxSize
			newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
		}
	}

	// Flatten transparency onto white before encoding.
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.Draw(resized, resized.Bounds(), image.White, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}

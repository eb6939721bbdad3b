package signature

import "image"

// grayImage builds a w x h image from a pixel function.
func grayImage(w, h int, f func(x, y int) int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Pix[y*img.Stride+x] = uint8(max(0, min(255, f(x, y))))
		}
	}
	return img
}

func uniformImage(w, h int, v uint8) *image.Gray {
	return grayImage(w, h, func(int, int) int { return int(v) })
}

// sceneImage is a textured gradient with one dark blob, one bright blob and
// a diagonal bar.
func sceneImage() *image.Gray {
	const w, h = 160, 120
	return grayImage(w, h, func(x, y int) int {
		v := 70 + x*60/(w-1) + y*60/(h-1)
		v -= max(0, 1600-(x-50)*(x-50)-(y-45)*(y-45)) / 25
		v += max(0, 2500-(x-112)*(x-112)-(y-78)*(y-78)) / 25
		if abs(x-y-60) <= 4 && x < 140 {
			v = 160
		}
		v += (x*7+y*13)%11 - 5
		return v
	})
}

// otherImage shares nothing with sceneImage.
func otherImage() *image.Gray {
	const w, h = 160, 120
	return grayImage(w, h, func(x, y int) int {
		v := 200 - x*150/(w-1)
		if (x-120)*(x-120)+(y-30)*(y-30) <= 22*22 {
			v = 15
		}
		if (x-40)*(x-40)+(y-90)*(y-90) <= 26*26 {
			v = 245
		}
		if (x/16+y/16)%2 == 0 && x >= 60 && x < 100 {
			v /= 3
		}
		return v
	})
}

func checkerImage() *image.Gray {
	return grayImage(160, 120, func(x, y int) int {
		if (x/20+y/15)%2 == 0 {
			return 230
		}
		return 30
	})
}

// withBorder pads img with bx columns and by rows of value v on each side.
func withBorder(img *image.Gray, bx, by int, v uint8) *image.Gray {
	b := img.Bounds()
	return grayImage(b.Dx()+2*bx, b.Dy()+2*by, func(x, y int) int {
		ix, iy := x-bx, y-by
		if ix < 0 || iy < 0 || ix >= b.Dx() || iy >= b.Dy() {
			return int(v)
		}
		return int(img.GrayAt(b.Min.X+ix, b.Min.Y+iy).Y)
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

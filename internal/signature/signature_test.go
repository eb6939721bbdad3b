package signature

import (
	"image"
	"sync"
	"testing"
)

func TestDerivedConstants(t *testing.T) {
	if Len != 544 {
		t.Errorf("Len = %d; want 544", Len)
	}

	// floor(log5(MaxUint64)) - 1
	digits := 0
	for v := ^uint64(0); v >= NumSymbols; v /= NumSymbols {
		digits++
	}
	if Digits != digits-1 {
		t.Errorf("Digits = %d; want %d", Digits, digits-1)
	}
	if CompressedLen != 21 {
		t.Errorf("CompressedLen = %d; want 21", CompressedLen)
	}

	// ilog3(NumWords) + 1
	wordDigits := 0
	for v := NumWords; v >= reducedSymbols; v /= reducedSymbols {
		wordDigits++
	}
	if wordIndexDigits != wordDigits+1 {
		t.Errorf("wordIndexDigits = %d; want %d", wordIndexDigits, wordDigits+1)
	}
	base := 1
	for range wordIndexDigits {
		base *= reducedSymbols
	}
	if wordIndexBase != base {
		t.Errorf("wordIndexBase = %d; want %d", wordIndexBase, base)
	}
}

func TestSampleGrid(t *testing.T) {
	t.Run("scene", func(t *testing.T) {
		grid := sampleGrid(newPlane(sceneImage()))
		wantXs := [GridSize]int{5, 24, 42, 61, 80, 98, 117, 135, 154}
		wantYs := [GridSize]int{5, 19, 32, 46, 60, 73, 87, 100, 114}
		if grid.xs != wantXs {
			t.Errorf("xs = %v; want %v", grid.xs, wantXs)
		}
		if grid.ys != wantYs {
			t.Errorf("ys = %v; want %v", grid.ys, wantYs)
		}
		if grid.radius != 3 {
			t.Errorf("radius = %d; want 3", grid.radius)
		}
	})

	t.Run("uniform image is not cropped", func(t *testing.T) {
		grid := sampleGrid(newPlane(uniformImage(40, 30, 128)))
		wantXs := [GridSize]int{1, 6, 10, 15, 20, 24, 29, 33, 38}
		wantYs := [GridSize]int{1, 4, 8, 11, 15, 18, 21, 25, 28}
		if grid.xs != wantXs || grid.ys != wantYs || grid.radius != 1 {
			t.Errorf("grid = %+v; want xs %v ys %v radius 1", grid, wantXs, wantYs)
		}
	})

	t.Run("single pixel", func(t *testing.T) {
		grid := sampleGrid(newPlane(uniformImage(1, 1, 77)))
		if grid.xs != [GridSize]int{} || grid.ys != [GridSize]int{} || grid.radius != 0 {
			t.Errorf("grid = %+v; want all points at origin with radius 0", grid)
		}
	})

	t.Run("border is cropped", func(t *testing.T) {
		bordered := withBorder(sceneImage(), 20, 20, 255)
		p := newPlane(bordered)
		grid := sampleGrid(p)
		corners := [][2]int{
			{grid.xs[0], grid.ys[0]},
			{grid.xs[GridSize-1], grid.ys[GridSize-1]},
		}
		for _, c := range corners {
			if v := p.at(c[0], c[1]); v >= 250 {
				t.Errorf("grid point %v lies on the border (value %d)", c, v)
			}
		}
	})
}

func TestSampleIntensities(t *testing.T) {
	// Left half 0, right half 200.
	img := grayImage(4, 1, func(x, _ int) int {
		if x < 2 {
			return 0
		}
		return 200
	})
	p := newPlane(img)

	var l lattice
	for i := range GridSize {
		l.xs[i] = 1
	}
	l.radius = 1

	m := sampleIntensities(p, l)
	// The square around x=1 covers x in [0, 2] of a single row.
	if m[0][0] != 66 {
		t.Errorf("m[0][0] = %d; want 66", m[0][0])
	}
	for r := range GridSize {
		for c := range GridSize {
			if m[r][c] != m[0][0] {
				t.Fatalf("m[%d][%d] = %d; want %d", r, c, m[r][c], m[0][0])
			}
		}
	}
}

func TestDifferences(t *testing.T) {
	t.Run("uniform matrix", func(t *testing.T) {
		var m intensityMatrix
		for r := range GridSize {
			for c := range GridSize {
				m[r][c] = 42
			}
		}
		for i, d := range differences(&m) {
			if d != 0 {
				t.Fatalf("differences[%d] = %d; want 0", i, d)
			}
		}
	})

	t.Run("neighbor order", func(t *testing.T) {
		var m intensityMatrix
		for r := range GridSize {
			for c := range GridSize {
				m[r][c] = uint8(r*GridSize + c)
			}
		}
		d := differences(&m)
		// Top left corner: right, below, below right.
		want := []int16{1, GridSize, GridSize + 1}
		for i, w := range want {
			if d[i] != w {
				t.Errorf("differences[%d] = %d; want %d", i, d[i], w)
			}
		}
		// Bottom right corner: above left, above, left.
		tail := []int16{-GridSize - 1, -GridSize, -1}
		for i, w := range tail {
			if got := d[Len-3+i]; got != w {
				t.Errorf("differences[%d] = %d; want %d", Len-3+i, got, w)
			}
		}
	})
}

func TestQuantize(t *testing.T) {
	var diffs [Len]int16
	// Dark: -10, -8, -6, -4, -2 give cutoffs -6 and -2.
	// Light: 3, 9, 20 give cutoffs 9 and 20.
	copy(diffs[:], []int16{-10, -8, -6, -4, -1, 0, 1, 3, 9, 20, -2})
	sig := quantize(diffs)

	want := []uint8{0, 0, 0, 1, 2, 2, 2, 3, 3, 4, 1}
	for i, w := range want {
		if sig[i] != w {
			t.Errorf("sig[%d] = %d; want %d (diff %d)", i, sig[i], w, diffs[i])
		}
	}
	for i := len(want); i < Len; i++ {
		if sig[i] != LuminanceLevels {
			t.Fatalf("sig[%d] = %d; want %d", i, sig[i], LuminanceLevels)
		}
	}
}

func TestQuantizeSingleLightValue(t *testing.T) {
	var diffs [Len]int16
	diffs[7] = 50
	sig := quantize(diffs)
	if sig[7] != LuminanceLevels+1 {
		t.Errorf("sig[7] = %d; want %d", sig[7], LuminanceLevels+1)
	}
}

func TestComputeUniform(t *testing.T) {
	const fullChunk = 745058059692382812 // (5^26 - 1) / 2
	const lastChunk = 29802322387695312  // (5^24 - 1) / 2

	for _, size := range [][2]int{{1, 1}, {2, 3}, {40, 30}, {300, 7}} {
		c, words := Compute(uniformImage(size[0], size[1], 128))
		for k := range CompressedLen - 1 {
			if c[k] != fullChunk {
				t.Errorf("%v: c[%d] = %d; want %d", size, k, c[k], fullChunk)
			}
		}
		if c[CompressedLen-1] != lastChunk {
			t.Errorf("%v: last chunk = %d; want %d", size, c[CompressedLen-1], lastChunk)
		}
		for i, w := range words {
			want := int32(i) + 64569960 // 243 * (3^12 - 1) / 2
			if w != want {
				t.Errorf("%v: words[%d] = %d; want %d", size, i, w, want)
			}
		}
	}
}

func TestComputeGolden(t *testing.T) {
	want := Compressed{
		1391963196062914593, 998147176938807918, 298026455061231226,
		402287565500768056, 1115683641569578961, 359928307658138984,
		1226235786571754371, 248046017323727095, 573638435066062524,
		1486907170495318731, 1010894922891015230, 103987750439459371,
		240800329576202280, 1423199493585156829, 786851991393106999,
		961135279354833768, 1114079294581266380, 950276449787789556,
		939374030792821979, 552316023362027505, 56808360529248103,
	}
	wantWords := map[int]int32{
		0:  9670671,
		1:  39610,
		2:  119397080,
		3:  128037189,
		4:  123289699,
		99: 125579583,
	}

	c, words := Compute(sceneImage())
	if c != want {
		t.Errorf("Compute(scene) = %v; want %v", c, want)
	}
	for i, w := range wantWords {
		if words[i] != w {
			t.Errorf("words[%d] = %d; want %d", i, words[i], w)
		}
	}
}

func TestComputeSubImage(t *testing.T) {
	// Bounds that do not start at the origin must give the same result.
	bordered := withBorder(sceneImage(), 7, 5, 0)
	sub := bordered.SubImage(image.Rect(7, 5, 167, 125)).(*image.Gray)

	a, _ := Compute(sceneImage())
	b, _ := Compute(sub)
	if a != b {
		t.Errorf("sub image signature differs:\n%v\n%v", a, b)
	}
}

func TestComputeDeterministic(t *testing.T) {
	img := sceneImage()
	want, wantWords := Compute(img)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, words := Compute(img)
			if c != want || words != wantWords {
				t.Error("concurrent Compute returned a different result")
			}
		}()
	}
	wg.Wait()
}

func TestComputeEmptyImagePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Compute on an empty image did not panic")
		}
	}()
	Compute(image.NewGray(image.Rect(0, 0, 0, 10)))
}

func TestRobustness(t *testing.T) {
	scene := sceneImage()
	cache := NewCache(Encode(ComputeSignature(scene)))
	words := GenerateWords(Encode(ComputeSignature(scene)))

	similar := []struct {
		name string
		img  *image.Gray
	}{
		{"white border", withBorder(scene, 20, 20, 255)},
		{"large white border", withBorder(scene, 60, 60, 255)},
		{"black border", withBorder(scene, 16, 16, 0)},
		{"letterboxed", withBorder(scene, 40, 0, 0)},
	}
	for _, tc := range similar {
		t.Run(tc.name, func(t *testing.T) {
			c, w := Compute(tc.img)
			if d := cache.Distance(c); d >= 0.2 {
				t.Errorf("distance = %f; want < 0.2", d)
			}
			if m := words.Matches(w); m == 0 {
				t.Error("no shared words")
			}
		})
	}

	unrelated := []struct {
		name string
		img  *image.Gray
	}{
		{"different scene", otherImage()},
		{"checkerboard", checkerImage()},
	}
	for _, tc := range unrelated {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := Compute(tc.img)
			if d := cache.Distance(c); d <= 0.6 {
				t.Errorf("distance = %f; want > 0.6", d)
			}
		})
	}
}

package monitor

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	return img
}

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestDetectorFirstImageIsChanged(t *testing.T) {
	d := NewPNGDetector()
	changed, fp, err := d.HasChanged(gradient(32, 32), nil)
	if err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	if !changed {
		t.Fatal("first image must count as changed")
	}
	if fp == (Fingerprint{}) {
		t.Fatal("expected a non-zero fingerprint")
	}
}

func TestDetectorPixelIdenticalImages(t *testing.T) {
	d := NewPNGDetector()
	first := gradient(40, 30)

	// Same pixels, different allocation, colour model and bounds offset.
	nrgba := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	draw.Draw(nrgba, nrgba.Bounds(), first, image.Point{}, draw.Src)
	offset := image.NewRGBA(image.Rect(100, 200, 140, 230))
	draw.Draw(offset, offset.Bounds(), first, image.Point{}, draw.Src)

	_, fp, err := d.HasChanged(first, nil)
	if err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	for name, img := range map[string]image.Image{"copy": gradient(40, 30), "nrgba": nrgba, "offset": offset} {
		changed, next, err := d.HasChanged(img, &fp)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if changed {
			t.Errorf("%s: pixel-identical image reported as changed", name)
		}
		if !next.Equal(fp) {
			t.Errorf("%s: fingerprint changed for identical content", name)
		}
	}
}

func TestDetectorSinglePixelDifference(t *testing.T) {
	d := NewPNGDetector()
	a := gradient(40, 30)
	b := gradient(40, 30)
	b.Set(17, 11, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	_, fa, _ := d.HasChanged(a, nil)
	changed, fb, err := d.HasChanged(b, &fa)
	if err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	if !changed {
		t.Fatal("pixel-differing images must count as changed")
	}
	if fb.Equal(fa) {
		t.Fatal("fingerprint should differ")
	}

	// Different dimensions with otherwise equal leading pixels.
	changed, _, _ = d.HasChanged(gradient(40, 31), &fa)
	if !changed {
		t.Fatal("different size must count as changed")
	}
}

func TestDetectorToleranceIgnoresNoise(t *testing.T) {
	d := NewPNGDetector(WithTolerance(4))
	base := gradient(128, 128)
	noisy := gradient(128, 128)
	c := noisy.RGBAAt(64, 64)
	c.B++
	noisy.SetRGBA(64, 64, c)

	_, fp, err := d.HasChanged(base, nil)
	if err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	changed, kept, err := d.HasChanged(noisy, &fp)
	if err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	if changed {
		t.Fatal("near-identical frame should be within tolerance")
	}
	if !kept.Equal(fp) {
		t.Fatal("suppressed frames must keep the previous fingerprint")
	}

	changed, _, _ = d.HasChanged(checkerboard(128, 128), &fp)
	if !changed {
		t.Fatal("visually distinct frame must be reported as changed")
	}
}

func TestDetectorNilImage(t *testing.T) {
	if _, _, err := NewPNGDetector().HasChanged(nil, nil); err == nil {
		t.Fatal("expected error for nil image")
	}
}

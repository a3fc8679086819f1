package monitor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/corona10/goimagehash"
)

// Fingerprint identifies image content. Two pixel-identical images always
// produce equal digests, independent of capture time or image bounds offset.
type Fingerprint struct {
	Digest [sha256.Size]byte
	// Perceptual is the pHash of the image; only set when tolerance is enabled.
	Perceptual uint64
}

func (f Fingerprint) Equal(o Fingerprint) bool { return f.Digest == o.Digest }

func (f Fingerprint) String() string { return hex.EncodeToString(f.Digest[:6]) }

// Detector decides whether current differs from the image behind previous.
// A nil previous always counts as changed.
type Detector interface {
	HasChanged(current image.Image, previous *Fingerprint) (bool, Fingerprint, error)
}

// PNGDetector fingerprints images by hashing their canonical PNG encoding.
type PNGDetector struct {
	tolerance int
	encoder   png.Encoder
}

// DetectorOption configures a PNGDetector.
type DetectorOption func(*PNGDetector)

// WithTolerance treats images whose perceptual hashes differ by at most
// maxDistance bits as unchanged. Zero disables it: any pixel difference counts.
func WithTolerance(maxDistance int) DetectorOption {
	return func(d *PNGDetector) {
		if maxDistance > 0 {
			d.tolerance = maxDistance
		}
	}
}

func NewPNGDetector(opts ...DetectorOption) *PNGDetector {
	d := &PNGDetector{encoder: png.Encoder{CompressionLevel: png.BestSpeed}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *PNGDetector) HasChanged(current image.Image, previous *Fingerprint) (bool, Fingerprint, error) {
	fp, err := d.Fingerprint(current)
	if err != nil {
		return false, Fingerprint{}, err
	}
	if previous == nil {
		return true, fp, nil
	}
	if fp.Equal(*previous) {
		return false, *previous, nil
	}
	if d.tolerance > 0 {
		prev := goimagehash.NewImageHash(previous.Perceptual, goimagehash.PHash)
		cur := goimagehash.NewImageHash(fp.Perceptual, goimagehash.PHash)
		if dist, err := prev.Distance(cur); err == nil && dist <= d.tolerance {
			// Keep the last delivered fingerprint so small drifts cannot accumulate unnoticed.
			return false, *previous, nil
		}
	}
	return true, fp, nil
}

// Fingerprint computes the content fingerprint of img.
func (d *PNGDetector) Fingerprint(img image.Image) (Fingerprint, error) {
	if img == nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: nil image")
	}
	canon := canonical(img)

	var buf bytes.Buffer
	if err := d.encoder.Encode(&buf, canon); err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: encode png: %w", err)
	}
	fp := Fingerprint{Digest: sha256.Sum256(buf.Bytes())}

	if d.tolerance > 0 {
		h, err := goimagehash.PerceptionHash(canon)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("fingerprint: perceptual hash: %w", err)
		}
		fp.Perceptual = h.GetHash()
	}
	return fp, nil
}

// canonical redraws img as NRGBA anchored at the origin.
func canonical(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

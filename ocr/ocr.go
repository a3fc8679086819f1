// Package ocr turns images into text.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract"

	"kiana/llm"
)

// DefaultLanguages is used when no Tesseract language is configured.
var DefaultLanguages = []string{"eng"}

// Extractor extracts text from an image. A page without text yields "" and no error.
type Extractor interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// Tesseract runs the local Tesseract engine.
type Tesseract struct {
	languages []string

	// gosseract clients are not safe for concurrent use.
	mu sync.Mutex
}

func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Tesseract{languages: languages}
}

func (t *Tesseract) Languages() []string { return t.languages }

func (t *Tesseract) ExtractText(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("tesseract: set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("tesseract: set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}

// Check verifies that Tesseract and its language data are usable and returns
// the engine version.
func Check(languages ...string) (string, error) {
	blank := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	if _, err := NewTesseract(languages...).ExtractText(context.Background(), blank); err != nil {
		return "", fmt.Errorf("tesseract unavailable: %w", err)
	}
	return gosseract.Version(), nil
}

// Vision sends the image to an OpenRouter vision model.
type Vision struct {
	client *llm.Client
}

func NewVision(client *llm.Client) *Vision {
	return &Vision{client: client}
}

func (v *Vision) ExtractText(ctx context.Context, img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	text, err := v.client.QueryVision(ctx, data)
	if errors.Is(err, llm.ErrNoText) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("vision ocr: %w", err)
	}
	return text, nil
}

// EncodePNG serialises img for engines that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("ocr: nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("ocr: encode png: %w", err)
	}
	return buf.Bytes(), nil
}


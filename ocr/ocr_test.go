package ocr

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"kiana/llm"
)

func TestNewTesseractDefaults(t *testing.T) {
	if got := NewTesseract().Languages(); !reflect.DeepEqual(got, DefaultLanguages) {
		t.Fatalf("languages = %v", got)
	}
}

func TestEncodePNG(t *testing.T) {
	if _, err := EncodePNG(nil); err == nil {
		t.Error("expected error for nil image")
	}
	data, err := EncodePNG(image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	if !strings.HasPrefix(string(data), "\x89PNG") {
		t.Fatal("not a PNG")
	}
}

func TestTesseractBlankImage(t *testing.T) {
	version, err := Check()
	if err != nil {
		t.Skipf("tesseract not available: %v", err)
	}
	t.Logf("tesseract %s", version)

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	text, err := NewTesseract().ExtractText(context.Background(), img)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if strings.TrimSpace(text) != "" {
		t.Fatalf("expected no text on a blank page, got %q", text)
	}
}

func TestVisionNoTextIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(llm.ChatResponse{Choices: []llm.Choice{{Message: llm.ResponseMessage{Content: "NO_TEXT_FOUND"}}}})
	}))
	defer srv.Close()

	client, err := llm.New(llm.Config{APIKey: "k", Model: "m", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("llm.New: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.Black)

	text, err := NewVision(client).ExtractText(context.Background(), img)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty", text)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"kiana/pipeline"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPNGValidation(t *testing.T) {
	valid := testPNG(t)
	tests := []struct {
		name    string
		data    []byte
		wantErr string
	}{
		{"valid", valid, ""},
		{"empty", nil, "empty"},
		{"jpeg magic", []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0, 0, 0}, "not a valid PNG"},
		{"short", []byte{0x89, 'P'}, "not a valid PNG"},
		{"too large", append(append([]byte{}, valid...), make([]byte, maxFileSize)...), "exceeds maximum size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readInput("-", bytes.NewReader(tt.data))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestReadInputFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(path, testPNG(t), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readInput(path, nil); err != nil {
		t.Fatalf("readInput: %v", err)
	}
	if _, err := readInput(filepath.Join(t.TempDir(), "missing.png"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

type fakeProcessor struct {
	res pipeline.Result
}

func (f fakeProcessor) Process(_ context.Context, _ image.Image, source, _ string) pipeline.Result {
	r := f.res
	r.SourceLang = source
	return r
}

func TestProcessJSON(t *testing.T) {
	p := fakeProcessor{res: pipeline.Result{Raw: "Hallo", Translated: "Hello", DetectedLang: "de", Outcome: pipeline.Processed}}
	var out bytes.Buffer
	if err := process(context.Background(), p, testPNG(t), "shot.png", "auto", "en", true, &out); err != nil {
		t.Fatalf("process: %v", err)
	}

	var got Result
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if got.Text != "Hallo" || got.Translation != "Hello" {
		t.Errorf("texts = %q / %q", got.Text, got.Translation)
	}
	if got.SourceLang != "auto" || got.DetectedLang != "de" || got.TargetLang != "en" {
		t.Errorf("languages = %s (%s) -> %s", got.SourceLang, got.DetectedLang, got.TargetLang)
	}
	if got.Status != "processed" || got.Source != "shot.png" {
		t.Errorf("status=%q source=%q", got.Status, got.Source)
	}
}

func TestProcessPlainText(t *testing.T) {
	tests := []struct {
		name    string
		res     pipeline.Result
		want    string
		wantErr bool
	}{
		{"translated", pipeline.Result{Raw: "Hallo\n", Translated: "Hello", Outcome: pipeline.Processed}, "Hallo\n\nHello\n", false},
		{"no text", pipeline.Result{Outcome: pipeline.NoText}, "No text detected in image\n", false},
		{"translation failed", pipeline.Result{Raw: "Hallo", Outcome: pipeline.TranslationFailed, Err: errors.New("503")}, "Hallo\n\n\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := process(context.Background(), fakeProcessor{res: tt.res}, testPNG(t), "-", "de", "en", false, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestRequiresFileFlag(t *testing.T) {
	err := runWithArgs([]string{"kiana-cli", "--json"}, nil, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "file") {
		t.Fatalf("err = %v, want required flag error", err)
	}
}

func TestNormalizeLegacyArgs(t *testing.T) {
	in := []string{"kiana-cli", "-file", "a.png", "-json", "-from=de", "--to", "en", "-v"}
	want := []string{"kiana-cli", "--file", "a.png", "--json", "--from=de", "--to", "en", "-v"}
	if got := normalizeLegacyArgs(in); !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeLegacyArgs = %v, want %v", got, want)
	}
}

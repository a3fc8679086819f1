package pipeline

import (
	"context"
	"errors"
	"go/parser"
	"go/token"
	"image"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"kiana/translate"
)

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) ExtractText(context.Context, image.Image) (string, error) { return f.text, f.err }

var _ Extractor = fakeOCR{}

// The Tesseract binding needs cgo and libtesseract; only the bootstrap may pull it in.
func TestOCREngineStaysOutOfCorePackages(t *testing.T) {
	for _, dir := range []string{".", "../worker", "../controller", "../api", "../gui", "../config", "../console"} {
		files, err := filepath.Glob(filepath.Join(dir, "*.go"))
		if err != nil {
			t.Fatal(err)
		}
		for _, f := range files {
			if strings.HasSuffix(f, "_test.go") {
				continue
			}
			parsed, err := parser.ParseFile(token.NewFileSet(), f, nil, parser.ImportsOnly)
			if err != nil {
				t.Fatal(err)
			}
			for _, imp := range parsed.Imports {
				if path, _ := strconv.Unquote(imp.Path.Value); path == "kiana/ocr" {
					t.Errorf("%s imports kiana/ocr", f)
				}
			}
		}
	}
}

// countingTranslator records how often the backend is reached.
type countingTranslator struct {
	calls    int
	detected string
	err      error
}

func (c *countingTranslator) Translate(_ context.Context, text, source, target string) (translate.Result, error) {
	c.calls++
	if c.err != nil {
		return translate.Result{}, c.err
	}
	return translate.Result{Text: "[" + target + "] " + text, SourceLang: source, DetectedLang: c.detected}, nil
}

var blank = image.NewRGBA(image.Rect(0, 0, 1, 1))

func TestTranslateBlankTextSkipsBackend(t *testing.T) {
	tests := []struct {
		name, text, src, dst string
	}{
		{"empty auto", "", "auto", "en"},
		{"whitespace", "  ", "en", "fr"},
		{"newlines", "\n\t\n", "de", "ja"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &countingTranslator{}
			p := New(fakeOCR{}, tr)
			out, resolved, err := p.Translate(context.Background(), tt.text, tt.src, tt.dst)
			if err != nil {
				t.Fatalf("Translate: %v", err)
			}
			if out != "" || resolved != "" {
				t.Fatalf("got (%q, %q), want empty pair", out, resolved)
			}
			if tr.calls != 0 {
				t.Fatalf("backend called %d times", tr.calls)
			}
		})
	}
}

func TestTranslateReportsAutoLiterally(t *testing.T) {
	tr := &countingTranslator{detected: "es"}
	p := New(fakeOCR{}, tr)

	out, resolved, err := p.Translate(context.Background(), "hola", "auto", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "[en] hola" || resolved != "auto" {
		t.Fatalf("got (%q, %q)", out, resolved)
	}

	res, err := p.TranslateDetailed(context.Background(), "hola", "auto", "en")
	if err != nil {
		t.Fatalf("TranslateDetailed: %v", err)
	}
	if res.SourceLang != "auto" || res.DetectedLang != "es" {
		t.Fatalf("detailed = %+v", res)
	}

	_, resolved, _ = p.Translate(context.Background(), "bonjour", "fr", "en")
	if resolved != "fr" {
		t.Fatalf("explicit source resolved as %q", resolved)
	}
}

func TestTranslateWrapsForeignErrors(t *testing.T) {
	p := New(fakeOCR{}, &countingTranslator{err: errors.New("boom")})
	_, _, err := p.Translate(context.Background(), "text", "en", "de")
	var trErr *translate.TranslationError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected *TranslationError, got %v", err)
	}
}

func TestProcess(t *testing.T) {
	backendErr := &translate.TranslationError{Backend: "google", Err: errors.New("quota")}
	tests := []struct {
		name        string
		ocr         fakeOCR
		tr          *countingTranslator
		wantOutcome Outcome
		wantCalls   int
		wantText    string
	}{
		{"processed", fakeOCR{text: "Hallo"}, &countingTranslator{}, Processed, 1, "[en] Hallo"},
		{"no text", fakeOCR{text: " \n"}, &countingTranslator{}, NoText, 0, ""},
		{"ocr failure reads as no text", fakeOCR{err: errors.New("engine crashed")}, &countingTranslator{}, NoText, 0, ""},
		{"translation failure", fakeOCR{text: "Hallo"}, &countingTranslator{err: backendErr}, TranslationFailed, 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(tt.ocr, tt.tr).Process(context.Background(), blank, "de", "en")
			if res.Outcome != tt.wantOutcome {
				t.Fatalf("outcome = %v, want %v", res.Outcome, tt.wantOutcome)
			}
			if tt.tr.calls != tt.wantCalls {
				t.Fatalf("backend calls = %d, want %d", tt.tr.calls, tt.wantCalls)
			}
			if res.Translated != tt.wantText {
				t.Fatalf("translated = %q, want %q", res.Translated, tt.wantText)
			}
			if (res.Err != nil) != (tt.wantOutcome == TranslationFailed) {
				t.Fatalf("err = %v", res.Err)
			}
		})
	}
}

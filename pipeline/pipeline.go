// Package pipeline runs OCR followed by translation on a newly detected image.
package pipeline

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/rs/zerolog"

	"kiana/logutil"
	"kiana/translate"
)

// Outcome classifies a processed image.
type Outcome int

const (
	Processed Outcome = iota
	NoText
	TranslationFailed
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return "processed"
	case NoText:
		return "no text"
	case TranslationFailed:
		return "translation failed"
	default:
		return "unknown"
	}
}

// Result of Process. Err is set only when Outcome is TranslationFailed.
type Result struct {
	Raw          string
	Translated   string
	SourceLang   string
	DetectedLang string
	Outcome      Outcome
	Err          error
}

// Extractor reads the text in an image. A page without text yields "" and no error.
type Extractor interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

type Pipeline struct {
	ocr Extractor
	tr  translate.Translator
	log zerolog.Logger
}

func New(extractor Extractor, translator translate.Translator) *Pipeline {
	return &Pipeline{ocr: extractor, tr: translator, log: logutil.Component("pipeline")}
}

// ExtractText never fails: engine errors are logged and read as "no text".
func (p *Pipeline) ExtractText(ctx context.Context, img image.Image) string {
	text, err := p.ocr.ExtractText(ctx, img)
	if err != nil {
		p.log.Warn().Err(err).Msg("text extraction failed")
		return ""
	}
	return text
}

// Translate returns the translation and the resolved source language. For an
// "auto" source the resolved language is the literal "auto"; use
// TranslateDetailed for the backend's detected code. Blank text returns
// ("", "") without calling the backend.
func (p *Pipeline) Translate(ctx context.Context, text, source, target string) (string, string, error) {
	res, err := p.TranslateDetailed(ctx, text, source, target)
	if err != nil {
		return "", "", err
	}
	return res.Text, res.SourceLang, nil
}

// TranslateDetailed is Translate with the backend's detected language, which
// is advisory and may be empty.
func (p *Pipeline) TranslateDetailed(ctx context.Context, text, source, target string) (translate.Result, error) {
	if strings.TrimSpace(text) == "" {
		return translate.Result{}, nil
	}
	res, err := p.tr.Translate(ctx, text, source, target)
	if err != nil {
		var trErr *translate.TranslationError
		if !errors.As(err, &trErr) {
			err = &translate.TranslationError{Backend: "unknown", Err: err}
		}
		return translate.Result{}, err
	}
	res.SourceLang = source
	return res, nil
}

// Process runs OCR then translation.
func (p *Pipeline) Process(ctx context.Context, img image.Image, source, target string) Result {
	raw := p.ExtractText(ctx, img)
	if strings.TrimSpace(raw) == "" {
		return Result{Raw: raw, Outcome: NoText}
	}

	res, err := p.TranslateDetailed(ctx, raw, source, target)
	if err != nil {
		p.log.Warn().Err(err).Msg("translation failed")
		return Result{Raw: raw, Outcome: TranslationFailed, Err: err}
	}
	p.log.Debug().
		Str("source", res.SourceLang).
		Str("detected", res.DetectedLang).
		Str("text", logutil.Sanitize(raw, 60)).
		Msg("processed")
	return Result{
		Raw:          raw,
		Translated:   res.Text,
		SourceLang:   res.SourceLang,
		DetectedLang: res.DetectedLang,
		Outcome:      Processed,
	}
}

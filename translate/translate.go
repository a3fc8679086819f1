// Package translate converts text between the supported languages using a
// pluggable backend.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kiana/llm"
)

const (
	BackendGoogle     = "google"
	BackendOpenRouter = "openrouter"

	DefaultTimeout = 20 * time.Second
)

// Result of a translation. SourceLang echoes the requested source;
// DetectedLang is the backend's guess when it reports one.
type Result struct {
	Text         string
	SourceLang   string
	DetectedLang string
}

// Translator translates text from source (or "auto") to target.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (Result, error)
}

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Timeout   time.Duration
	APIKey    string
	Model     string
	Providers []string
}

// New builds the backend named by opts.Backend; empty means Google.
func New(opts Options) (Translator, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendGoogle:
		return NewGoogle(WithTimeout(opts.Timeout)), nil
	case BackendOpenRouter:
		client, err := llm.New(llm.Config{
			APIKey:    opts.APIKey,
			Model:     opts.Model,
			Providers: opts.Providers,
			Timeout:   opts.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("openrouter backend: %w", err)
		}
		return NewOpenRouter(client), nil
	default:
		return nil, fmt.Errorf("unknown translation backend %q", opts.Backend)
	}
}

func checkLanguages(source, target string) error {
	if !ValidSource(source) {
		return fmt.Errorf("%w: source %q", ErrUnsupportedLanguage, source)
	}
	if !ValidTarget(target) {
		return fmt.Errorf("%w: target %q", ErrUnsupportedLanguage, target)
	}
	return nil
}

// Package runtimeinit loads configuration and builds the processing stack
// shared by the desktop app and the command-line tool.
package runtimeinit

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"kiana/clipboard"
	"kiana/config"
	"kiana/llm"
	"kiana/logutil"
	"kiana/monitor"
	"kiana/ocr"
	"kiana/pipeline"
	"kiana/translate"
)

type Options struct {
	LoadOptions config.LoadOptions
	// LogLevel overrides the configured level when set.
	LogLevel string
	// InitClipboard is false for tools that never touch the clipboard.
	InitClipboard bool
}

// Runtime is everything a front end needs to start processing.
type Runtime struct {
	Config    *config.Config
	OCR       ocr.Extractor
	Translate translate.Translator
	Pipeline  *pipeline.Pipeline
	Detector  monitor.Detector
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logutil.Setup(logutil.Options{Level: level, EnableFileLogging: cfg.EnableFileLogging})

	if cfg.NeedsOpenRouter() {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is required. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("MODEL is required. Please set it in your .env file")
		}
	}

	extractor, err := NewExtractor(cfg)
	if err != nil {
		return nil, err
	}

	translator, err := translate.New(translate.Options{
		Backend:   cfg.TranslateBackend,
		Timeout:   cfg.TranslateTimeout,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Providers: cfg.Providers,
	})
	if err != nil {
		return nil, err
	}

	if opts.InitClipboard {
		if err := clipboard.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}

	log.Info().
		Str("ocr", cfg.OCREngine).
		Str("backend", cfg.TranslateBackend).
		Str("model", cfg.Model).
		Str("api_key", logutil.RedactKey(cfg.APIKey)).
		Str("env_file", cfg.EnvFile).
		Msg("runtime initialized")

	return &Runtime{
		Config:    cfg,
		OCR:       extractor,
		Translate: translator,
		Pipeline:  pipeline.New(extractor, translator),
		Detector:  monitor.NewPNGDetector(monitor.WithTolerance(cfg.ChangeTolerance)),
	}, nil
}

// NewExtractor builds the configured OCR engine. Tesseract is probed once so
// a missing installation fails at startup rather than on every image.
func NewExtractor(cfg *config.Config) (ocr.Extractor, error) {
	switch cfg.OCREngine {
	case config.OCREngineOpenRouter:
		client, err := llm.New(llm.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Providers: cfg.Providers,
		})
		if err != nil {
			return nil, fmt.Errorf("vision ocr: %w", err)
		}
		return ocr.NewVision(client), nil
	default:
		version, err := ocr.Check(cfg.OCRLanguages...)
		if err != nil {
			return nil, err
		}
		log.Info().Str("version", version).Strs("languages", cfg.OCRLanguages).Msg("tesseract ready")
		return ocr.NewTesseract(cfg.OCRLanguages...), nil
	}
}

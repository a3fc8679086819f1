package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"kiana/monitor"
	"kiana/screenshot"
	"kiana/translate"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	// EnvPathEnvVar names an alternative .env file.
	EnvPathEnvVar = "KIANA_ENV"

	ModeClipboard = "clipboard"
	ModeRegion    = "region"

	OCREngineTesseract  = "tesseract"
	OCREngineOpenRouter = "openrouter"

	DefaultHotkey       = "Ctrl+Alt+T"
	DefaultOCRLanguages = "eng"
)

// Keys shared between .env files, environment variables and bound flags.
const (
	KeyMode              = "MODE"
	KeyRegion            = "REGION"
	KeyScanInterval      = "SCAN_INTERVAL"
	KeyClipboardInterval = "CLIPBOARD_INTERVAL"
	KeySourceLang        = "SOURCE_LANG"
	KeyTargetLang        = "TARGET_LANG"
	KeyTranslateBackend  = "TRANSLATE_BACKEND"
	KeyAPIKey            = "OPENROUTER_API_KEY"
	KeyModel             = "MODEL"
	KeyProviders         = "PROVIDERS"
	KeyTranslateTimeout  = "TRANSLATE_TIMEOUT_SEC"
	KeyOCREngine         = "OCR_ENGINE"
	KeyOCRLanguages      = "OCR_LANGUAGES"
	KeyChangeTolerance   = "CHANGE_TOLERANCE"
	KeyHotkey            = "HOTKEY"
	KeyLogLevel          = "LOG_LEVEL"
	KeyFileLogging       = "ENABLE_FILE_LOGGING"
	KeyAPIAddr           = "API_ADDR"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"mode":      KeyMode,
	"region":    KeyRegion,
	"interval":  KeyScanInterval,
	"from":      KeySourceLang,
	"to":        KeyTargetLang,
	"backend":   KeyTranslateBackend,
	"log-level": KeyLogLevel,
	"api-addr":  KeyAPIAddr,
}

type LoadOptions struct {
	// EnvPath is an explicit .env file; it wins over the lookup next to the executable.
	EnvPath string
	// Flags, when set, override every other source for the keys in flagKeys.
	Flags              *pflag.FlagSet
	APIKeyPathOverride string
}

type Config struct {
	Mode              string
	Region            screenshot.Region
	ScanInterval      time.Duration
	ClipboardInterval time.Duration

	SourceLang       string
	TargetLang       string
	TranslateBackend string
	TranslateTimeout time.Duration

	APIKey     string
	APIKeyPath string
	Model      string
	Providers  []string

	OCREngine       string
	OCRLanguages    []string
	ChangeTolerance int

	Hotkey            string
	LogLevel          string
	EnableFileLogging bool
	// APIAddr enables the local HTTP API when set, e.g. "127.0.0.1:8765".
	APIAddr string

	// EnvFile is the .env file that was read, if any.
	EnvFile string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions resolves configuration in priority order: changed flags,
// process environment, .env file, built-in defaults.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	envPath := opts.EnvPath
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	dotenvValues, err := readDotenvValues(envPath, opts.EnvPath != "")
	if err != nil {
		return nil, err
	}
	for key, value := range dotenvValues {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)
	cfg := &Config{
		Mode:              strings.ToLower(strings.TrimSpace(v.GetString(KeyMode))),
		ScanInterval:      seconds(v.GetFloat64(KeyScanInterval)),
		ClipboardInterval: seconds(v.GetFloat64(KeyClipboardInterval)),
		SourceLang:        strings.ToLower(strings.TrimSpace(v.GetString(KeySourceLang))),
		TargetLang:        strings.ToLower(strings.TrimSpace(v.GetString(KeyTargetLang))),
		TranslateBackend:  strings.ToLower(strings.TrimSpace(v.GetString(KeyTranslateBackend))),
		TranslateTimeout:  time.Duration(v.GetInt(KeyTranslateTimeout)) * time.Second,
		APIKey:            resolveAPIKey(apiKeyPath, v.GetString(KeyAPIKey)),
		APIKeyPath:        apiKeyPath,
		Model:             v.GetString(KeyModel),
		Providers:         splitList(v.GetString(KeyProviders)),
		OCREngine:         strings.ToLower(strings.TrimSpace(v.GetString(KeyOCREngine))),
		OCRLanguages:      parseLanguages(v.GetString(KeyOCRLanguages)),
		ChangeTolerance:   v.GetInt(KeyChangeTolerance),
		Hotkey:            v.GetString(KeyHotkey),
		LogLevel:          v.GetString(KeyLogLevel),
		EnableFileLogging: v.GetBool(KeyFileLogging),
		APIAddr:           strings.TrimSpace(v.GetString(KeyAPIAddr)),
		EnvFile:           envPath,
	}

	if raw := strings.TrimSpace(v.GetString(KeyRegion)); raw != "" {
		region, err := screenshot.ParseRegion(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyRegion, err)
		}
		cfg.Region = region
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyMode, ModeClipboard)
	v.SetDefault(KeyScanInterval, monitor.DefaultRegionInterval.Seconds())
	v.SetDefault(KeyClipboardInterval, monitor.DefaultClipboardInterval.Seconds())
	v.SetDefault(KeySourceLang, translate.Auto)
	v.SetDefault(KeyTargetLang, "en")
	v.SetDefault(KeyTranslateBackend, translate.BackendGoogle)
	v.SetDefault(KeyTranslateTimeout, int(translate.DefaultTimeout/time.Second))
	v.SetDefault(KeyOCREngine, OCREngineTesseract)
	v.SetDefault(KeyOCRLanguages, DefaultOCRLanguages)
	v.SetDefault(KeyChangeTolerance, 0)
	v.SetDefault(KeyHotkey, DefaultHotkey)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyFileLogging, false)
}

// Validate rejects values the application cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeClipboard, ModeRegion:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown mode %q", KeyMode, c.Mode))
	}
	if err := monitor.ValidateInterval(c.ScanInterval); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyScanInterval, err))
	}
	if c.ClipboardInterval <= 0 || c.ClipboardInterval > monitor.MaxInterval {
		errs = append(errs, fmt.Errorf("%s: %v out of range", KeyClipboardInterval, c.ClipboardInterval))
	}
	if !translate.ValidSource(c.SourceLang) {
		errs = append(errs, fmt.Errorf("%s: %w %q", KeySourceLang, translate.ErrUnsupportedLanguage, c.SourceLang))
	}
	if !translate.ValidTarget(c.TargetLang) {
		errs = append(errs, fmt.Errorf("%s: %w %q", KeyTargetLang, translate.ErrUnsupportedLanguage, c.TargetLang))
	}
	switch c.TranslateBackend {
	case translate.BackendGoogle, translate.BackendOpenRouter:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown backend %q", KeyTranslateBackend, c.TranslateBackend))
	}
	switch c.OCREngine {
	case OCREngineTesseract, OCREngineOpenRouter:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown engine %q", KeyOCREngine, c.OCREngine))
	}
	if c.TranslateTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyTranslateTimeout))
	}
	if c.APIAddr != "" {
		if _, _, err := net.SplitHostPort(c.APIAddr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", KeyAPIAddr, err))
		}
	}
	if c.ChangeTolerance < 0 || c.ChangeTolerance > 64 {
		errs = append(errs, fmt.Errorf("%s: %d not in 0..64", KeyChangeTolerance, c.ChangeTolerance))
	}
	return errors.Join(errs...)
}

// NeedsOpenRouter reports whether any configured component talks to OpenRouter.
func (c *Config) NeedsOpenRouter() bool {
	return c.TranslateBackend == translate.BackendOpenRouter || c.OCREngine == OCREngineOpenRouter
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		return ".env"
	}
	return ""
}

// readDotenvValues reads envPath; a missing file is only an error when it was asked for explicitly.
func readDotenvValues(envPath string, explicit bool) (map[string]string, error) {
	if envPath == "" {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(envPath)
	if err != nil {
		if explicit {
			return nil, fmt.Errorf("read %s: %w", envPath, err)
		}
		return map[string]string{}, nil
	}
	return values, nil
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath, fallback string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}
	return strings.TrimSpace(fallback)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseLanguages splits a Tesseract language list such as "eng+deu" or "eng,deu".
func parseLanguages(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == ' ' })
}

// seconds converts fractional seconds, rounded to the millisecond.
func seconds(f float64) time.Duration {
	return time.Duration(math.Round(f*1000)) * time.Millisecond
}

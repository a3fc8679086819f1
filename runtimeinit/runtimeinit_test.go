package runtimeinit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kiana/config"
	"kiana/ocr"
)

func envFile(t *testing.T, lines ...string) config.LoadOptions {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.APIKeyPathEnvVar, filepath.Join(dir, "missing"))
	t.Setenv(config.KeyAPIKey, "")
	t.Setenv(config.KeyModel, "")
	t.Setenv(config.KeyOCREngine, "")
	t.Setenv(config.KeyTranslateBackend, "")
	return config.LoadOptions{EnvPath: path}
}

func TestBootstrapVisionEngine(t *testing.T) {
	opts := envFile(t,
		"OCR_ENGINE=openrouter",
		"OPENROUTER_API_KEY=sk-or-test-key",
		"MODEL=qwen/qwen2.5-vl-72b-instruct",
		"TRANSLATE_BACKEND=google",
		"CHANGE_TOLERANCE=3",
	)
	rt, err := Bootstrap(Options{LoadOptions: opts, LogLevel: "error"})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if _, ok := rt.OCR.(*ocr.Vision); !ok {
		t.Errorf("OCR = %T, want *ocr.Vision", rt.OCR)
	}
	if rt.Pipeline == nil || rt.Detector == nil || rt.Translate == nil {
		t.Error("runtime is missing components")
	}
	if rt.Config.ChangeTolerance != 3 {
		t.Errorf("ChangeTolerance = %d", rt.Config.ChangeTolerance)
	}
}

func TestBootstrapRequiresKeyForOpenRouter(t *testing.T) {
	opts := envFile(t, "TRANSLATE_BACKEND=openrouter", "MODEL=some/model")
	_, err := Bootstrap(Options{LoadOptions: opts, LogLevel: "error"})
	if err == nil || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Fatalf("err = %v, want missing key error", err)
	}
}

func TestBootstrapRequiresModelForOpenRouter(t *testing.T) {
	opts := envFile(t, "OCR_ENGINE=openrouter", "OPENROUTER_API_KEY=sk-or-test-key")
	_, err := Bootstrap(Options{LoadOptions: opts, LogLevel: "error"})
	if err == nil || !strings.Contains(err.Error(), "MODEL") {
		t.Fatalf("err = %v, want missing model error", err)
	}
}

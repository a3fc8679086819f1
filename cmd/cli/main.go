package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kiana/config"
	"kiana/pipeline"
	"kiana/runtimeinit"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	filePath   string
	envFile    string
	apiKeyPath string
	jsonOutput bool
	verbose    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), os.Stdin, os.Stdout)
}

func runWithArgs(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		args = []string{"kiana-cli"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, stdin, stdout)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, stdin io.Reader, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kiana-cli",
		Short:         "OCR a PNG and translate the text",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), cmd, *opts, stdin, stdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	f.String("from", "", "Source language code or auto")
	f.String("to", "", "Target language code")
	f.String("backend", "", "Translation backend: google or openrouter")
	f.StringVar(&opts.envFile, "config", "", "Path to a .env file")
	f.StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	f.BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(ctx context.Context, cmd *cobra.Command, opts cliOptions, stdin io.Reader, stdout io.Writer) error {
	imageData, err := readInput(opts.filePath, stdin)
	if err != nil {
		return err
	}

	level := "error"
	if opts.verbose {
		level = "debug"
	}
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			EnvPath:            opts.envFile,
			Flags:              cmd.Flags(),
			APIKeyPathOverride: opts.apiKeyPath,
		},
		LogLevel: level,
	})
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return process(ctx, rt.Pipeline, imageData, opts.filePath, rt.Config.SourceLang, rt.Config.TargetLang, opts.jsonOutput, stdout)
}

// readInput loads and sanity-checks the PNG named by path, or stdin for "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		return nil, fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return data, nil
}

type processor interface {
	Process(ctx context.Context, img image.Image, source, target string) pipeline.Result
}

type Result struct {
	Text         string  `json:"text"`
	Translation  string  `json:"translation"`
	SourceLang   string  `json:"source_lang"`
	DetectedLang string  `json:"detected_lang,omitempty"`
	TargetLang   string  `json:"target_lang"`
	Status       string  `json:"status"`
	Error        string  `json:"error,omitempty"`
	Source       string  `json:"source"`
	Timestamp    string  `json:"timestamp"`
	Duration     float64 `json:"duration_seconds"`
}

func process(ctx context.Context, p processor, data []byte, sourcePath, source, target string, jsonOutput bool, stdout io.Writer) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode PNG: %w", err)
	}

	start := time.Now()
	res := p.Process(ctx, img, source, target)
	elapsed := time.Since(start)

	out := Result{
		Text:         res.Raw,
		Translation:  res.Translated,
		SourceLang:   res.SourceLang,
		DetectedLang: res.DetectedLang,
		TargetLang:   target,
		Status:       res.Outcome.String(),
		Source:       sourcePath,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Duration:     elapsed.Seconds(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if err := writeResult(stdout, out, jsonOutput); err != nil {
		return err
	}
	if res.Outcome == pipeline.TranslationFailed {
		return fmt.Errorf("translation failed: %w", res.Err)
	}
	return nil
}

func writeResult(w io.Writer, r Result, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(r); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}
	if r.Text == "" {
		_, err := fmt.Fprintln(w, "No text detected in image")
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n\n%s\n", strings.TrimSpace(r.Text), strings.TrimSpace(r.Translation))
	return err
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "from", "to", "config"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"kiana/api"
	"kiana/clipboard"
	"kiana/config"
	"kiana/console"
	"kiana/controller"
	"kiana/eventloop"
	"kiana/gui"
	"kiana/hotkey"
	"kiana/monitor"
	"kiana/runtimeinit"
	"kiana/screenshot"
)

const appID = "io.kiana.monitor"

type appOptions struct {
	envFile    string
	apiKeyPath string
	headless   bool
}

func main() {
	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"kiana"}
	}
	opts := &appOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *appOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kiana",
		Short:         "Watch the clipboard or a screen region, OCR new images and translate the text",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.Flags(), *opts)
		},
	}

	f := cmd.Flags()
	f.String("mode", "", "monitor mode: clipboard or region")
	f.String("region", "", "screen region as x1,y1,x2,y2")
	f.Float64("interval", 0, "region scan interval in seconds (0.5-10)")
	f.String("from", "", "source language code or auto")
	f.String("to", "", "target language code")
	f.String("backend", "", "translation backend: google or openrouter")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("api-addr", "", "serve the local HTTP API on this address, e.g. 127.0.0.1:8765")
	f.StringVar(&opts.envFile, "config", "", "path to a .env file")
	f.StringVar(&opts.apiKeyPath, "api-key-path", "", "path to API key file (highest precedence)")
	f.BoolVar(&opts.headless, "headless", false, "run without a window and print results to stdout")
	return cmd
}

func run(ctx context.Context, flags *pflag.FlagSet, opts appOptions) error {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			EnvPath:            opts.envFile,
			Flags:              flags,
			APIKeyPathOverride: opts.apiKeyPath,
		},
		InitClipboard: true,
	})
	if err != nil {
		return err
	}
	cfg := rt.Config

	mode, err := controller.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	settings := controller.Settings{
		Mode:     mode,
		Source:   cfg.SourceLang,
		Target:   cfg.TargetLang,
		Interval: cfg.ScanInterval,
		Region:   cfg.Region,
	}
	deps := controller.Deps{
		Pipeline:          rt.Pipeline,
		Detector:          rt.Detector,
		ClipboardInterval: cfg.ClipboardInterval,
		ReadClipboard:     clipboard.ReadImage,
		WriteClipboard:    clipboard.Write,
		RegionGrabber:     screenshot.CaptureRegion,
	}

	log.Info().
		Str("mode", cfg.Mode).
		Str("from", cfg.SourceLang).
		Str("to", cfg.TargetLang).
		Dur("interval", cfg.ScanInterval).
		Str("hotkey", cfg.Hotkey).
		Msg("Kiana starting")

	var hub *api.Hub
	if cfg.APIAddr != "" {
		hub = api.NewHub()
	}
	if opts.headless {
		return runHeadless(ctx, deps, settings, cfg.Hotkey, hub, cfg.APIAddr)
	}
	return runGUI(deps, settings, cfg.Hotkey, hub, cfg.APIAddr)
}

// withHub adds the API hub as a second view when the API is enabled.
func withHub(v controller.View, hub *api.Hub) controller.View {
	if hub == nil {
		return v
	}
	return controller.Views(v, hub)
}

func startAPI(ctx context.Context, hub *api.Hub, c *controller.Controller, ui controller.Dispatcher, addr string) {
	if hub == nil {
		return
	}
	srv := api.NewServer(hub, c, ui)
	go func() {
		if err := srv.Serve(ctx, addr); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("API server stopped")
		}
	}()
}

func runGUI(deps controller.Deps, settings controller.Settings, combo string, hub *api.Hub, addr string) error {
	a := app.NewWithID(appID)
	w := gui.New(a)

	deps.View = withHub(w, hub)
	deps.UI = gui.Dispatcher
	c, err := controller.New(deps, settings)
	if err != nil {
		return err
	}
	w.Bind(c, gui.NewSelector(a, w.Window()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startAPI(ctx, hub, c, gui.Dispatcher, addr)

	if combo != "" {
		err := hotkey.Listen(combo, func() {
			fyne.Do(func() {
				if err := c.Toggle(); err != nil {
					log.Info().Err(err).Msg("hotkey toggle")
				}
			})
		})
		if err != nil {
			log.Warn().Err(err).Str("hotkey", combo).Msg("hotkey disabled")
		}
	}

	w.ShowAndRun()
	return nil
}

// runHeadless drives the controller from an event loop and a console view.
// Monitoring starts immediately; the hotkey toggles it.
func runHeadless(ctx context.Context, deps controller.Deps, settings controller.Settings, combo string, hub *api.Hub, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := eventloop.New(0)
	deps.View = withHub(console.New(os.Stdout), hub)
	deps.UI = loop
	c, err := controller.New(deps, settings)
	if err != nil {
		return err
	}
	startAPI(ctx, hub, c, loop, addr)

	if err := loop.StartHotkey(combo, func() {
		if err := c.Toggle(); err != nil {
			log.Info().Err(err).Msg("hotkey toggle")
		}
	}); err != nil {
		log.Warn().Err(err).Str("hotkey", combo).Msg("hotkey disabled")
	}

	started := make(chan error, 1)
	loop.Post(func() { started <- c.Start() })

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	select {
	case err = <-started:
	case <-ctx.Done():
	}
	if errors.Is(err, monitor.ErrNoRegion) {
		err = errors.New("region mode needs --region when running headless")
	}
	if err != nil {
		stop()
	}

	<-errCh
	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*monitor.MaxInterval+time.Second)
	defer cancel()

	// Keep draining posted renders while in-flight work finishes.
	drain, stopDrain := context.WithCancel(context.Background())
	go loop.Run(drain)
	defer stopDrain()
	return errors.Join(err, c.Shutdown(shutdownCtx))
}

// normalizeLegacyArgs accepts single-dash long flags ("-mode region").
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	long := map[string]bool{}
	newRootCmd(&appOptions{}).Flags().VisitAll(func(f *pflag.Flag) { long[f.Name] = true })

	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		if long[name] {
			normalized[i] = "-" + arg
		}
	}
	return normalized
}

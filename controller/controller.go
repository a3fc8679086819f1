// Package controller owns the monitors and mediates between them, the
// processing pipeline and a View.
package controller

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kiana/logutil"
	"kiana/monitor"
	"kiana/pipeline"
	"kiana/screenshot"
	"kiana/translate"
	"kiana/worker"
)

type Mode string

const (
	ModeClipboard Mode = "clipboard"
	ModeRegion    Mode = "region"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeClipboard, ModeRegion:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

const DefaultJobTimeout = 60 * time.Second

var ErrWrongMode = errors.New("not available in this mode")

// Processor runs OCR and translation on an image.
type Processor interface {
	Process(ctx context.Context, img image.Image, source, target string) pipeline.Result
}

// Deps wires a Controller. Nil sources fall back to the system clipboard and screen.
type Deps struct {
	View     View
	UI       Dispatcher
	Pipeline Processor

	ClipboardSource   monitor.Source
	RegionGrabber     monitor.Grabber
	Detector          monitor.Detector
	ClipboardInterval time.Duration

	ReadClipboard  monitor.ClipboardReader
	WriteClipboard func(text string) error

	JobTimeout time.Duration
}

// Settings is the initial user-facing state.
type Settings struct {
	Mode     Mode
	Source   string
	Target   string
	Interval time.Duration
	Region   screenshot.Region
}

type Controller struct {
	view  View
	ui    Dispatcher
	pipe  Processor
	pool  *worker.Pool
	clip  *monitor.Monitor
	scan  *monitor.Monitor
	area  *monitor.RegionSource
	read  monitor.ClipboardReader
	write func(string) error
	log   zerolog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	jobTimeout time.Duration

	mu              sync.Mutex
	mode            Mode
	source, target  string
	interval        time.Duration
	monitoring      bool
	busy            bool
	lastTranslation string
}

// New builds a stopped controller and renders its initial state.
func New(d Deps, s Settings) (*Controller, error) {
	if d.View == nil || d.UI == nil || d.Pipeline == nil {
		return nil, errors.New("controller: view, dispatcher and pipeline are required")
	}
	if s.Mode == "" {
		s.Mode = ModeClipboard
	}
	if s.Source == "" {
		s.Source = translate.Auto
	}
	if s.Target == "" {
		s.Target = "en"
	}
	if s.Interval == 0 {
		s.Interval = monitor.DefaultRegionInterval
	}
	if d.ClipboardInterval == 0 {
		d.ClipboardInterval = monitor.DefaultClipboardInterval
	}
	if d.JobTimeout == 0 {
		d.JobTimeout = DefaultJobTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		view:       d.View,
		ui:         d.UI,
		pipe:       d.Pipeline,
		read:       d.ReadClipboard,
		write:      d.WriteClipboard,
		log:        logutil.Component("controller"),
		ctx:        ctx,
		cancel:     cancel,
		jobTimeout: d.JobTimeout,
		mode:       s.Mode,
	}

	clipSrc := d.ClipboardSource
	if clipSrc == nil {
		clipSrc = monitor.NewClipboardSource(d.ReadClipboard)
	}
	if c.read == nil {
		c.read = func() (image.Image, bool, error) {
			img, err := clipSrc.Capture(c.ctx)
			if errors.Is(err, monitor.ErrNoImage) {
				return nil, false, nil
			}
			return img, err == nil, err
		}
	}
	c.area = monitor.NewRegionSource(d.RegionGrabber)
	c.clip = monitor.NewClipboardMonitor(c.onImage,
		monitor.WithSource(clipSrc),
		monitor.WithDetector(d.Detector),
		monitor.WithInterval(d.ClipboardInterval))
	c.scan = monitor.NewRegionMonitor(c.onImage,
		monitor.WithSource(c.area),
		monitor.WithDetector(d.Detector))

	if err := c.apply(s); err != nil {
		cancel()
		return nil, err
	}
	c.pool = worker.New(1, func(ctx context.Context, img image.Image) pipeline.Result {
		src, dst := c.Languages()
		return c.pipe.Process(ctx, img, src, dst)
	})

	c.view.SetMode(c.mode)
	c.view.SetMonitoring(false)
	c.view.ShowStatus(StatusNotMonitoring)
	c.view.ShowRegion(c.regionText())
	c.showSettings()
	return c, nil
}

func (c *Controller) apply(s Settings) error {
	if _, err := ParseMode(string(s.Mode)); err != nil {
		return err
	}
	if err := c.setLanguages(s.Source, s.Target); err != nil {
		return err
	}
	if err := c.setInterval(s.Interval); err != nil {
		return err
	}
	if s.Mode == ModeRegion && !s.Region.IsZero() {
		return c.area.SetRegion(s.Region)
	}
	return nil
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) Languages() (source, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source, c.target
}

func (c *Controller) Monitoring() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monitoring
}

// Region returns the selected region, if any.
func (c *Controller) Region() (screenshot.Region, bool) {
	return c.area.Region()
}

func (c *Controller) regionText() string {
	if r, ok := c.area.Region(); ok {
		return regionLabel(r)
	}
	return NoRegionLabel
}

// SetMode switches between clipboard and region monitoring. Switching stops
// any running monitor; switching to clipboard forgets the region.
func (c *Controller) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	c.mu.Lock()
	if c.mode == m {
		c.mu.Unlock()
		return nil
	}
	wasMonitoring := c.monitoring
	c.mu.Unlock()

	if wasMonitoring {
		c.Stop()
	}

	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
	if m == ModeClipboard {
		c.area.ClearRegion()
	}
	c.view.SetMode(m)
	c.view.ShowRegion(c.regionText())
	c.log.Info().Str("mode", string(m)).Msg("mode changed")
	return nil
}

// SetLanguages validates and stores the translation direction. It applies
// from the next processed image.
func (c *Controller) SetLanguages(source, target string) error {
	if err := c.setLanguages(source, target); err != nil {
		return err
	}
	c.showSettings()
	return nil
}

func (c *Controller) setLanguages(source, target string) error {
	if !translate.ValidSource(source) {
		return fmt.Errorf("%w: source %q", translate.ErrUnsupportedLanguage, source)
	}
	if !translate.ValidTarget(target) {
		return fmt.Errorf("%w: target %q", translate.ErrUnsupportedLanguage, target)
	}
	c.mu.Lock()
	c.source, c.target = source, target
	c.mu.Unlock()
	return nil
}

// SetInterval changes the region scan interval, live if monitoring.
func (c *Controller) SetInterval(d time.Duration) error {
	if err := c.setInterval(d); err != nil {
		return err
	}
	c.showSettings()
	return nil
}

func (c *Controller) setInterval(d time.Duration) error {
	if err := c.scan.SetInterval(d); err != nil {
		return err
	}
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
	return nil
}

func (c *Controller) showSettings() {
	c.mu.Lock()
	src, dst, d := c.source, c.target, c.interval
	c.mu.Unlock()
	c.view.ShowSettings(src, dst, d)
}

func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// SetRegion sets the watched region directly, e.g. from configuration.
func (c *Controller) SetRegion(r screenshot.Region) error {
	if c.Mode() != ModeRegion {
		return fmt.Errorf("set region: %w", ErrWrongMode)
	}
	if err := c.area.SetRegion(r); err != nil {
		return err
	}
	c.view.ShowRegion(regionLabel(r))
	return nil
}

// SelectRegion asks sel for a region. A cancelled selection leaves the
// current region unchanged.
func (c *Controller) SelectRegion(ctx context.Context, sel Selector) error {
	if c.Mode() != ModeRegion {
		return fmt.Errorf("select region: %w", ErrWrongMode)
	}
	r, cancelled, err := sel.Select(ctx)
	if err != nil {
		c.view.ShowStatus(statusError(err))
		return err
	}
	if cancelled {
		c.log.Debug().Msg("region selection cancelled")
		return nil
	}
	return c.SetRegion(r)
}

// Toggle starts monitoring when stopped and stops it when running.
func (c *Controller) Toggle() error {
	if c.Monitoring() {
		c.Stop()
		return nil
	}
	return c.Start()
}

// Start begins monitoring in the current mode. Only one monitor is ever active.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.monitoring {
		return nil
	}

	active, idle := c.clip, c.scan
	if c.mode == ModeRegion {
		active, idle = c.scan, c.clip
	}
	idle.Stop()
	if err := active.Start(); err != nil {
		if errors.Is(err, monitor.ErrNoRegion) {
			c.view.ShowStatus(StatusSelectRegion)
		} else {
			c.view.ShowStatus(statusError(err))
		}
		return err
	}

	c.monitoring = true
	c.view.SetMonitoring(true)
	c.view.ShowStatus(statusMonitoring(c.mode))
	return nil
}

// Stop halts both monitors. An in-flight image still completes and renders.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clip.Stop()
	c.scan.Stop()
	if !c.monitoring {
		return
	}
	c.monitoring = false
	c.view.SetMonitoring(false)
	c.view.ShowStatus(StatusNotMonitoring)
}

// ProcessClipboardOnce runs the pipeline on the current clipboard image in
// the background. Only one such job runs at a time.
func (c *Controller) ProcessClipboardOnce() {
	if c.Mode() != ModeClipboard {
		c.view.ShowStatus(statusError(fmt.Errorf("process clipboard: %w", ErrWrongMode)))
		return
	}
	img, ok, err := c.read()
	switch {
	case err != nil:
		c.view.ShowStatus(statusError(err))
		return
	case !ok:
		c.view.ShowStatus(StatusNoClipboardImg)
		return
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		c.view.ShowStatus(StatusBusy)
		return
	}
	c.busy = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, c.jobTimeout)
	c.view.ShowStatus(StatusProcessing)
	submitted := c.pool.Submit(ctx, img, func(res pipeline.Result, err error) {
		cancel()
		c.ui.Post(func() {
			c.mu.Lock()
			c.busy = false
			c.mu.Unlock()
			if err != nil {
				c.renderFailure(err)
				return
			}
			c.render(res, ModeClipboard)
		})
	})
	if !submitted {
		cancel()
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		c.view.ShowStatus(StatusBusy)
	}
}

// CopyTranslation puts the last translation on the clipboard.
func (c *Controller) CopyTranslation() error {
	c.mu.Lock()
	text := c.lastTranslation
	c.mu.Unlock()
	if text == "" {
		c.view.ShowStatus(StatusNothingToCopy)
		return nil
	}
	if c.write == nil {
		return errors.New("copy translation: clipboard not available")
	}
	if err := c.write(text); err != nil {
		c.view.ShowStatus(statusError(err))
		return err
	}
	c.view.ShowStatus(StatusCopied)
	return nil
}

// Shutdown stops monitoring and waits for background work to finish.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.Stop()
	c.cancel()
	for _, m := range []*monitor.Monitor{c.clip, c.scan} {
		select {
		case <-m.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.pool.Close()
	return nil
}

// onImage is the monitor callback. It runs on the monitor goroutine and
// hands all rendering to the UI context.
func (c *Controller) onImage(img image.Image) {
	mode := c.Mode()
	c.ui.Post(func() { c.view.ShowStatus(StatusProcessing) })

	res, err := c.process(img)
	c.ui.Post(func() {
		if err != nil {
			c.renderFailure(err)
			return
		}
		c.render(res, mode)
	})
}

// process turns a panic anywhere in the pipeline into an error.
func (c *Controller) process(img image.Image) (res pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("processing panicked")
			err = fmt.Errorf("%v", r)
		}
	}()
	src, dst := c.Languages()
	return c.pipe.Process(c.ctx, img, src, dst), nil
}

func (c *Controller) render(res pipeline.Result, mode Mode) {
	c.view.ShowRaw(res.Raw)
	switch res.Outcome {
	case pipeline.Processed:
		c.mu.Lock()
		c.lastTranslation = res.Translated
		c.mu.Unlock()
		c.view.ShowTranslation(res.Translated)
		c.view.ShowStatus(statusProcessed(mode))
	case pipeline.NoText:
		c.view.ShowTranslation(NoTextMessage)
		c.view.ShowStatus(StatusNoText)
	case pipeline.TranslationFailed:
		c.view.ShowTranslation(fmt.Sprintf(translationErrF, res.Err))
		c.view.ShowStatus(StatusTranslationFail)
	}
}

func (c *Controller) renderFailure(err error) {
	c.view.ShowStatus(statusError(err))
	c.view.ShowTranslation(fmt.Sprintf(errorF, err))
}

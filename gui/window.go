// Package gui is the fyne desktop front end.
package gui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"kiana/controller"
	"kiana/logutil"
	"kiana/monitor"
	"kiana/translate"
)

const (
	Title = "Kiana - Screen Region Monitor"

	labelClipboard = "Clipboard"
	labelRegion    = "Screen Region"
	labelStart     = "Start Monitoring"
	labelStop      = "Stop Monitoring"
)

// Dispatcher runs work on the fyne event goroutine.
var Dispatcher controller.Dispatcher = controller.DispatcherFunc(fyne.Do)

// Window is the main application window and implements controller.View.
type Window struct {
	app fyne.App
	win fyne.Window
	ctl *controller.Controller
	log zerolog.Logger

	mode        *widget.RadioGroup
	regionBtn   *widget.Button
	regionLabel *widget.Label
	monitorBtn  *widget.Button
	from        *widget.Select
	to          *widget.Select
	interval    *widget.Select
	status      *widget.Label
	raw         *widget.Entry
	translated  *widget.Entry
	processBtn  *widget.Button
	copyBtn     *widget.Button

	trayToggle *fyne.MenuItem
	tray       desktop.App

	// syncing is set while ShowSettings updates the selects, so their
	// OnChanged handlers do not write the values back.
	syncing bool
}

// New builds the window's widgets. Bind must be called before it is shown.
func New(a fyne.App) *Window {
	w := &Window{
		app: a,
		win: a.NewWindow(Title),
		log: logutil.Component("gui"),
	}
	w.win.Resize(fyne.NewSize(900, 700))

	w.mode = widget.NewRadioGroup([]string{labelClipboard, labelRegion}, nil)
	w.mode.Horizontal = true
	w.mode.Required = true
	w.regionBtn = widget.NewButton("Select Region", nil)
	w.regionLabel = widget.NewLabel(controller.NoRegionLabel)
	w.monitorBtn = widget.NewButton(labelStart, nil)
	w.monitorBtn.Importance = widget.HighImportance

	w.from = widget.NewSelect(translate.SourceLanguages(), nil)
	w.to = widget.NewSelect(translate.TargetLanguages(), nil)
	w.interval = widget.NewSelect(IntervalOptions(), nil)

	w.status = widget.NewLabel(controller.StatusNotMonitoring.Text)
	w.status.Importance = widget.DangerImportance

	w.raw = widget.NewMultiLineEntry()
	w.raw.Wrapping = fyne.TextWrapWord
	w.raw.SetMinRowsVisible(10)
	w.translated = widget.NewMultiLineEntry()
	w.translated.Wrapping = fyne.TextWrapWord
	w.translated.SetMinRowsVisible(10)

	w.processBtn = widget.NewButton("Process Current Clipboard", nil)
	w.copyBtn = widget.NewButton("Copy Translation", nil)

	modeFrame := widget.NewCard("", "Monitor Mode", container.NewHBox(w.mode, w.regionBtn, w.regionLabel))
	controls := container.NewHBox(
		w.monitorBtn,
		widget.NewLabel("From:"), w.from,
		widget.NewLabel("To:"), w.to,
		widget.NewLabel("Scan interval:"), w.interval, widget.NewLabel("seconds"),
	)
	texts := container.NewGridWithRows(2,
		container.NewBorder(widget.NewLabelWithStyle("Extracted Text:", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), nil, nil, nil, w.raw),
		container.NewBorder(widget.NewLabelWithStyle("Translation:", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), nil, nil, nil, w.translated),
	)
	w.win.SetContent(container.NewBorder(
		container.NewVBox(modeFrame, controls, w.status),
		container.NewCenter(container.NewHBox(w.processBtn, w.copyBtn)),
		nil, nil,
		texts,
	))
	return w
}

// Bind connects widget callbacks to c and shows the initial settings.
func (w *Window) Bind(c *controller.Controller, sel controller.Selector) {
	w.ctl = c

	src, dst := c.Languages()
	w.ShowSettings(src, dst, c.Interval())
	w.SetMode(c.Mode())

	w.mode.OnChanged = func(label string) {
		m := controller.ModeClipboard
		if label == labelRegion {
			m = controller.ModeRegion
		}
		if err := c.SetMode(m); err != nil {
			w.log.Warn().Err(err).Msg("mode change rejected")
		}
	}
	w.regionBtn.OnTapped = func() {
		go func() {
			if err := c.SelectRegion(context.Background(), sel); err != nil {
				w.log.Warn().Err(err).Msg("region selection failed")
			}
		}()
	}
	w.monitorBtn.OnTapped = func() {
		if err := c.Toggle(); err != nil {
			w.log.Info().Err(err).Msg("monitoring not started")
		}
	}
	onLang := func(string) {
		if w.syncing {
			return
		}
		if err := c.SetLanguages(w.from.Selected, w.to.Selected); err != nil {
			w.log.Warn().Err(err).Msg("language change rejected")
		}
	}
	w.from.OnChanged = onLang
	w.to.OnChanged = onLang
	w.interval.OnChanged = func(s string) {
		if w.syncing {
			return
		}
		d, err := ParseInterval(s)
		if err == nil {
			err = c.SetInterval(d)
		}
		if err != nil {
			w.log.Warn().Err(err).Msg("interval change rejected")
		}
	}
	w.processBtn.OnTapped = c.ProcessClipboardOnce
	w.copyBtn.OnTapped = func() {
		if err := c.CopyTranslation(); err != nil {
			w.log.Warn().Err(err).Msg("copy failed")
		}
	}
	w.win.SetCloseIntercept(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*monitor.MaxInterval)
		defer cancel()
		if err := c.Shutdown(ctx); err != nil {
			w.log.Warn().Err(err).Msg("shutdown")
		}
		w.app.Quit()
	})
	w.setupTray(c)
}

func (w *Window) setupTray(c *controller.Controller) {
	desk, ok := w.app.(desktop.App)
	if !ok {
		return
	}
	w.tray = desk
	w.trayToggle = fyne.NewMenuItem(labelStart, func() { _ = c.Toggle() })
	w.refreshTray()
}

func (w *Window) refreshTray() {
	w.tray.SetSystemTrayMenu(fyne.NewMenu("Kiana",
		fyne.NewMenuItem("Show", w.win.Show),
		w.trayToggle,
		fyne.NewMenuItem("Process Current Clipboard", w.ctl.ProcessClipboardOnce),
	))
}

// Window returns the underlying fyne window.
func (w *Window) Window() fyne.Window { return w.win }

func (w *Window) ShowAndRun() { w.win.ShowAndRun() }

func (w *Window) ShowRaw(text string) {
	fyne.Do(func() { w.raw.SetText(text) })
}

func (w *Window) ShowTranslation(text string) {
	fyne.Do(func() { w.translated.SetText(text) })
}

func (w *Window) ShowStatus(s controller.Status) {
	fyne.Do(func() {
		w.status.Importance = importance(s.Level)
		w.status.SetText(s.Text)
	})
}

func (w *Window) ShowRegion(label string) {
	fyne.Do(func() { w.regionLabel.SetText(label) })
}

func (w *Window) SetMonitoring(active bool) {
	fyne.Do(func() {
		label := labelStart
		if active {
			label = labelStop
		}
		w.monitorBtn.SetText(label)
		if w.trayToggle != nil {
			w.trayToggle.Label = label
			w.refreshTray()
		}
	})
}

func (w *Window) SetMode(m controller.Mode) {
	fyne.Do(func() {
		if m == controller.ModeRegion {
			w.mode.SetSelected(labelRegion)
			w.regionBtn.Enable()
			w.interval.Enable()
			w.processBtn.Disable()
			return
		}
		w.mode.SetSelected(labelClipboard)
		w.regionBtn.Disable()
		w.interval.Disable()
		w.processBtn.Enable()
	})
}

func (w *Window) ShowSettings(source, target string, interval time.Duration) {
	fyne.Do(func() {
		w.syncing = true
		defer func() { w.syncing = false }()
		if w.from.Selected != source {
			w.from.SetSelected(source)
		}
		if w.to.Selected != target {
			w.to.SetSelected(target)
		}
		if s := FormatInterval(interval); w.interval.Selected != s {
			w.interval.SetSelected(s)
		}
	})
}

func importance(l controller.Level) widget.Importance {
	switch l {
	case controller.Active:
		return widget.SuccessImportance
	case controller.Working:
		return widget.HighImportance
	case controller.Warning:
		return widget.WarningImportance
	default:
		return widget.DangerImportance
	}
}

// IntervalOptions lists the selectable scan intervals, "0.5" to "10.0".
func IntervalOptions() []string {
	var out []string
	for d := monitor.MinInterval; d <= monitor.MaxInterval; d += monitor.IntervalStep {
		out = append(out, FormatInterval(d))
	}
	return out
}

func FormatInterval(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64)
}

func ParseInterval(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("interval %q: %w", s, err)
	}
	return time.Duration(f * float64(time.Second)), nil
}

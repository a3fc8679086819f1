package gui

import (
	"context"
	"image"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"

	"kiana/controller"
	"kiana/pipeline"
	"kiana/screenshot"
)

type stubPipeline struct{}

func (stubPipeline) Process(context.Context, image.Image, string, string) pipeline.Result {
	return pipeline.Result{Outcome: pipeline.NoText}
}

func TestIntervalOptions(t *testing.T) {
	opts := IntervalOptions()
	if len(opts) != 20 {
		t.Fatalf("got %d options, want 20", len(opts))
	}
	if opts[0] != "0.5" || opts[len(opts)-1] != "10.0" {
		t.Errorf("range = %s..%s", opts[0], opts[len(opts)-1])
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"0.5", 500 * time.Millisecond, false},
		{"1.0", time.Second, false},
		{"2.5", 2500 * time.Millisecond, false},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseInterval(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if !tt.wantErr && FormatInterval(got) != tt.in {
			t.Errorf("FormatInterval(%v) = %q, want %q", got, FormatInterval(got), tt.in)
		}
	}
}

func TestViewUpdatesWidgets(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()
	w := New(a)

	w.ShowRaw("Hallo")
	w.ShowTranslation("Hello")
	w.ShowStatus(controller.StatusNoText)
	w.ShowRegion("Region: 10x10 at (0,0)")
	w.SetMonitoring(true)

	if w.raw.Text != "Hallo" || w.translated.Text != "Hello" {
		t.Errorf("texts = %q / %q", w.raw.Text, w.translated.Text)
	}
	if w.status.Text != controller.StatusNoText.Text {
		t.Errorf("status = %q", w.status.Text)
	}
	if w.regionLabel.Text != "Region: 10x10 at (0,0)" {
		t.Errorf("region = %q", w.regionLabel.Text)
	}
	if w.monitorBtn.Text != labelStop {
		t.Errorf("monitor button = %q", w.monitorBtn.Text)
	}

	w.SetMode(controller.ModeRegion)
	if w.processBtn.Disabled() == false || w.regionBtn.Disabled() {
		t.Error("region mode should disable processing and enable selection")
	}
	w.SetMode(controller.ModeClipboard)
	if w.processBtn.Disabled() || !w.regionBtn.Disabled() {
		t.Error("clipboard mode should enable processing and disable selection")
	}
}

func TestBindStartWithoutRegion(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()
	w := New(a)

	c, err := controller.New(controller.Deps{
		View:          w,
		UI:            Dispatcher,
		Pipeline:      stubPipeline{},
		ReadClipboard: func() (image.Image, bool, error) { return nil, false, nil },
		RegionGrabber: func(screenshot.Region) (*image.RGBA, error) { return nil, nil },
	}, controller.Settings{Mode: controller.ModeRegion, Source: "de", Target: "en"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown(context.Background())
	w.Bind(c, NoSelector{})

	if w.from.Selected != "de" || w.to.Selected != "en" {
		t.Errorf("languages = %s -> %s", w.from.Selected, w.to.Selected)
	}
	if w.mode.Selected != labelRegion {
		t.Errorf("mode = %q", w.mode.Selected)
	}

	test.Tap(w.monitorBtn)
	if w.status.Text != controller.StatusSelectRegion.Text {
		t.Errorf("status = %q, want %q", w.status.Text, controller.StatusSelectRegion.Text)
	}
	if c.Monitoring() {
		t.Error("monitoring started without a region")
	}

	w.mode.SetSelected(labelClipboard)
	if c.Mode() != controller.ModeClipboard {
		t.Errorf("controller mode = %s", c.Mode())
	}
	test.Tap(w.processBtn)
	if w.status.Text != controller.StatusNoClipboardImg.Text {
		t.Errorf("status = %q", w.status.Text)
	}
}

func TestSettingsStayInSync(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()
	w := New(a)

	c, err := controller.New(controller.Deps{
		View:          w,
		UI:            Dispatcher,
		Pipeline:      stubPipeline{},
		ReadClipboard: func() (image.Image, bool, error) { return nil, false, nil },
		RegionGrabber: func(screenshot.Region) (*image.RGBA, error) { return nil, nil },
	}, controller.Settings{Mode: controller.ModeRegion, Source: "de", Target: "en"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown(context.Background())
	w.Bind(c, NoSelector{})

	// Changes made elsewhere, e.g. over the HTTP API, reach the selects
	// without being written back half-applied.
	if err := c.SetLanguages("ja", "fr"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetInterval(2500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if w.from.Selected != "ja" || w.to.Selected != "fr" || w.interval.Selected != "2.5" {
		t.Errorf("selects = %s -> %s every %s", w.from.Selected, w.to.Selected, w.interval.Selected)
	}
	if src, dst := c.Languages(); src != "ja" || dst != "fr" {
		t.Errorf("controller languages = %s -> %s", src, dst)
	}

	// Changes made in the window reach the controller.
	w.to.SetSelected("ko")
	w.interval.SetSelected("4.0")
	if _, dst := c.Languages(); dst != "ko" {
		t.Errorf("controller target = %s, want ko", dst)
	}
	if c.Interval() != 4*time.Second {
		t.Errorf("controller interval = %v", c.Interval())
	}
}

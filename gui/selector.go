package gui

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"kiana/screenshot"
)

// Selector picks a screen region by dragging over a frozen screenshot of the
// primary display. It falls back to a coordinate form when the screen cannot
// be captured.
type Selector struct {
	app    fyne.App
	parent fyne.Window
}

func NewSelector(a fyne.App, parent fyne.Window) *Selector {
	return &Selector{app: a, parent: parent}
}

type selection struct {
	region    screenshot.Region
	cancelled bool
	err       error
}

// Select blocks until the user finishes or cancels. It must not be called
// from the fyne event goroutine.
func (s *Selector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	done := make(chan selection, 1)
	var once sync.Once
	finish := func(sel selection) { once.Do(func() { done <- sel }) }

	bounds, err := screenshot.DisplayBounds()
	var shot *image.RGBA
	if err == nil {
		shot, err = screenshot.CaptureRegion(screenshot.Region{
			X1: bounds.Min.X, Y1: bounds.Min.Y, X2: bounds.Max.X, Y2: bounds.Max.Y,
		})
	}

	var overlay fyne.Window
	fyne.Do(func() {
		if err != nil {
			s.showForm(finish)
			return
		}
		s.parent.Hide()
		overlay = s.app.NewWindow("Select Region")
		overlay.SetPadded(false)
		overlay.SetFullScreen(true)
		overlay.SetContent(newDragArea(shot, bounds, func(r screenshot.Region, ok bool) {
			finish(selection{region: r, cancelled: !ok})
		}))
		overlay.Canvas().SetOnTypedKey(func(k *fyne.KeyEvent) {
			if k.Name == fyne.KeyEscape {
				finish(selection{cancelled: true})
			}
		})
		overlay.SetOnClosed(func() { finish(selection{cancelled: true}) })
		overlay.Show()
	})

	var sel selection
	select {
	case sel = <-done:
	case <-ctx.Done():
		sel = selection{cancelled: true, err: ctx.Err()}
	}

	fyne.Do(func() {
		if overlay != nil {
			overlay.SetOnClosed(nil)
			overlay.Close()
			s.parent.Show()
		}
	})
	return sel.region, sel.cancelled, sel.err
}

// showForm asks for "x1,y1,x2,y2" in a dialog over the main window.
func (s *Selector) showForm(finish func(selection)) {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("x1,y1,x2,y2")
	entry.Validator = func(text string) error {
		_, err := screenshot.ParseRegion(text)
		return err
	}
	form := dialog.NewForm("Select Region", "Use", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Corners", entry)},
		func(ok bool) {
			if !ok {
				finish(selection{cancelled: true})
				return
			}
			r, err := screenshot.ParseRegion(strings.TrimSpace(entry.Text))
			finish(selection{region: r, err: err})
		}, s.parent)
	form.Resize(fyne.NewSize(360, 160))
	form.Show()
}

// dragArea shows the captured screen and draws the rubber-band rectangle.
type dragArea struct {
	widget.BaseWidget

	bounds image.Rectangle
	bg     *canvas.Image
	band   *canvas.Rectangle
	done   func(screenshot.Region, bool)

	dragging   bool
	start, end fyne.Position
}

var _ fyne.Draggable = (*dragArea)(nil)

func newDragArea(shot image.Image, bounds image.Rectangle, done func(screenshot.Region, bool)) *dragArea {
	d := &dragArea{bounds: bounds, done: done}
	d.bg = canvas.NewImageFromImage(shot)
	d.bg.FillMode = canvas.ImageFillStretch
	d.band = canvas.NewRectangle(color.NRGBA{R: 0x33, G: 0x99, B: 0xff, A: 0x40})
	d.band.StrokeColor = color.NRGBA{R: 0x33, G: 0x99, B: 0xff, A: 0xff}
	d.band.StrokeWidth = 2
	d.band.Hide()
	d.ExtendBaseWidget(d)
	return d
}

func (d *dragArea) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewStack(d.bg, container.NewWithoutLayout(d.band)))
}

func (d *dragArea) Dragged(e *fyne.DragEvent) {
	if !d.dragging {
		d.dragging = true
		d.start = fyne.NewPos(e.Position.X-e.Dragged.DX, e.Position.Y-e.Dragged.DY)
	}
	d.end = e.Position
	minX, minY := min(d.start.X, d.end.X), min(d.start.Y, d.end.Y)
	d.band.Move(fyne.NewPos(minX, minY))
	d.band.Resize(fyne.NewSize(max(d.start.X, d.end.X)-minX, max(d.start.Y, d.end.Y)-minY))
	d.band.Show()
	d.band.Refresh()
}

func (d *dragArea) DragEnd() {
	d.dragging = false
	d.band.Hide()
	r, ok := screenshot.FromDrag(d.toScreen(d.start), d.toScreen(d.end))
	d.done(r, ok)
}

// toScreen maps a widget position onto display pixels.
func (d *dragArea) toScreen(p fyne.Position) image.Point {
	size := d.Size()
	if size.Width == 0 || size.Height == 0 {
		return d.bounds.Min
	}
	sx := float32(d.bounds.Dx()) / size.Width
	sy := float32(d.bounds.Dy()) / size.Height
	return image.Pt(d.bounds.Min.X+int(p.X*sx), d.bounds.Min.Y+int(p.Y*sy))
}

var errNoSelector = errors.New("region selection unavailable")

// NoSelector is used when no display is available, e.g. in headless mode.
type NoSelector struct{}

func (NoSelector) Select(context.Context) (screenshot.Region, bool, error) {
	return screenshot.Region{}, false, errNoSelector
}

package screenshot

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/kbinani/screenshot"
)

// MinSelectionSpan is the smallest width/height accepted from a drag selection.
const MinSelectionSpan = 10

var ErrInvalidRegion = errors.New("invalid region")

// Region is a rectangle in screen coordinates, (X1,Y1) top-left and (X2,Y2) bottom-right.
type Region struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// NewRegion builds a validated region.
func NewRegion(x1, y1, x2, y2 int) (Region, error) {
	r := Region{X1: x1, Y1: y1, X2: x2, Y2: y2}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks that the corners describe a non-empty rectangle.
func (r Region) Validate() error {
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return fmt.Errorf("%w: (%d,%d)-(%d,%d)", ErrInvalidRegion, r.X1, r.Y1, r.X2, r.Y2)
	}
	return nil
}

func (r Region) IsZero() bool { return r == Region{} }

func (r Region) Width() int  { return r.X2 - r.X1 }
func (r Region) Height() int { return r.Y2 - r.Y1 }

func (r Region) Rect() image.Rectangle { return image.Rect(r.X1, r.Y1, r.X2, r.Y2) }

// String renders the label shown next to the region button, e.g. "300x200 at (10,20)".
func (r Region) String() string {
	return fmt.Sprintf("%dx%d at (%d,%d)", r.Width(), r.Height(), r.X1, r.Y1)
}

// ParseRegion accepts "x1,y1,x2,y2" (spaces allowed).
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("%w: expected x1,y1,x2,y2, got %q", ErrInvalidRegion, s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("%w: %q: %v", ErrInvalidRegion, s, err)
		}
		v[i] = n
	}
	return NewRegion(v[0], v[1], v[2], v[3])
}

// FromDrag normalises a drag gesture into a region. Selections with a side
// of MinSelectionSpan pixels or less are rejected.
func FromDrag(start, end image.Point) (Region, bool) {
	r := Region{
		X1: min(start.X, end.X),
		Y1: min(start.Y, end.Y),
		X2: max(start.X, end.X),
		Y2: max(start.Y, end.Y),
	}
	if r.Width() <= MinSelectionSpan || r.Height() <= MinSelectionSpan {
		return Region{}, false
	}
	return r, true
}

// CaptureRegion grabs the pixels inside region.
func CaptureRegion(region Region) (*image.RGBA, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %s: %w", region, err)
	}
	return img, nil
}

// DisplayBounds returns the bounds of the primary display
func DisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return screenshot.GetDisplayBounds(0), nil
}

package monitor

import (
	"context"
	"image"
	"sync"

	"kiana/clipboard"
	"kiana/screenshot"
)

// Source captures the current image of whatever it watches.
// Capture returns ErrNoImage when there is simply nothing to process.
type Source interface {
	Name() string
	Capture(ctx context.Context) (image.Image, error)
}

// readier is implemented by sources that need configuration before polling.
type readier interface {
	Ready() error
}

// ClipboardReader reads the clipboard; ok=false means it holds no image.
type ClipboardReader func() (img image.Image, ok bool, err error)

// ClipboardSource polls the system clipboard for image content.
type ClipboardSource struct {
	read ClipboardReader
}

// NewClipboardSource uses read, or the system clipboard when read is nil.
func NewClipboardSource(read ClipboardReader) *ClipboardSource {
	if read == nil {
		read = clipboard.ReadImage
	}
	return &ClipboardSource{read: read}
}

func (s *ClipboardSource) Name() string { return "clipboard" }

func (s *ClipboardSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, ok, err := s.read()
	if err != nil {
		return nil, &CaptureError{Source: s.Name(), Err: err}
	}
	if !ok || img == nil {
		return nil, ErrNoImage
	}
	return img, nil
}

// Grabber takes a screenshot of a region.
type Grabber func(region screenshot.Region) (*image.RGBA, error)

// RegionSource screenshots a fixed rectangle of the screen.
type RegionSource struct {
	grab Grabber

	mu     sync.RWMutex
	region screenshot.Region
	set    bool
}

// NewRegionSource uses grab, or the platform screenshot facility when grab is nil.
func NewRegionSource(grab Grabber) *RegionSource {
	if grab == nil {
		grab = screenshot.CaptureRegion
	}
	return &RegionSource{grab: grab}
}

func (s *RegionSource) Name() string { return "region" }

// SetRegion replaces the watched rectangle.
func (s *RegionSource) SetRegion(r screenshot.Region) error {
	if err := r.Validate(); err != nil {
		return &ConfigurationError{Field: "region", Err: err}
	}
	s.mu.Lock()
	s.region, s.set = r, true
	s.mu.Unlock()
	return nil
}

// ClearRegion forgets the configured rectangle.
func (s *RegionSource) ClearRegion() {
	s.mu.Lock()
	s.region, s.set = screenshot.Region{}, false
	s.mu.Unlock()
}

// Region returns the configured rectangle, if any.
func (s *RegionSource) Region() (screenshot.Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.region, s.set
}

func (s *RegionSource) Ready() error {
	if _, ok := s.Region(); !ok {
		return &ConfigurationError{Field: "region", Err: ErrNoRegion}
	}
	return nil
}

func (s *RegionSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	region, ok := s.Region()
	if !ok {
		return nil, &CaptureError{Source: s.Name(), Err: ErrNoRegion}
	}
	img, err := s.grab(region)
	if err != nil {
		return nil, &CaptureError{Source: s.Name(), Err: err}
	}
	return img, nil
}

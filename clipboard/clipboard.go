package clipboard

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"golang.design/x/clipboard"
)

var (
	writeMu sync.Mutex
)

func Init() error {
	return clipboard.Init()
}

// ReadImage returns the image currently on the clipboard. ok is false, with a
// nil error, when the clipboard holds anything other than an image.
func ReadImage() (img image.Image, ok bool, err error) {
	data := clipboard.Read(clipboard.FmtImage)
	if len(data) == 0 {
		return nil, false, nil
	}
	img, err = png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode clipboard image (%d bytes): %w", len(data), err)
	}
	return img, true, nil
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

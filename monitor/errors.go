package monitor

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImage reports that a source had nothing image-like to offer this poll.
	ErrNoImage = errors.New("no image available")
	// ErrNoRegion is wrapped by the ConfigurationError a region monitor returns from Start.
	ErrNoRegion = errors.New("region not set")
)

// ConfigurationError is returned synchronously by Start when required configuration is missing.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("monitor configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// CaptureError is a transient, per-poll failure of an image source.
type CaptureError struct {
	Source string
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s capture failed: %v", e.Source, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

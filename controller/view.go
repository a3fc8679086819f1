package controller

import (
	"context"
	"fmt"
	"time"

	"kiana/screenshot"
)

// Level colours a status line.
type Level int

const (
	Idle    Level = iota // red
	Active               // green
	Working              // blue
	Warning              // orange
	Failure              // red
)

func (l Level) String() string {
	switch l {
	case Active:
		return "active"
	case Working:
		return "working"
	case Warning:
		return "warning"
	case Failure:
		return "failure"
	default:
		return "idle"
	}
}

type Status struct {
	Text  string
	Level Level
}

func (s Status) String() string { return s.Text }

var (
	StatusNotMonitoring   = Status{"Status: Not monitoring", Idle}
	StatusSelectRegion    = Status{"Status: Please select a region first", Warning}
	StatusProcessing      = Status{"Status: Processing image...", Working}
	StatusNoText          = Status{"Status: No text found", Warning}
	StatusTranslationFail = Status{"Status: Translation failed", Warning}
	StatusNoClipboardImg  = Status{"Status: No image found in clipboard", Warning}
	StatusBusy            = Status{"Status: Busy, please retry", Warning}
	StatusCopied          = Status{"Status: Translation copied to clipboard", Active}
	StatusNothingToCopy   = Status{"Status: Nothing to copy", Warning}
)

func statusMonitoring(mode Mode) Status {
	return Status{fmt.Sprintf("Status: Monitoring %s...", mode), Active}
}

func statusProcessed(mode Mode) Status {
	return Status{fmt.Sprintf("Status: Processed successfully from %s", mode), Active}
}

func statusError(err error) Status {
	return Status{fmt.Sprintf("Status: Error - %v", err), Failure}
}

const (
	NoRegionLabel   = "No region selected"
	NoTextMessage   = "No text detected in image"
	translationErrF = "Translation error: %v"
	errorF          = "Error: %v"
)

func regionLabel(r screenshot.Region) string {
	return "Region: " + r.String()
}

// View renders controller state. Every method is called on the UI context.
type View interface {
	ShowRaw(text string)
	ShowTranslation(text string)
	ShowStatus(s Status)
	ShowRegion(label string)
	SetMonitoring(active bool)
	SetMode(m Mode)
	// ShowSettings reflects the current translation direction and scan interval.
	ShowSettings(source, target string, interval time.Duration)
}

// Dispatcher runs fn on the UI context.
type Dispatcher interface {
	Post(fn func())
}

// DispatcherFunc adapts a function such as fyne.Do.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Post(fn func()) { f(fn) }

// Selector lets the user pick a screen region. cancelled reports that the
// user dismissed the selection.
type Selector interface {
	Select(ctx context.Context) (region screenshot.Region, cancelled bool, err error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context) (screenshot.Region, bool, error)

func (f SelectorFunc) Select(ctx context.Context) (screenshot.Region, bool, error) { return f(ctx) }

// Views fans every call out to vs in order.
func Views(vs ...View) View { return multiView(vs) }

type multiView []View

func (m multiView) ShowRaw(text string) {
	for _, v := range m {
		v.ShowRaw(text)
	}
}

func (m multiView) ShowTranslation(text string) {
	for _, v := range m {
		v.ShowTranslation(text)
	}
}

func (m multiView) ShowStatus(s Status) {
	for _, v := range m {
		v.ShowStatus(s)
	}
}

func (m multiView) ShowRegion(label string) {
	for _, v := range m {
		v.ShowRegion(label)
	}
}

func (m multiView) SetMonitoring(active bool) {
	for _, v := range m {
		v.SetMonitoring(active)
	}
}

func (m multiView) SetMode(mode Mode) {
	for _, v := range m {
		v.SetMode(mode)
	}
}

func (m multiView) ShowSettings(source, target string, interval time.Duration) {
	for _, v := range m {
		v.ShowSettings(source, target, interval)
	}
}

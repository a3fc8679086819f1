// Package console renders controller state as plain text lines for headless use.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"kiana/controller"
)

// View implements controller.View by printing to an io.Writer. Repeated
// statuses are collapsed so a running monitor does not flood the terminal.
type View struct {
	mu           sync.Mutex
	out          io.Writer
	lastStatus   string
	lastSettings string
}

func New(out io.Writer) *View {
	return &View{out: out}
}

func (v *View) ShowRaw(text string) {
	v.block("Extracted Text", text)
}

func (v *View) ShowTranslation(text string) {
	v.block("Translation", text)
}

func (v *View) ShowStatus(s controller.Status) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s.Text == v.lastStatus {
		return
	}
	v.lastStatus = s.Text
	fmt.Fprintf(v.out, "[%s] %s\n", s.Level, s.Text)
}

func (v *View) ShowRegion(label string) {
	v.line(label)
}

func (v *View) SetMonitoring(active bool) {
	if active {
		v.line("Monitoring started")
		return
	}
	v.line("Monitoring stopped")
}

func (v *View) SetMode(m controller.Mode) {
	v.line("Mode: " + string(m))
}

func (v *View) ShowSettings(source, target string, interval time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := fmt.Sprintf("Translating %s -> %s, scan interval %.1fs", source, target, interval.Seconds())
	if s == v.lastSettings {
		return
	}
	v.lastSettings = s
	fmt.Fprintln(v.out, s)
}

func (v *View) line(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, s)
}

func (v *View) block(title, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "--- %s ---\n%s\n", title, strings.TrimRight(text, "\n"))
}

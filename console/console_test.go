package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"kiana/controller"
)

func TestViewOutput(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf)

	v.SetMode(controller.ModeRegion)
	v.ShowRegion("Region: 100x50 at (10,20)")
	v.SetMonitoring(true)
	v.ShowRaw("Hallo Welt\n")
	v.ShowTranslation("Hello world")

	want := []string{
		"Mode: region",
		"Region: 100x50 at (10,20)",
		"Monitoring started",
		"--- Extracted Text ---",
		"Hallo Welt",
		"--- Translation ---",
		"Hello world",
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(got), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestViewCollapsesRepeatedStatus(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf)

	v.ShowStatus(controller.StatusProcessing)
	v.ShowStatus(controller.StatusProcessing)
	v.ShowStatus(controller.StatusNoText)
	v.ShowStatus(controller.StatusProcessing)

	if n := strings.Count(buf.String(), controller.StatusProcessing.Text); n != 2 {
		t.Errorf("processing printed %d times, want 2:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "[warning] "+controller.StatusNoText.Text) {
		t.Errorf("missing level prefix:\n%s", buf.String())
	}
}

func TestViewPrintsSettingsOnChange(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf)

	v.ShowSettings("auto", "en", time.Second)
	v.ShowSettings("auto", "en", time.Second)
	v.ShowSettings("de", "en", 2500*time.Millisecond)

	want := "Translating auto -> en, scan interval 1.0s\nTranslating de -> en, scan interval 2.5s\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

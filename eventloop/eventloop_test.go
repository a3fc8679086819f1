package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunExecutesInOrder(t *testing.T) {
	l := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		l.Post(func() { got = append(got, i) })
	}
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not run")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task order %v", got)
		}
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	l := New(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	done := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop stopped after panic")
	}
}

func TestStartHotkeyEmptyComboIsNoop(t *testing.T) {
	if err := New(1).StartHotkey("", func() {}); err != nil {
		t.Fatalf("StartHotkey: %v", err)
	}
}

package load

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
	"github.com/dshills/meshview/internal/log"
)

func TestWatcher_ReloadOnWrite(t *testing.T) {
	bus := event.NewBus()

	requested := make(chan string, 4)
	bus.SubscribeFunc(events.TopicLoadRequested, func(ctx context.Context, env event.Envelope) error {
		requested <- env.Payload.(events.LoadRequested).Resource
		return nil
	})

	w, err := NewWatcher(bus, log.Discard())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "duck.gltf")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"scenes":[]}`), 0o644); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	select {
	case got := <-requested:
		want, _ := filepath.Abs(path)
		if got != want {
			t.Errorf("reload requested %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload request after file write")
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	bus := event.NewBus()

	requested := make(chan string, 4)
	bus.SubscribeFunc(events.TopicLoadRequested, func(ctx context.Context, env event.Envelope) error {
		requested <- env.Payload.(events.LoadRequested).Resource
		return nil
	})

	w, err := NewWatcher(bus, log.Discard())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "duck.gltf")
	os.WriteFile(path, []byte("{}"), 0o644)
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "other.gltf"), []byte("{}"), 0o644)

	select {
	case got := <-requested:
		t.Errorf("unexpected reload request for %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

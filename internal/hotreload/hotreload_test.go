package hotreload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewManager(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	defer m.watcher.watcher.Close()

	if m.watcher == nil || m.coordinator == nil || m.broadcaster == nil {
		t.Fatal("Manager components not initialized")
	}
	if m.IsRunning() {
		t.Error("Manager should not be running initially")
	}
}

func TestManager_StartStop(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("Manager should be running after Start()")
	}

	// Starting twice is a no-op.
	if err := m.Start(); err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if m.IsRunning() {
		t.Fatal("Manager should not be running after Shutdown()")
	}
}

func TestManager_ReloadsOnFileChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file system integration test in short mode")
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "index.html")
	if err := os.WriteFile(file, []byte("v1"), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	m, err := NewManager(nil)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	m.SetDebounceTime(20 * time.Millisecond)

	reloadable := &mockReloadable{name: "views"}
	if err := m.RegisterReloadable(reloadable); err != nil {
		t.Fatalf("RegisterReloadable() failed: %v", err)
	}

	notified := make(chan []Result, 1)
	if err := m.AddListener("test", func(ctx context.Context, results []Result) error {
		select {
		case notified <- results:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("AddListener() failed: %v", err)
	}

	if err := m.AddWatch(dir); err != nil {
		t.Fatalf("AddWatch() failed: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer m.Stop()

	if err := os.WriteFile(file, []byte("v2"), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	select {
	case results := <-notified:
		if len(results) != 1 || results[0].Component != "views" || results[0].Err != nil {
			t.Errorf("Unexpected reload results: %+v", results)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for reload notification")
	}

	if reloadable.GetReloadCount() < 1 {
		t.Error("Expected the component to be reloaded")
	}
}

func TestManager_ListenerManagement(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	defer m.watcher.watcher.Close()

	var calls atomic.Int32
	listener := func(ctx context.Context, results []Result) error {
		calls.Add(1)
		return nil
	}

	if err := m.AddListener("one", listener); err != nil {
		t.Fatalf("AddListener() failed: %v", err)
	}
	if err := m.AddListener("one", listener); err == nil {
		t.Fatal("Expected duplicate listener error")
	}

	m.RemoveListener("one")
	if m.broadcaster.HasListener("one") {
		t.Error("Listener should be removed")
	}

	if err := m.RemoveWatch(t.TempDir()); err == nil {
		t.Error("Expected error removing a path that is not watched")
	}
}

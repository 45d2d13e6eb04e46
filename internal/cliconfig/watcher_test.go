package cliconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/canlabs/canmon/pkg/log"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`filter = "123"`), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan FileConfig, 4)
	w := NewWatcher(path, log.NewNoopLogger(), func(fc FileConfig) {
		reloaded <- fc
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watch time to establish before touching the file.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`filter = "456,7FF"`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case fc := <-reloaded:
		if fc.Filter != "456,7FF" {
			t.Errorf("reloaded filter = %q, want 456,7FF", fc.Filter)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`filter = "123"`), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan FileConfig, 4)
	w := NewWatcher(path, log.NewNoopLogger(), func(fc FileConfig) {
		reloaded <- fc
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Error("reload triggered by unrelated file")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_EmptyPath(t *testing.T) {
	w := NewWatcher("", log.NewNoopLogger(), func(FileConfig) {
		t.Error("unexpected reload")
	})

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for empty path")
	}
}

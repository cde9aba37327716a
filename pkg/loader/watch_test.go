package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BUILD")
	if err := os.WriteFile(path, []byte(`filegroup(name = "a")`), 0644); err != nil {
		t.Fatalf("write build file: %v", err)
	}

	l, err := NewLoader(zerolog.Nop(), Options{})
	if err != nil {
		t.Fatalf("NewLoader() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *File, 4)
	err = l.Watch(ctx, "pkg", path, func(file *File, err error) {
		if err == nil {
			results <- file
		}
	})
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	// Give the watcher a moment, then rewrite the file.
	time.Sleep(100 * time.Millisecond)
	src := `
filegroup(name = "a")
filegroup(name = "b")
`
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("rewrite build file: %v", err)
	}

	select {
	case file := <-results:
		if len(file.Rules) != 2 {
			t.Errorf("reloaded file has %d rules, want 2", len(file.Rules))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("reload never fired")
	}
}

func TestWatchMissingFile(t *testing.T) {
	l, err := NewLoader(zerolog.Nop(), Options{})
	if err != nil {
		t.Fatalf("NewLoader() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = l.Watch(ctx, "pkg", filepath.Join(t.TempDir(), "missing", "BUILD"), func(*File, error) {})
	if err == nil {
		t.Fatal("Watch() accepted a nonexistent path")
	}
}

package watcher

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// collector gathers callback invocations.
type collector struct {
	mu    sync.Mutex
	calls [][]string
	ch    chan []string
}

func newCollector() *collector {
	return &collector{ch: make(chan []string, 16)}
}

func (c *collector) onLinks(links []string) {
	c.mu.Lock()
	c.calls = append(c.calls, links)
	c.mu.Unlock()
	c.ch <- links
}

func (c *collector) next(t *testing.T) []string {
	t.Helper()
	select {
	case links := <-c.ch:
		return links
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for links")
		return nil
	}
}

func writeLinks(t *testing.T, path string, links ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(links, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("failed to write links file: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", func([]string) {}); err == nil {
		t.Error("New() with empty path expected error")
	}
	if _, err := New("links.txt", nil); err == nil {
		t.Error("New() with nil callback expected error")
	}

	w, err := New("links.txt", func([]string) {})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !filepath.IsAbs(w.path) {
		t.Errorf("path %q should be absolute", w.path)
	}
}

func TestReload_ReportsOnlyNewLinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.txt")
	c := newCollector()
	w, err := New(path, c.onLinks)
	if err != nil {
		t.Fatal(err)
	}

	// Missing file is an empty set.
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(c.calls) != 0 {
		t.Errorf("missing file produced calls: %v", c.calls)
	}

	writeLinks(t, path, "# core packages", "https://h/a.git", "https://h/b.git#v1", "https://h/a.git")
	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := c.next(t); !reflect.DeepEqual(got, []string{"https://h/a.git", "https://h/b.git#v1"}) {
		t.Errorf("first load = %v", got)
	}

	// Unchanged file reports nothing.
	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}
	if len(c.calls) != 1 {
		t.Errorf("unchanged reload produced %d calls, want 1", len(c.calls))
	}

	writeLinks(t, path, "https://h/b.git#v1", "https://h/c.git")
	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := c.next(t); !reflect.DeepEqual(got, []string{"https://h/c.git"}) {
		t.Errorf("second load = %v", got)
	}

	// A link dropped and added back is reported again.
	writeLinks(t, path, "https://h/a.git", "https://h/b.git#v1", "https://h/c.git")
	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := c.next(t); !reflect.DeepEqual(got, []string{"https://h/a.git"}) {
		t.Errorf("third load = %v", got)
	}
}

func TestStart_PicksUpWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.txt")
	writeLinks(t, path, "https://h/a.git")

	c := newCollector()
	w, err := New(path, c.onLinks)
	if err != nil {
		t.Fatal(err)
	}
	w.SetDebounce(100 * time.Millisecond)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if got := c.next(t); !reflect.DeepEqual(got, []string{"https://h/a.git"}) {
		t.Errorf("initial load = %v", got)
	}

	writeLinks(t, path, "https://h/a.git", "https://h/b.git")
	if got := c.next(t); !reflect.DeepEqual(got, []string{"https://h/b.git"}) {
		t.Errorf("after write = %v", got)
	}
}

func TestStart_PicksUpRenameIntoPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "links.txt")

	c := newCollector()
	w, err := New(path, c.onLinks)
	if err != nil {
		t.Fatal(err)
	}
	w.SetDebounce(100 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	tmp := filepath.Join(dir, ".links.txt.swp")
	writeLinks(t, tmp, "https://h/z.git")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	if got := c.next(t); !reflect.DeepEqual(got, []string{"https://h/z.git"}) {
		t.Errorf("after rename = %v", got)
	}
}

func TestStart_MissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "links.txt"), func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err == nil {
		w.Stop()
		t.Error("Start() should fail when the directory does not exist")
	}
}

func TestStop_Idempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "links.txt"), func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

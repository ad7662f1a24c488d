package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

type reloadEvent struct {
	path string
	tree *spec.ProcSpec
	err  error
}

func startWatcher(t *testing.T, dir string) (string, chan reloadEvent) {
	t.Helper()

	path := filepath.Join(dir, "proc.json")
	if err := os.WriteFile(path, canonicalDoc(t, spec.NewProcSpec("na+sm")), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	watcher := NewWatcher(NewLoader(zerolog.Nop()), zerolog.Nop())
	watcher.debounce = 50 * time.Millisecond

	events := make(chan reloadEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	err := watcher.Watch(ctx, []string{dir}, func(path string, tree *spec.ProcSpec, err error) {
		events <- reloadEvent{path: path, tree: tree, err: err}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	return path, events
}

func awaitReload(t *testing.T, events chan reloadEvent) reloadEvent {
	t.Helper()

	select {
	case got := <-events:
		return got
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
		return reloadEvent{}
	}
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path, events := startWatcher(t, dir)

	if err := os.WriteFile(path, canonicalDoc(t, spec.NewProcSpec("ofi+tcp")), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got := awaitReload(t, events)
	if got.err != nil {
		t.Fatalf("reload error = %v", got.err)
	}
	if got.path != path {
		t.Errorf("reload path = %q, want %q", got.path, path)
	}
	if got.tree == nil {
		t.Fatal("reload tree is nil")
	}
	if addr := got.tree.Margo().Mercury.Address; addr != "ofi+tcp" {
		t.Errorf("reloaded address = %q, want %q", addr, "ofi+tcp")
	}
}

func TestWatcher_ReloadError(t *testing.T) {
	dir := t.TempDir()
	path, events := startWatcher(t, dir)

	if err := os.WriteFile(path, []byte(`{"margo": {}}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got := awaitReload(t, events)
	if got.err == nil {
		t.Fatal("expected a reload error for an invalid descriptor")
	}
	if got.tree != nil {
		t.Errorf("reload tree = %v, want nil", got.tree)
	}
	if got.path != path {
		t.Errorf("reload path = %q, want %q", got.path, path)
	}
}

func TestWatcher_CreateTriggersReload(t *testing.T) {
	dir := t.TempDir()
	_, events := startWatcher(t, dir)

	created := filepath.Join(dir, "extra.json")
	if err := os.WriteFile(created, canonicalDoc(t, spec.NewProcSpec("na+sm")), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got := awaitReload(t, events)
	if got.err != nil {
		t.Fatalf("reload error = %v", got.err)
	}
	if got.path != created {
		t.Errorf("reload path = %q, want %q", got.path, created)
	}
}

func TestIsDescriptorFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"proc.json", true},
		{"proc.yaml", true},
		{"proc.yml", true},
		{"proc.cue", true},
		{"PROC.JSON", true},
		{"proc.txt", false},
		{"proc", false},
	}

	for _, tt := range tests {
		if got := isDescriptorFile(tt.path); got != tt.want {
			t.Errorf("isDescriptorFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

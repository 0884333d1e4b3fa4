package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/testutil"
)

// watcherTestEnv sets up a notebook dir and a bootstrapped notebook over it.
func watcherTestEnv(t *testing.T) (string, *notebook.Notebook) {
	t.Helper()
	return testutil.TestNotebook(t, nil)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, dir string, nb *notebook.Notebook, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Watch(ctx, nb, dir, notebook.DefaultIgnoreDirs, testLogger(), cb)
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_NewFileLoaded(t *testing.T) {
	dir, nb := watcherTestEnv(t)

	var mu sync.Mutex
	var events []string
	startWatch(t, dir, nb, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	_ = os.WriteFile(filepath.Join(dir, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return nb.HasNote("new.md")
	}, "new file not loaded by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.md" {
				return true
			}
		}
		return false
	}, "expected created:new.md callback")
}

func TestWatcher_WriteUpdatesBacklinks(t *testing.T) {
	dir, nb := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "B.md"), []byte("b"), 0o644)
	if err := nb.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}

	startWatch(t, dir, nb, nil)

	_ = os.WriteFile(filepath.Join(dir, "A.md"), []byte("See [[B]]."), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return len(nb.GetReferences("B.md", "A.md")) == 1
	}, "backlink from A.md not recorded")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, nb := watcherTestEnv(t)
	startWatch(t, dir, nb, nil)

	subDir := filepath.Join(dir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return nb.HasNote("subdir/deep.md")
	}, "file in new subdir not loaded by watcher")
}

func TestWatcher_DeleteForgetsNote(t *testing.T) {
	dir, nb := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "del.md"), []byte("# Delete Me"), 0o644)
	if err := nb.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !nb.HasNote("del.md") {
		t.Fatal("precondition: note should be loaded")
	}

	startWatch(t, dir, nb, nil)

	_ = os.Remove(filepath.Join(dir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !nb.HasNote("del.md")
	}, "deleted file still in notebook")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, nb := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "old.md"), []byte("# Rename"), 0o644)
	if err := nb.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}

	startWatch(t, dir, nb, nil)

	_ = os.Rename(filepath.Join(dir, "old.md"), filepath.Join(dir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !nb.HasNote("old.md") && nb.HasNote("renamed.md")
	}, "rename reconciliation failed: old path should be removed and new path loaded")
}

func TestRelPath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "nb")
	if rel, ok := relPath(root, filepath.Join(root, "a", "b.md")); !ok || rel != "a/b.md" {
		t.Errorf("relPath = %q, %v", rel, ok)
	}
	if _, ok := relPath(root, filepath.Join(string(filepath.Separator), "other", "x.md")); ok {
		t.Error("path outside root accepted")
	}
}

// Package testutil provides shared test helpers for setting up notebooks.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/tokenizer"
)

// TestDir creates a temporary notebook directory seeded with files
// (slash-separated path to content) and a storage.Provider over it.
func TestDir(t *testing.T, files map[string]string) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestNotebook creates a notebook over a seeded temporary directory. The
// notebook is closed when the test ends; it is not bootstrapped.
func TestNotebook(t *testing.T, files map[string]string, opts ...notebook.Option) (string, *notebook.Notebook) {
	t.Helper()
	dir, store := TestDir(t, files)
	nb, err := notebook.New(store, tokenizer.NewGoldmark(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { nb.Close() })
	return dir, nb
}

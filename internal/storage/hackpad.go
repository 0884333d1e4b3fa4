package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/hack-pad/hackpadfs"
)

// Hackpad implements Provider on top of any hackpadfs file system, e.g. the
// in-memory mem.FS or an IndexedDB-backed FS.
type Hackpad struct {
	fs hackpadfs.FS
}

// NewHackpad wraps fsys as a Provider.
func NewHackpad(fsys hackpadfs.FS) *Hackpad {
	return &Hackpad{fs: fsys}
}

// fsPath converts a notebook path to an io/fs path.
func fsPath(rel string) (string, error) {
	p := path.Clean("/" + strings.TrimPrefix(rel, "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		p = "."
	}
	if !fs.ValidPath(p) {
		return "", fmt.Errorf("storage: invalid path: %s", rel)
	}
	return p, nil
}

// ReadFile returns the raw bytes of a file.
func (h *Hackpad) ReadFile(name string) ([]byte, error) {
	p, err := fsPath(name)
	if err != nil {
		return nil, err
	}
	data, err := hackpadfs.ReadFile(h.fs, p)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// WriteFile replaces the content of a file, creating parents as needed.
func (h *Hackpad) WriteFile(name string, data []byte) error {
	p, err := fsPath(name)
	if err != nil {
		return err
	}
	if dir := path.Dir(p); dir != "." {
		if err := hackpadfs.MkdirAll(h.fs, dir, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir: %w", err)
		}
	}
	if err := hackpadfs.WriteFullFile(h.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	return nil
}

// Exists reports whether name exists.
func (h *Hackpad) Exists(name string) (bool, error) {
	p, err := fsPath(name)
	if err != nil {
		return false, err
	}
	_, err = hackpadfs.Stat(h.fs, p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, hackpadfs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("storage: stat %s: %w", name, err)
	}
}

// Stat returns file metadata; CreatedAt mirrors the modification time.
func (h *Hackpad) Stat(name string) (FileInfo, error) {
	p, err := fsPath(name)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := hackpadfs.Stat(h.fs, p)
	if err != nil {
		return FileInfo{}, fmt.Errorf("storage: stat %s: %w", name, err)
	}
	return FileInfo{
		IsFile:     info.Mode().IsRegular(),
		IsDir:      info.IsDir(),
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// ReadDir lists entry names directly under name, sorted.
func (h *Hackpad) ReadDir(name string) ([]string, error) {
	p, err := fsPath(name)
	if err != nil {
		return nil, err
	}
	entries, err := hackpadfs.ReadDir(h.fs, p)
	if err != nil {
		return nil, fmt.Errorf("storage: readdir %s: %w", name, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Unlink removes a file.
func (h *Hackpad) Unlink(name string) error {
	p, err := fsPath(name)
	if err != nil {
		return err
	}
	if err := hackpadfs.Remove(h.fs, p); err != nil {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

// Mkdir creates a directory and any missing parents.
func (h *Hackpad) Mkdir(name string) error {
	p, err := fsPath(name)
	if err != nil {
		return err
	}
	if p == "." {
		return nil
	}
	if err := hackpadfs.MkdirAll(h.fs, p, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", name, err)
	}
	return nil
}

var _ Provider = (*Hackpad)(nil)

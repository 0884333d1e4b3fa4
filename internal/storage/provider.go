// Package storage defines the notebook file-system abstraction.
package storage

import "time"

// FileInfo is the subset of file metadata the notebook relies on.
type FileInfo struct {
	IsFile     bool
	IsDir      bool
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Provider is the interface for notebook file operations. All paths are
// slash-separated and relative to the notebook root; "" denotes the root.
//
// Implementations wrap fs.ErrNotExist for missing paths so callers can test
// with errors.Is.
type Provider interface {
	// ReadFile returns the raw bytes of the file at path.
	ReadFile(path string) ([]byte, error)
	// WriteFile replaces the content of the file at path.
	WriteFile(path string, data []byte) error
	// Exists reports whether anything exists at path.
	Exists(path string) (bool, error)
	// Stat returns metadata for path.
	Stat(path string) (FileInfo, error)
	// ReadDir returns the entry names directly under path.
	ReadDir(path string) ([]string, error)
	// Unlink removes the file at path.
	Unlink(path string) error
	// Mkdir creates path and any missing parents.
	Mkdir(path string) error
}

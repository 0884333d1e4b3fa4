// Package notebook turns a directory of Markdown notes into a graph of notes
// connected by backlinks plus a title/alias/path search index.
package notebook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/refmap"
	"github.com/starford/notegraph/internal/search"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/tokenizer"
)

// State is the bootstrap state of a Notebook.
type State int32

const (
	StateUninitialized State = iota
	StateScanning
	StateReady
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// DefaultIgnoreDirs are directory names never scanned for notes.
var DefaultIgnoreDirs = []string{".git", ".hg", ".svn", "node_modules", ".obsidian", ".trash"}

const defaultScanConcurrency = 8

// Option configures a Notebook.
type Option func(*Notebook)

// WithLogger sets the logger used for scan warnings.
func WithLogger(l *slog.Logger) Option {
	return func(nb *Notebook) {
		if l != nil {
			nb.logger = l
		}
	}
}

// WithIgnoreDirs replaces the set of directory names skipped while scanning.
func WithIgnoreDirs(names ...string) Option {
	return func(nb *Notebook) {
		nb.ignoreDirs = make(map[string]struct{}, len(names))
		for _, n := range names {
			nb.ignoreDirs[n] = struct{}{}
		}
	}
}

// WithScanConcurrency bounds the sub-directory scans running at once per directory.
func WithScanConcurrency(n int) Option {
	return func(nb *Notebook) {
		if n > 0 {
			nb.scanConcurrency = n
		}
	}
}

// Notebook owns the note table, the reference map and the search index of
// one notebook root. All three are private to the instance.
type Notebook struct {
	provider        storage.Provider
	tokenizer       tokenizer.Tokenizer
	logger          *slog.Logger
	ignoreDirs      map[string]struct{}
	scanConcurrency int
	recursive       bool

	mu    sync.RWMutex
	notes map[string]*models.Note

	refs  *refmap.Map
	index *search.Index

	// relMu serializes mention reprocessing: each step deletes then
	// inserts edges and must not interleave with another.
	relMu sync.Mutex
	loads singleflight.Group

	bootOnce sync.Once
	bootDone chan struct{}
	bootErr  error
	state    atomic.Int32
}

// WithSubdirectories controls whether Bootstrap and RefreshAll descend into
// subdirectories of the root. Defaults to true.
func WithSubdirectories(on bool) Option {
	return func(nb *Notebook) {
		nb.recursive = on
	}
}

// New creates a Notebook over provider. The tokenizer is owned by the
// notebook for its whole lifetime.
func New(provider storage.Provider, tok tokenizer.Tokenizer, opts ...Option) (*Notebook, error) {
	ix, err := search.Open()
	if err != nil {
		return nil, fmt.Errorf("notebook: %w", err)
	}

	nb := &Notebook{
		provider:        provider,
		tokenizer:       tok,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		scanConcurrency: defaultScanConcurrency,
		recursive:       true,
		notes:           make(map[string]*models.Note),
		refs:            refmap.New(),
		index:           ix,
		bootDone:        make(chan struct{}),
	}
	WithIgnoreDirs(DefaultIgnoreDirs...)(nb)

	for _, opt := range opts {
		opt(nb)
	}
	return nb, nil
}

// Close releases the search index.
func (nb *Notebook) Close() error {
	return nb.index.Close()
}

// Bootstrap runs the full scan exactly once per Notebook. Concurrent callers
// all wait for the same scan. A caller whose ctx ends early gets ctx.Err(),
// but the scan itself keeps running to completion.
func (nb *Notebook) Bootstrap(ctx context.Context) error {
	nb.bootOnce.Do(func() {
		nb.state.Store(int32(StateScanning))
		scanCtx := context.WithoutCancel(ctx)
		go func() {
			defer close(nb.bootDone)
			nb.bootErr = nb.Refresh(scanCtx, "", nb.recursive, true)
			nb.state.Store(int32(StateReady))
			nb.logger.Info("notebook: bootstrap complete", slog.Int("notes", nb.Len()))
		}()
	})

	select {
	case <-nb.bootDone:
		return nb.bootErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshAll rebuilds the whole notebook from the root, honouring
// WithSubdirectories.
func (nb *Notebook) RefreshAll(ctx context.Context) error {
	return nb.Refresh(ctx, "", nb.recursive, true)
}

// State reports the bootstrap state.
func (nb *Notebook) State() State {
	return State(nb.state.Load())
}

// Loaded reports whether the bootstrap scan has finished.
func (nb *Notebook) Loaded() bool {
	return nb.State() == StateReady
}

// Len returns the number of notes in the table.
func (nb *Notebook) Len() int {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return len(nb.notes)
}

// Indexed returns the number of documents in the search index.
func (nb *Notebook) Indexed() (int, error) {
	return nb.index.Len()
}

// HasNote reports whether p is in the note table.
func (nb *Notebook) HasNote(p string) bool {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	_, ok := nb.notes[canonical(p)]
	return ok
}

// Notes returns copies of every note in the table, sorted by path.
func (nb *Notebook) Notes() []*models.Note {
	nb.mu.RLock()
	out := make([]*models.Note, 0, len(nb.notes))
	for _, n := range nb.notes {
		out = append(out, n.Clone())
	}
	nb.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Note) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// Paths returns every note path in the table, sorted.
func (nb *Notebook) Paths() []string {
	nb.mu.RLock()
	out := make([]string, 0, len(nb.notes))
	for p := range nb.notes {
		out = append(out, p)
	}
	nb.mu.RUnlock()
	slices.Sort(out)
	return out
}

// GetNote returns the note at p, loading and caching it when it is not in
// the table yet. Concurrent loads of the same path share one read.
func (nb *Notebook) GetNote(ctx context.Context, p string) (*models.Note, error) {
	p = canonical(p)

	nb.mu.RLock()
	n, ok := nb.notes[p]
	if ok {
		n = n.Clone()
	}
	nb.mu.RUnlock()
	if ok {
		return n, nil
	}

	// The shared load outlives any single caller; a cancelled caller only
	// stops waiting for it.
	ch := nb.loads.DoChan(p, func() (any, error) {
		note, err := nb.LoadNote(context.WithoutCancel(ctx), p)
		if err != nil {
			return nil, err
		}
		c := note.Clone()
		nb.put(note)
		return c, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Note).Clone(), nil
	}
}

// put stores note in the table, keeping the mention set of the entry it
// replaces, and re-indexes it for search.
func (nb *Notebook) put(note *models.Note) {
	nb.mu.Lock()
	if old, ok := nb.notes[note.Path]; ok {
		note.Mentions = old.Mentions
	}
	nb.notes[note.Path] = note
	nb.mu.Unlock()

	nb.reindex(note)
}

func (nb *Notebook) reindex(note *models.Note) {
	if err := nb.index.Remove(note.Path); err != nil {
		nb.logger.Warn("notebook: unindex failed", slog.String("path", note.Path), slog.String("error", err.Error()))
		return
	}
	if err := nb.index.Add(note.Path, note.Title, note.Metadata.Aliases); err != nil {
		nb.logger.Warn("notebook: index failed", slog.String("path", note.Path), slog.String("error", err.Error()))
	}
}

// noteTitle returns the title of a note in the table.
func (nb *Notebook) noteTitle(p string) (string, bool) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	n, ok := nb.notes[p]
	if !ok {
		return "", false
	}
	return n.Title, true
}

// Package watch keeps a notebook in step with changes made to its directory
// by other programs.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notegraph/internal/models"
)

const reconcileDelay = 200 * time.Millisecond

// Event kinds passed to EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called after a watcher-driven notebook change.
// kind is one of KindCreated, KindUpdated, KindDeleted.
type EventCallback func(kind string, path string)

// Notebook is the part of notebook.Notebook the watcher drives.
type Notebook interface {
	Reload(ctx context.Context, path string) (*models.Note, error)
	Forget(ctx context.Context, path string) error
	RefreshAll(ctx context.Context) error
	HasNote(path string) bool
	Paths() []string
}

// Watch starts an fsnotify watcher on the notebook root and applies file
// changes to nb until ctx is cancelled. It calls cb (if non-nil) after each
// applied change.
//
// New directories created at runtime are added to the watch list unless
// their name is in ignoreDirs. Rename events trigger a debounced full
// refresh that drops notes whose files are gone and picks up renamed ones.
func Watch(ctx context.Context, nb Notebook, root string, ignoreDirs []string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	ignored := make(map[string]struct{}, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignored[d] = struct{}{}
	}

	if err := addDirsRecursive(w, root, ignored); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, rel string) {
		if cb != nil {
			cb(kind, rel)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, nb, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if _, skip := ignored[filepath.Base(absPath)]; skip {
						continue
					}
					if addErr := addDirsRecursive(w, absPath, ignored); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					loadNewDir(ctx, nb, root, absPath, ignored, logger, notify)
					continue
				}
			}

			if !strings.HasSuffix(absPath, models.NoteExtension) {
				continue
			}
			rel, ok := relPath(root, absPath)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := KindUpdated
				if !nb.HasNote(rel) {
					kind = KindCreated
				}
				if _, loadErr := nb.Reload(ctx, rel); loadErr != nil {
					logger.Warn("watcher: reload failed", slog.String("path", rel), slog.String("error", loadErr.Error()))
					continue
				}
				logger.Debug("watcher: reloaded", slog.String("path", rel), slog.String("op", kind))
				notify(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				if forgetErr := nb.Forget(ctx, rel); forgetErr != nil {
					logger.Warn("watcher: forget failed", slog.String("path", rel), slog.String("error", forgetErr.Error()))
					continue
				}
				logger.Debug("watcher: forgot", slog.String("path", rel))
				notify(KindDeleted, rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old path only; the new path
				// arrives as a Create if it stays inside a watched dir.
				if forgetErr := nb.Forget(ctx, rel); forgetErr != nil {
					logger.Warn("watcher: rename forget failed", slog.String("path", rel), slog.String("error", forgetErr.Error()))
				} else {
					notify(KindDeleted, rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile rebuilds the notebook and reports notes that appeared or
// disappeared in the process.
func reconcile(ctx context.Context, nb Notebook, logger *slog.Logger, notify EventCallback) {
	before := make(map[string]struct{})
	for _, p := range nb.Paths() {
		before[p] = struct{}{}
	}

	if err := nb.RefreshAll(ctx); err != nil {
		logger.Warn("reconcile: refresh failed", slog.String("error", err.Error()))
		return
	}

	after := nb.Paths()
	for _, p := range after {
		if _, ok := before[p]; ok {
			delete(before, p)
			continue
		}
		logger.Debug("reconcile: found", slog.String("path", p))
		notify(KindCreated, p)
	}
	for p := range before {
		logger.Debug("reconcile: removed stale", slog.String("path", p))
		notify(KindDeleted, p)
	}
}

// loadNewDir loads any notes already present in a newly created directory.
func loadNewDir(ctx context.Context, nb Notebook, root, dirPath string, ignored map[string]struct{}, logger *slog.Logger, notify EventCallback) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := ignored[d.Name()]; skip && p != dirPath {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(p, models.NoteExtension) {
			return nil
		}
		rel, ok := relPath(root, p)
		if !ok {
			return nil
		}
		if _, loadErr := nb.Reload(ctx, rel); loadErr == nil {
			logger.Debug("watcher: loaded from new dir", slog.String("path", rel))
			notify(KindCreated, rel)
		}
		return nil
	})
}

// relPath converts an absolute path under root to a notebook path.
func relPath(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addDirsRecursive adds root and all its non-ignored subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string, ignored map[string]struct{}) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := ignored[d.Name()]; skip && p != root {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

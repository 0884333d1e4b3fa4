package notebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/models"
)

// Refresh rescans dir. Notes found there replace their table entries and are
// re-indexed; sub-directories are scanned concurrently when
// includeSubdirectories is set.
//
// With refreshRelations the note table, reference map and search index are
// reset first and mentions of every loaded note are reprocessed once the
// scan is done. Refresh is never gated by Bootstrap.
func (nb *Notebook) Refresh(ctx context.Context, dir string, includeSubdirectories, refreshRelations bool) error {
	dir = canonical(dir)

	kind := metrics.ScanPartial
	if refreshRelations {
		kind = metrics.ScanFull
	}
	metrics.ScansTotal.WithLabelValues(kind).Inc()

	if refreshRelations {
		nb.reset()
	}

	if err := nb.scan(ctx, dir, includeSubdirectories); err != nil {
		return fmt.Errorf("notebook: refresh %q: %w", dir, err)
	}

	if refreshRelations {
		return nb.rebuildRelations(ctx)
	}
	return nil
}

func (nb *Notebook) reset() {
	nb.relMu.Lock()
	defer nb.relMu.Unlock()

	nb.mu.Lock()
	nb.notes = make(map[string]*models.Note)
	nb.mu.Unlock()

	nb.refs.Reset()
	if err := nb.index.Reset(); err != nil {
		nb.logger.Warn("notebook: reset search index failed", slog.String("error", err.Error()))
	}
}

// scan loads every note directly under dir. A directory that cannot be
// listed is treated as empty.
func (nb *Notebook) scan(ctx context.Context, dir string, recurse bool) error {
	names, err := nb.provider.ReadDir(dir)
	if err != nil {
		metrics.ListingFailures.Inc()
		nb.logger.Warn("notebook: listing failed", slog.String("dir", dir), slog.String("error", err.Error()))
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(nb.scanConcurrency)

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		p := path.Join(dir, name)

		info, err := nb.provider.Stat(p)
		if err != nil {
			nb.logger.Warn("notebook: stat failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}

		if info.IsDir {
			if _, skip := nb.ignoreDirs[name]; skip || !recurse {
				continue
			}
			g.Go(func() error {
				return nb.scan(gCtx, p, true)
			})
			continue
		}
		if !info.IsFile || !isNotePath(p) {
			continue
		}

		note, err := nb.LoadNote(ctx, p)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				nb.logger.Warn("notebook: load failed", slog.String("path", p), slog.String("error", err.Error()))
			}
			continue
		}
		nb.put(note)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// rebuildRelations reprocesses mentions of every note in the table, one
// note at a time.
func (nb *Notebook) rebuildRelations(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.RelationRebuildDuration.Observe(time.Since(start).Seconds())
	}()

	for _, p := range nb.Paths() {
		nb.mu.RLock()
		note, ok := nb.notes[p]
		if ok {
			note = note.Clone()
		}
		nb.mu.RUnlock()
		if !ok {
			continue
		}

		if err := nb.ProcessMentions(ctx, note); err != nil {
			if ctx.Err() != nil {
				return err
			}
			nb.logger.Warn("notebook: process mentions failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
	return nil
}

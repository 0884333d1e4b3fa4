package notebook

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"strings"
	"time"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/frontmatter"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/search"
)

// Write persists markdown at p. Front matter embedded in markdown is merged
// with meta, meta winning on conflicting keys. A zero-valued field of meta
// only overrides the embedded key when it is selected in set. Timestamps set
// in neither are stamped with the current time. The note is then reloaded,
// re-indexed and its mentions reprocessed; no other note is touched.
func (nb *Notebook) Write(ctx context.Context, p, markdown string, meta models.Metadata, set MetaFields) (*models.Note, error) {
	p = canonical(p)
	if !isNotePath(p) {
		return nil, fmt.Errorf("notebook: write %q: %w", p, apperr.ErrInvalidPath)
	}

	embedded, body, err := frontmatter.Decode(markdown)
	if err != nil {
		embedded, body = nil, markdown
	}
	merged := make(map[string]any, len(embedded)+6)
	maps.Copy(merged, embedded)

	now := time.Now()
	if _, ok := parseTime(embedded[keyCreated]); !ok && meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	if _, ok := parseTime(embedded[keyModified]); !ok && meta.ModifiedAt.IsZero() {
		meta.ModifiedAt = now
	}
	maps.Copy(merged, metadataMap(meta))
	dropCleared(merged, meta, set)
	if len(parseStrings(merged[keyAliases])) == 0 {
		delete(merged, keyAliases)
	}

	text, err := frontmatter.Encode(body, merged)
	if err != nil {
		return nil, fmt.Errorf("notebook: write %s: %w", p, err)
	}

	if dir := path.Dir(p); dir != "." {
		if err := nb.provider.Mkdir(dir); err != nil {
			return nil, fmt.Errorf("notebook: mkdir %s: %w", dir, err)
		}
	}
	if err := nb.provider.WriteFile(p, []byte(text)); err != nil {
		return nil, fmt.Errorf("notebook: write %s: %w", p, err)
	}

	return nb.Reload(ctx, p)
}

// Reload loads p from storage, replaces its table entry, re-indexes it and
// reprocesses its mentions.
func (nb *Notebook) Reload(ctx context.Context, p string) (*models.Note, error) {
	note, err := nb.LoadNote(ctx, p)
	if err != nil {
		return nil, err
	}
	nb.put(note)

	nb.mu.RLock()
	c := note.Clone()
	nb.mu.RUnlock()

	if err := nb.ProcessMentions(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes the note at p from storage together with the edges it
// contributed, its table entry and its search document. Edges from other
// notes pointing at p are kept, so a recreated note regains its backlinks.
func (nb *Notebook) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p = canonical(p)
	if !isNotePath(p) {
		return fmt.Errorf("notebook: delete %q: %w", p, apperr.ErrNotFound)
	}

	ok, err := nb.provider.Exists(p)
	if err != nil {
		return fmt.Errorf("notebook: delete %s: %w", p, err)
	}
	if !ok {
		return fmt.Errorf("notebook: delete %s: %w", p, apperr.ErrNotFound)
	}
	if err := nb.provider.Unlink(p); err != nil {
		return fmt.Errorf("notebook: delete %s: %w", p, err)
	}

	return nb.Forget(ctx, p)
}

// Forget drops p from the notebook without touching storage. The watcher
// uses it for files that are already gone.
func (nb *Notebook) Forget(_ context.Context, p string) error {
	p = canonical(p)

	nb.relMu.Lock()
	nb.refs.DeleteSource(p)
	nb.mu.Lock()
	delete(nb.notes, p)
	nb.mu.Unlock()
	nb.relMu.Unlock()

	if err := nb.index.Remove(p); err != nil {
		return fmt.Errorf("notebook: forget %s: %w", p, err)
	}
	return nil
}

// Duplicate copies the note at p to a free derived path ("name.copy.md",
// then "name.copy.2.md", ...) with the same body and metadata, stamping
// fresh timestamps later than the originals.
func (nb *Notebook) Duplicate(ctx context.Context, p string) (*models.Note, error) {
	src, err := nb.GetNote(ctx, p)
	if err != nil {
		return nil, err
	}

	target, err := nb.copyPath(src.Path)
	if err != nil {
		return nil, err
	}

	stamp := time.Now()
	for _, t := range []time.Time{src.Metadata.CreatedAt, src.Metadata.ModifiedAt} {
		if !stamp.After(t) {
			stamp = t.Add(time.Millisecond)
		}
	}

	meta := src.Metadata
	meta.Aliases = append([]string(nil), src.Metadata.Aliases...)
	meta.CreatedAt = stamp
	meta.ModifiedAt = stamp

	nb.logger.Debug("notebook: duplicate", slog.String("from", src.Path), slog.String("to", target))
	return nb.Write(ctx, target, src.Markdown, meta, AllFields)
}

func (nb *Notebook) copyPath(p string) (string, error) {
	base := strings.TrimSuffix(p, models.NoteExtension)
	for i := 1; ; i++ {
		candidate := base + ".copy" + models.NoteExtension
		if i > 1 {
			candidate = fmt.Sprintf("%s.copy.%d%s", base, i, models.NoteExtension)
		}
		ok, err := nb.provider.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("notebook: duplicate %s: %w", p, err)
		}
		if !ok && !nb.HasNote(candidate) {
			return candidate, nil
		}
	}
}

// Search queries the title/alias/path index.
func (nb *Notebook) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nb.index.Search(query, limit)
}

// AddAlias adds alias to the search document of p.
func (nb *Notebook) AddAlias(p, alias string) error {
	return nb.index.AddAlias(canonical(p), alias)
}

// DeleteAlias removes alias from the search document of p.
func (nb *Notebook) DeleteAlias(p, alias string) error {
	return nb.index.DeleteAlias(canonical(p), alias)
}

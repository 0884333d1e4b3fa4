package notebook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/frontmatter"
	"github.com/starford/notegraph/internal/mention"
	"github.com/starford/notegraph/internal/models"
)

// warningPrefix is prepended to the raw text of a note whose front matter
// could not be parsed.
const warningPrefix = "> **Warning:** the front matter of this note could not be parsed; it is shown unchanged below.\n\n"

func canonical(p string) string {
	return mention.Canonical(p)
}

func isNotePath(p string) bool {
	return p != "" && path.Ext(p) == models.NoteExtension
}

// LoadNote reads the note at p from storage. It returns an error wrapping
// apperr.ErrNotFound when p is not a readable note file. Loading never
// touches the note table or the reference map.
func (nb *Notebook) LoadNote(ctx context.Context, p string) (*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = canonical(p)
	if !isNotePath(p) {
		return nil, fmt.Errorf("notebook: %s: %w", p, apperr.ErrNotFound)
	}

	info, err := nb.provider.Stat(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			nb.logger.Warn("notebook: stat failed", slog.String("path", p), slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("notebook: %s: %w: %w", p, apperr.ErrNotFound, err)
	}
	if !info.IsFile {
		return nil, fmt.Errorf("notebook: %s is not a file: %w", p, apperr.ErrNotFound)
	}

	data, err := nb.provider.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("notebook: read %s: %w: %w", p, apperr.ErrNotFound, err)
	}
	text := string(data)

	meta := models.Metadata{CreatedAt: info.CreatedAt, ModifiedAt: info.ModifiedAt}

	md, body, err := frontmatter.Decode(text)
	if err != nil {
		nb.logger.Warn("notebook: malformed front matter", slog.String("path", p), slog.String("error", err.Error()))
		md, body = nil, warningPrefix+text
	}
	liftMetadata(md, &meta)

	markdown, err := frontmatter.Encode(body, md)
	if err != nil {
		nb.logger.Warn("notebook: re-encode front matter failed", slog.String("path", p), slog.String("error", err.Error()))
		markdown = body
	}

	return &models.Note{
		Path:     p,
		Title:    strings.TrimSuffix(path.Base(p), models.NoteExtension),
		Markdown: markdown,
		Metadata: meta,
		Mentions: make(map[string]struct{}),
	}, nil
}

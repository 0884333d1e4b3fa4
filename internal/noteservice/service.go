// Package noteservice is the transport-neutral note API shared by the REST
// and MCP front ends.
package noteservice

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/graphview"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/search"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path      string          `json:"path"`
	Title     string          `json:"title"`
	Markdown  string          `json:"markdown"`
	Metadata  models.Metadata `json:"metadata"`
	Checksum  string          `json:"checksum"`
	Mentions  []string        `json:"mentions"`
	Backlinks []string        `json:"backlinks"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	Checksum   string    `json:"checksum"`
	Aliases    []string  `json:"aliases"`
	Pinned     bool      `json:"pinned"`
	Favorited  bool      `json:"favorited"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Sort keys accepted by ListNotes.
const (
	SortPath       = "path"
	SortTitle      = "title"
	SortModifiedAt = "modified_at"
)

// Service coordinates notebook operations for the transports.
type Service struct {
	nb *notebook.Notebook
}

// NewService creates a new note service.
func NewService(nb *notebook.Notebook) *Service {
	return &Service{nb: nb}
}

// Notebook returns the underlying notebook.
func (s *Service) Notebook() *notebook.Notebook {
	return s.nb
}

// GetNote returns the note at path enriched with its backlinks.
func (s *Service) GetNote(ctx context.Context, path string) (*NoteDetail, error) {
	note, err := s.nb.GetNote(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(ctx, note), nil
}

// CreateNote writes a new note. It fails with apperr.ErrAlreadyExists when
// a note is already stored at path. A nil meta keeps whatever front matter
// markdown embeds; a non-nil meta replaces every reserved field.
func (s *Service) CreateNote(ctx context.Context, path, markdown string, meta *models.Metadata) (*NoteDetail, error) {
	if _, err := s.nb.GetNote(ctx, path); err == nil {
		return nil, apperr.ErrAlreadyExists
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	var md models.Metadata
	set := notebook.MetaFields(0)
	if meta != nil {
		md, set = *meta, notebook.AllFields
	}
	note, err := s.nb.Write(ctx, path, markdown, md, set)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(ctx, note), nil
}

// UpdateNote rewrites an existing note. A non-empty ifMatch must equal the
// current checksum or apperr.ErrConflict is returned. When meta is nil the
// stored metadata is kept, with ModifiedAt bumped.
func (s *Service) UpdateNote(ctx context.Context, path, markdown string, meta *models.Metadata, ifMatch string) (*NoteDetail, error) {
	existing, err := s.nb.GetNote(ctx, path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum([]byte(existing.Markdown)) {
		return nil, apperr.ErrConflict
	}

	md := existing.Metadata
	set := notebook.MetaFields(0)
	if meta != nil {
		md, set = *meta, notebook.AllFields
		if md.CreatedAt.IsZero() {
			md.CreatedAt = existing.Metadata.CreatedAt
		}
	}
	if meta == nil || meta.ModifiedAt.IsZero() {
		md.ModifiedAt = time.Now()
	}

	note, err := s.nb.Write(ctx, path, markdown, md, set)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(ctx, note), nil
}

// DeleteNote removes a note from storage and from the notebook.
func (s *Service) DeleteNote(ctx context.Context, path string) error {
	return s.nb.Delete(ctx, path)
}

// DuplicateNote copies the note at path to a derived path.
func (s *Service) DuplicateNote(ctx context.Context, path string) (*NoteDetail, error) {
	note, err := s.nb.Duplicate(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(ctx, note), nil
}

// ListNotes returns a page of notes. prefix filters by path prefix; sort is
// one of the Sort* keys and defaults to SortPath.
func (s *Service) ListNotes(_ context.Context, limit, offset int, prefix, sort string) ([]NoteListItem, int, error) {
	notes := s.nb.Notes()
	if prefix != "" {
		notes = slices.DeleteFunc(notes, func(n *models.Note) bool {
			return !strings.HasPrefix(n.Path, prefix)
		})
	}

	switch sort {
	case SortTitle:
		slices.SortStableFunc(notes, func(a, b *models.Note) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	case SortModifiedAt:
		slices.SortStableFunc(notes, func(a, b *models.Note) int {
			return b.Metadata.ModifiedAt.Compare(a.Metadata.ModifiedAt)
		})
	}

	total := len(notes)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	items := make([]NoteListItem, 0, end-offset)
	for _, n := range notes[offset:end] {
		items = append(items, NoteListItem{
			Path:       n.Path,
			Title:      n.Title,
			Checksum:   checksum.Sum([]byte(n.Markdown)),
			Aliases:    nonNilSlice(n.Metadata.Aliases),
			Pinned:     n.Metadata.Pinned,
			Favorited:  n.Metadata.Favorited,
			ModifiedAt: n.Metadata.ModifiedAt,
		})
	}
	return items, total, nil
}

// Search queries the notebook's title/alias/path index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	results, err := s.nb.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// Graph returns the current graph view.
func (s *Service) Graph(_ context.Context) (graphview.View, error) {
	return s.nb.GraphView()
}

// GraphHash returns the content hash of the current graph view.
func (s *Service) GraphHash() (string, error) {
	v, err := s.nb.GraphView()
	if err != nil {
		return "", err
	}
	return v.ContentHash, nil
}

// Backlinks returns the notes linking to target with their references.
func (s *Service) Backlinks(ctx context.Context, target string) []notebook.Backlink {
	return s.nb.GetBacklinks(ctx, target)
}

// Refresh rebuilds the whole notebook from storage.
func (s *Service) Refresh(ctx context.Context) error {
	return s.nb.RefreshAll(ctx)
}

func (s *Service) buildNoteDetail(ctx context.Context, note *models.Note) *NoteDetail {
	backlinked := s.nb.GetBacklinkedNotes(ctx, note.Path)
	backlinks := make([]string, 0, len(backlinked))
	for p := range backlinked {
		backlinks = append(backlinks, p)
	}
	slices.Sort(backlinks)

	return &NoteDetail{
		Path:      note.Path,
		Title:     note.Title,
		Markdown:  note.Markdown,
		Metadata:  note.Metadata,
		Checksum:  checksum.Sum([]byte(note.Markdown)),
		Mentions:  note.MentionList(),
		Backlinks: backlinks,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

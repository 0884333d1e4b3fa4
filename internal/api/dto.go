package api

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/graphview"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/notebook"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/search"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path     string           `json:"path" example:"notes/hello.md" validate:"required"`
	Markdown string           `json:"markdown" example:"# Hello\nSee [[world]]" validate:"required"`
	Metadata *models.Metadata `json:"metadata,omitempty"`
}

// Validate implements validation.Validatable.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validation.By(isNotePath)),
	)
}

// PutNoteRequest is the request body for creating or replacing a note.
type PutNoteRequest struct {
	Markdown string           `json:"markdown" example:"# Updated\nContent" validate:"required"`
	Metadata *models.Metadata `json:"metadata,omitempty"`
}

func isNotePath(v any) error {
	p, _ := v.(string)
	if !strings.HasSuffix(p, models.NoteExtension) {
		return validation.NewError("validation_note_path", "must end in "+models.NoteExtension)
	}
	return nil
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Result `json:"results" validate:"required"`
}

// BacklinksResponse lists the notes linking to a target.
type BacklinksResponse struct {
	Target    string              `json:"target" example:"notes/hello.md" validate:"required"`
	Backlinks []notebook.Backlink `json:"backlinks" validate:"required"`
}

// GraphResponse is the graph view.
type GraphResponse = graphview.View

// RefreshResponse reports the notebook size after a rebuild.
type RefreshResponse struct {
	Notes   int `json:"notes" example:"42" validate:"required"`
	Indexed int `json:"indexed" example:"42" validate:"required"`
}

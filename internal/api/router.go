package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, defaultLimit int, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, defaultLimit)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.PutNote)
	r.Delete("/notes/*", h.DeleteNote)
	r.Post("/duplicate/*", h.DuplicateNote)

	// Graph.
	r.Get("/backlinks/*", h.Backlinks)
	r.Get("/graph", h.Graph)

	r.Get("/search", h.Search)
	r.Post("/refresh", h.Refresh)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

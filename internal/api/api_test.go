package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/testutil"
)

// testEnv sets up a temp notebook dir, service, and router for testing.
// A non-empty authToken enables token mode.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithDir(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithDir(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*noteservice.Service, http.Handler, string) {
	t.Helper()

	dir, nb := testutil.TestNotebook(t, nil)
	svc := noteservice.NewService(nb)
	router := NewRouter(svc, authEnabled, authToken, 20, sseHandler)
	return svc, router, dir
}

func do(t *testing.T, router http.Handler, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createNote(t *testing.T, router http.Handler, path, markdown string) NoteDetail {
	t.Helper()
	w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": path, "markdown": markdown}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d, body = %s", path, w.Code, w.Body.String())
	}
	var note NoteDetail
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatal(err)
	}
	return note
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "hello.md", "# Hello\nWorld")

	w := do(t, router, http.MethodGet, "/notes/hello.md", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Path != "hello.md" {
		t.Errorf("path = %q", note.Path)
	}
	if note.Title != "hello" {
		t.Errorf("title = %q, want hello", note.Title)
	}
	if note.Markdown != "# Hello\nWorld" {
		t.Errorf("markdown = %q", note.Markdown)
	}
	if note.Metadata.CreatedAt.IsZero() || note.Metadata.ModifiedAt.IsZero() {
		t.Error("timestamps not stamped on create")
	}
}

func TestCreateNestedNoteOnDisk(t *testing.T) {
	_, router, dir := testEnvWithDir(t, false, "", nil)

	createNote(t, router, "topics/deep.md", "body")

	raw, err := os.ReadFile(filepath.Join(dir, "topics", "deep.md"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("---\n")) {
		t.Errorf("front matter missing from stored note: %q", raw)
	}

	// Encoded slashes from generated clients resolve to the same note.
	w := do(t, router, http.MethodGet, "/notes/topics%2Fdeep.md", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded path get = %d", w.Code)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "dup.md", "a")

	w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": "dup.md", "markdown": "a"}, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateInvalid(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": "image.png", "markdown": "x"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-note path = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/notes", map[string]string{"markdown": "x"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/notes", map[string]string{"path": "a.md", "bogus": "x"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	created := createNote(t, router, "lock.md", "v1")

	update := map[string]string{"markdown": "v2"}
	w := do(t, router, http.MethodPut, "/notes/lock.md", update, map[string]string{"If-Match": created.Checksum})
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Stale checksum.
	w = do(t, router, http.MethodPut, "/notes/lock.md", update, map[string]string{"If-Match": `"` + created.Checksum + `"`})
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	created := createNote(t, router, "nolock.md", "v1")

	w := do(t, router, http.MethodPut, "/notes/nolock.md", map[string]string{"markdown": "v2"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update without If-Match = %d, want 200", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Markdown != "v2" {
		t.Errorf("markdown = %q, want v2", note.Markdown)
	}
	if !note.Metadata.CreatedAt.Equal(created.Metadata.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", created.Metadata.CreatedAt, note.Metadata.CreatedAt)
	}
}

func TestPutCreatesMissingNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/notes/fresh.md", map[string]string{"markdown": "new"}, nil)
	if w.Code != http.StatusCreated {
		t.Errorf("put missing note = %d, want 201", w.Code)
	}
}

func TestUpdateNote_NotFoundWithIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/notes/ghost.md", map[string]string{"markdown": "x"}, map[string]string{"If-Match": "abc"})
	if w.Code != http.StatusNotFound {
		t.Errorf("conditional update missing = %d, want 404", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "bye.md", "gone")

	w := do(t, router, http.MethodDelete, "/notes/bye.md", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	w = do(t, router, http.MethodGet, "/notes/bye.md", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodDelete, "/notes/bye.md", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestDuplicateNote(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "A.md", "see [[B]]")

	w := do(t, router, http.MethodPost, "/duplicate/A.md", nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("duplicate = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Path != "A.copy.md" {
		t.Errorf("copy path = %q, want A.copy.md", note.Path)
	}
	if note.Markdown != "see [[B]]" {
		t.Errorf("copy markdown = %q", note.Markdown)
	}

	w = do(t, router, http.MethodPost, "/duplicate/missing.md", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("duplicate missing = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")

	for _, name := range []string{"a.md", "b.md", "sub/c.md"} {
		createNote(t, router, name, "# "+name)
	}

	w := do(t, router, http.MethodGet, "/notes?limit=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Notes) != 2 {
		t.Errorf("total = %d, len = %d, want 3 and 2", resp.Total, len(resp.Notes))
	}
	if len(resp.Notes) > 0 && resp.Notes[0].Path != "a.md" {
		t.Errorf("first = %q, want a.md", resp.Notes[0].Path)
	}

	w = do(t, router, http.MethodGet, "/notes?prefix=sub/", nil, nil)
	resp = NoteListResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Notes[0].Path != "sub/c.md" {
		t.Errorf("prefix filter = %+v", resp)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "uniquetoken.md", "body")
	createNote(t, router, "other.md", "body")

	w := do(t, router, http.MethodGet, "/search?q=uniq", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Path != "uniquetoken.md" {
		t.Errorf("search results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "a.md", "links to [[b]]")
	createNote(t, router, "b.md", "target")

	w := do(t, router, http.MethodGet, "/backlinks/b.md", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d", w.Code)
	}
	var resp BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Target != "b.md" || len(resp.Backlinks) != 1 {
		t.Fatalf("backlinks = %+v", resp)
	}
	if resp.Backlinks[0].Note.Path != "a.md" || len(resp.Backlinks[0].References) != 1 {
		t.Errorf("backlink = %+v", resp.Backlinks[0])
	}

	w = do(t, router, http.MethodGet, "/notes/b.md", nil, nil)
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if len(note.Backlinks) != 1 || note.Backlinks[0] != "a.md" {
		t.Errorf("note backlinks = %v", note.Backlinks)
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, "a.md", "links to [[b]]")
	createNote(t, router, "b.md", "links to [[a]]")

	w := do(t, router, http.MethodGet, "/graph", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	var view GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if len(view.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(view.Nodes))
	}
	if len(view.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(view.Edges))
	}
	if view.ContentHash == "" {
		t.Fatal("empty content hash")
	}

	w = do(t, router, http.MethodGet, "/graph", nil, map[string]string{"If-None-Match": `"` + view.ContentHash + `"`})
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional graph = %d, want 304", w.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	_, router, dir := testEnvWithDir(t, false, "", nil)

	_ = os.WriteFile(filepath.Join(dir, "outside.md"), []byte("written behind our back"), 0o644)

	w := do(t, router, http.MethodPost, "/refresh", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d", w.Code)
	}
	var resp RefreshResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Notes != 1 {
		t.Errorf("notes = %d, want 1", resp.Notes)
	}
	if resp.Indexed != 1 {
		t.Errorf("indexed = %d, want 1", resp.Indexed)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes/nope.md", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodPost, "/notes", map[string]string{"path": "auth.md", "markdown": "test"},
		map[string]string{"Authorization": "Bearer secret123"})
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/notes", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/notes", nil, map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithDir(t, true, "secret", sseStub)

	w := do(t, router, http.MethodGet, "/events", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithDir(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	_, router, _ := testEnvWithDir(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with query token should not 401")
	}

	// The query parameter is only honoured on the event stream.
	w = do(t, router, http.MethodGet, "/notes?access_token=tok", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token on /notes = %d, want 401", w.Code)
	}
}

package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notegraph/internal/graphview"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/search"
	"github.com/starford/notegraph/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	dir, nb := testutil.TestNotebook(t, nil)
	srv := New(noteservice.NewService(nb), 20)
	return srv, dir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "write_note":
		result, err = srv.writeNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "get_graph":
		result, err = srv.getGraph(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestWriteAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "write_note", map[string]interface{}{
		"path":    "test.md",
		"content": "# Test\nHello",
	})
	if text := resultText(r); text != "created: test.md" {
		t.Errorf("write result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "test.md"})
	var note noteservice.NoteDetail
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatalf("read result not JSON: %v", err)
	}
	if note.Markdown != "# Test\nHello" {
		t.Errorf("markdown = %q", note.Markdown)
	}

	r = callTool(t, srv, "write_note", map[string]interface{}{
		"path":    "test.md",
		"content": "v2",
	})
	if text := resultText(r); text != "updated: test.md" {
		t.Errorf("second write result = %q", text)
	}
}

func TestWriteNoteRejectsNonNotePath(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "write_note", map[string]interface{}{"path": "x.txt", "content": "x"})
	if !r.IsError {
		t.Error("expected error for non-note path")
	}
}

func TestListNotes(t *testing.T) {
	srv, dir := testServer(t)
	_ = os.MkdirAll(filepath.Join(dir, "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "sub", "b.md"), []byte("b"), 0o644)
	if err := srv.svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	if text := resultText(r); text != "a.md\nsub/b.md" {
		t.Errorf("list = %q", text)
	}

	r = callTool(t, srv, "list_notes", map[string]interface{}{"folder": "sub"})
	if text := resultText(r); text != "sub/b.md" {
		t.Errorf("list sub = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "write_note", map[string]interface{}{
		"path":    "a.md",
		"content": "links to [[b]]",
	})

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "b"})
	if text := resultText(r); text != "a.md" {
		t.Errorf("backlinks = %q, want a.md", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "a.md"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks of a.md = %q", text)
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "write_note", map[string]interface{}{"path": "gopher.md", "content": "x"})
	_ = callTool(t, srv, "write_note", map[string]interface{}{"path": "rust.md", "content": "x"})

	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "go"})
	var results []search.Result
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatalf("search result not JSON: %v", err)
	}
	if len(results) != 1 || results[0].Path != "gopher.md" {
		t.Errorf("results = %+v", results)
	}
}

func TestGetGraph(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "write_note", map[string]interface{}{"path": "a.md", "content": "[[b]]"})

	r := callTool(t, srv, "get_graph", map[string]interface{}{})
	var view graphview.View
	if err := json.Unmarshal([]byte(resultText(r)), &view); err != nil {
		t.Fatalf("graph result not JSON: %v", err)
	}
	if len(view.Edges) != 1 || view.Edges[0].Source != "a.md" || view.Edges[0].Target != "b.md" {
		t.Errorf("edges = %+v", view.Edges)
	}
}

func TestNoteContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_note_contract", nil)
	if !strings.Contains(resultText(r), "[[other-note]]") {
		t.Error("contract does not describe wiki links")
	}

	contents, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}

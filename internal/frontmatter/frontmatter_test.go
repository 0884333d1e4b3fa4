package frontmatter

import (
	"reflect"
	"strings"
	"testing"
)

func TestDecode_FrontmatterAndBody(t *testing.T) {
	input := "---\ntitle: Hello\ntags:\n  - go\n  - notes\n---\n# Hello\nBody text.\n"
	md, body, err := Decode(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md["title"] != "Hello" {
		t.Errorf("title = %v, want Hello", md["title"])
	}
	tags, ok := md["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "go" || tags[1] != "notes" {
		t.Errorf("tags = %v, want [go notes]", md["tags"])
	}
	if body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", body)
	}
}

func TestDecode_NoFrontmatter(t *testing.T) {
	input := "# Just a heading\nSome text.\n"
	md, body, err := Decode(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md != nil {
		t.Errorf("expected nil metadata, got %v", md)
	}
	if body != input {
		t.Errorf("body altered: %q", body)
	}
}

func TestDecode_UnclosedBlockIsBody(t *testing.T) {
	input := "---\ntitle: x\nno closing line\n"
	md, body, err := Decode(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md != nil || body != input {
		t.Errorf("got (%v, %q), want (nil, input)", md, body)
	}
}

func TestDecode_InvalidYAMLKeepsBody(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\nBody\n"
	md, body, err := Decode(input)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if md != nil {
		t.Errorf("expected nil metadata on invalid YAML")
	}
	if body != input {
		t.Errorf("body = %q, want unaltered input", body)
	}
}

func TestDecode_DelimiterMustStartText(t *testing.T) {
	input := "\n---\ntitle: x\n---\nbody"
	md, body, _ := Decode(input)
	if md != nil || body != input {
		t.Errorf("leading blank line must disable front matter, got %v", md)
	}
}

func TestEncode_EmptyMetadataLeavesBody(t *testing.T) {
	out, err := Encode("plain body\n", map[string]any{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out != "plain body\n" {
		t.Errorf("out = %q", out)
	}
	out, _ = Encode("plain", nil)
	if out != "plain" {
		t.Errorf("nil metadata: out = %q", out)
	}
}

func TestEncode_WritesDelimitedBlock(t *testing.T) {
	out, err := Encode("body", map[string]any{"icon": "star"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out != "---\nicon: star\n---\nbody" {
		t.Errorf("out = %q", out)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		body string
		md   map[string]any
	}{
		{"strings", "See [[B]].\n", map[string]any{"title": "A", "icon": "x"}},
		{"numbers and bools", "", map[string]any{"n": 3, "ratio": 1.5, "pinned": true}},
		{"arrays", "# H\n\ntext", map[string]any{"aliases": []any{"one", "two"}, "mixed": []any{1, "a", false}}},
		{"body with rule", "above\n---\nbelow\n", map[string]any{"k": "v"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, err := Encode(tc.body, tc.md)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			md, body, err := Decode(text)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if body != tc.body {
				t.Errorf("body = %q, want %q", body, tc.body)
			}
			if !reflect.DeepEqual(md, tc.md) {
				t.Errorf("metadata = %#v, want %#v", md, tc.md)
			}
		})
	}
}

func TestMask(t *testing.T) {
	text := "---\na: 1\nb: 2\n---\nline one\nline two"
	body, offset := Mask(text)
	if body != "line one\nline two" {
		t.Errorf("body = %q", body)
	}
	if offset != 4 {
		t.Errorf("offset = %d, want 4", offset)
	}
	// Line 1 of the body is line offset+1 of the file.
	lines := strings.Split(text, "\n")
	if lines[offset] != "line one" {
		t.Errorf("offset does not point at first body line: %q", lines[offset])
	}

	plain, off := Mask("no front matter")
	if plain != "no front matter" || off != 0 {
		t.Errorf("Mask without block = (%q, %d)", plain, off)
	}
}

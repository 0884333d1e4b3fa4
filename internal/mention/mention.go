// Package mention extracts resolved note references from a token tree.
package mention

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/tokenizer"
)

var schemeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// Extract walks tokens depth-first and returns every reference found in the
// note at source, in document order. Repeated mentions of one target are
// kept as separate references.
func Extract(source string, tokens []tokenizer.Token) []models.Reference {
	var out []models.Reference
	walk(source, tokens, &out)
	return out
}

func walk(source string, tokens []tokenizer.Token, out *[]models.Reference) {
	for i, tok := range tokens {
		switch t := tok.(type) {
		case *tokenizer.WikiLink:
			if ref, ok := fromWikiLink(source, t); ok {
				*out = append(*out, ref)
			}
		case *tokenizer.Tag:
			if target, ok := Resolve(source, t.Name); ok {
				*out = append(*out, models.Reference{
					Kind:   models.ReferenceTag,
					Text:   "#" + t.Name,
					Target: target,
					Line:   t.Line(),
				})
			}
		case *tokenizer.Link:
			if i+1 >= len(tokens) {
				continue
			}
			label, ok := tokens[i+1].(*tokenizer.Text)
			if !ok {
				continue
			}
			if ref, ok := fromLink(source, t, label); ok {
				*out = append(*out, ref)
			}
		case *tokenizer.Block:
			walk(source, t.Children, out)
		default:
			// Text and anything unrecognised carry no mention.
		}
	}
}

func fromWikiLink(source string, t *tokenizer.WikiLink) (models.Reference, bool) {
	target, display, hasDisplay := strings.Cut(t.Payload, "|")
	target = strings.TrimSpace(target)
	target, anchor, _ := strings.Cut(target, "#")
	target = strings.TrimSpace(target)
	if target == "" {
		return models.Reference{}, false
	}
	resolved, ok := Resolve(source, target)
	if !ok {
		return models.Reference{}, false
	}
	text := strings.TrimSpace(display)
	if !hasDisplay || text == "" {
		text = strings.TrimSpace(t.Payload)
	}
	return models.Reference{
		Kind:      models.ReferenceWikiLink,
		ElementID: strings.TrimSpace(anchor),
		Text:      text,
		Target:    resolved,
		Line:      t.Line(),
	}, true
}

func fromLink(source string, t *tokenizer.Link, label *tokenizer.Text) (models.Reference, bool) {
	href := strings.TrimSpace(t.Href)
	if href == "" || IsNetworkURL(href) {
		return models.Reference{}, false
	}
	// Drop query and fragment before checking the extension.
	p, fragment, _ := strings.Cut(href, "#")
	p, _, _ = strings.Cut(p, "?")
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	if !strings.HasSuffix(strings.ToLower(p), models.NoteExtension) {
		return models.Reference{}, false
	}
	resolved, ok := Resolve(source, p)
	if !ok {
		return models.Reference{}, false
	}
	id := t.ID
	if id == "" {
		id = fragment
	}
	return models.Reference{
		Kind:      models.ReferenceLink,
		ElementID: id,
		Text:      label.Content,
		Target:    resolved,
		Line:      t.Line(),
	}, true
}

// IsNetworkURL reports whether raw carries a scheme:// prefix.
func IsNetworkURL(raw string) bool {
	return schemeRe.MatchString(raw)
}

// Resolve maps a raw link target written in the note at source to a
// canonical notebook path. Rooted targets resolve against the notebook root,
// others against the source note's directory; the note extension is appended
// when missing. Network URLs and targets outside the notebook are rejected.
func Resolve(source, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || IsNetworkURL(raw) {
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(raw), models.NoteExtension) {
		raw += models.NoteExtension
	}

	var p string
	if strings.HasPrefix(raw, "/") {
		p = path.Clean(strings.TrimLeft(raw, "/"))
	} else {
		p = path.Join(path.Dir(source), raw)
	}
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}

// Canonical normalizes a notebook path: slash-separated, cleaned, no leading
// slash. Note tables and the reference map are keyed by canonical paths.
func Canonical(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

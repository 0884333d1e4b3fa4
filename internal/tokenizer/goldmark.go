package tokenizer

import (
	"bytes"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/starford/notegraph/internal/frontmatter"
)

// Goldmark tokenizes CommonMark with goldmark, extended with wiki-link and
// tag inline syntax. Each notebook owns its own instance.
type Goldmark struct {
	md goldmark.Markdown
}

// NewGoldmark creates a goldmark-backed Tokenizer.
func NewGoldmark() *Goldmark {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithInlineParsers(
				// Ahead of the standard link parser (200), which also triggers on '['.
				util.Prioritized(&wikiLinkParser{}, 199),
				util.Prioritized(&tagParser{}, 999),
			),
		),
	)
	return &Goldmark{md: md}
}

// Tokenize parses src, ignoring any front-matter block. Line numbers refer
// to src including the front matter.
func (g *Goldmark) Tokenize(src []byte) ([]Token, error) {
	body, offset := frontmatter.Mask(string(src))
	source := []byte(body)

	doc := g.md.Parser().Parse(text.NewReader(source))

	c := &converter{src: source, lineOffset: offset}
	for i, b := range source {
		if b == '\n' {
			c.newlines = append(c.newlines, i)
		}
	}
	return c.children(doc, 1+offset), nil
}

type converter struct {
	src        []byte
	newlines   []int
	lineOffset int
}

// line maps a byte offset of the parsed body to a 1-based file line.
func (c *converter) line(offset int) int {
	return sort.SearchInts(c.newlines, offset) + 1 + c.lineOffset
}

func (c *converter) blockLine(n ast.Node, fallback int) int {
	if n.Type() != ast.TypeBlock {
		return fallback
	}
	if lines := n.Lines(); lines != nil && lines.Len() > 0 {
		return c.line(lines.At(0).Start)
	}
	return fallback
}

func (c *converter) children(n ast.Node, line int) []Token {
	var out []Token
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if link, ok := child.(*ast.Link); ok {
			pos := c.linkLine(link, line)
			out = append(out, &Link{Href: string(link.Destination), ID: attrString(link, "id"), Pos: pos})
			out = append(out, c.children(link, pos)...)
			out = append(out, &LinkClose{Pos: pos})
			continue
		}
		out = append(out, c.convert(child, line))
	}
	return out
}

func (c *converter) convert(n ast.Node, fallback int) Token {
	switch node := n.(type) {
	case *wikiLinkNode:
		return &WikiLink{Payload: string(node.payload), Pos: c.line(node.offset)}
	case *tagNode:
		return &Tag{Name: string(node.name), Pos: c.line(node.offset)}
	case *ast.Text:
		return &Text{Content: string(node.Segment.Value(c.src)), Pos: c.line(node.Segment.Start)}
	case *ast.String:
		return &Text{Content: string(node.Value), Pos: fallback}
	default:
		line := c.blockLine(n, fallback)
		return &Block{Type: n.Kind().String(), Pos: line, Children: c.children(n, line)}
	}
}

// linkLine reports the line of the first text segment beneath a link.
func (c *converter) linkLine(n ast.Node, fallback int) int {
	line := fallback
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := node.(*ast.Text); ok && entering {
			line = c.line(t.Segment.Start)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return line
}

func attrString(n ast.Node, name string) string {
	v, ok := n.AttributeString(name)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	}
	return ""
}

// --- wiki links ---

var kindWikiLink = ast.NewNodeKind("WikiLink")

type wikiLinkNode struct {
	ast.BaseInline
	payload []byte
	offset  int
}

func (n *wikiLinkNode) Kind() ast.NodeKind { return kindWikiLink }

func (n *wikiLinkNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Payload": string(n.payload)}, nil)
}

type wikiLinkParser struct{}

func (p *wikiLinkParser) Trigger() []byte { return []byte{'['} }

func (p *wikiLinkParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, seg := block.PeekLine()
	if !bytes.HasPrefix(line, []byte("[[")) {
		return nil
	}
	end := bytes.Index(line[2:], []byte("]]"))
	if end < 0 {
		return nil
	}
	payload := line[2 : 2+end]
	if len(bytes.TrimSpace(payload)) == 0 || bytes.ContainsAny(payload, "[]") {
		return nil
	}
	block.Advance(end + 4)
	return &wikiLinkNode{payload: bytes.Clone(payload), offset: seg.Start}
}

// --- tags ---

var kindTag = ast.NewNodeKind("Tag")

type tagNode struct {
	ast.BaseInline
	name   []byte
	offset int
}

func (n *tagNode) Kind() ast.NodeKind { return kindTag }

func (n *tagNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Name": string(n.name)}, nil)
}

type tagParser struct{}

func (p *tagParser) Trigger() []byte { return []byte{'#'} }

func (p *tagParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	// A tag starts a word: "a#b" and "##" are plain text.
	if prev := block.PrecendingCharacter(); prev != '\n' && !unicode.IsSpace(prev) && prev != '(' {
		return nil
	}
	line, seg := block.PeekLine()
	if len(line) < 2 || line[0] != '#' {
		return nil
	}

	rest := line[1:]
	first, size := utf8.DecodeRune(rest)
	if !unicode.IsLetter(first) {
		return nil
	}
	n := size
	for n < len(rest) {
		r, sz := utf8.DecodeRune(rest[n:])
		if !isTagRune(r) {
			break
		}
		n += sz
	}
	name := bytes.TrimRight(rest[:n], "/-")
	block.Advance(1 + len(name))
	return &tagNode{name: bytes.Clone(name), offset: seg.Start}
}

func isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '/'
}

// Package frontmatter decodes and encodes the YAML metadata block that may
// prefix a note's Markdown text.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Decode splits text into its front-matter map and the remaining body.
//
// Front matter is recognised only when the very first line is "---"; the block
// runs until the next line that is exactly "---". Without a closing delimiter
// the whole text is body. When the block is not valid YAML, Decode returns a
// nil map, the unaltered text and the parse error so callers can choose
// between lenient and strict handling.
func Decode(text string) (map[string]any, string, error) {
	block, body, ok := split(text)
	if !ok {
		return nil, text, nil
	}

	var md map[string]any
	if err := yaml.Unmarshal([]byte(block), &md); err != nil {
		return nil, text, fmt.Errorf("frontmatter: parse: %w", err)
	}
	return md, body, nil
}

// Encode serializes md above body. An empty map yields body unchanged.
func Encode(body string, md map[string]any) (string, error) {
	if len(md) == 0 {
		return body, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(md); err != nil {
		return "", fmt.Errorf("frontmatter: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("frontmatter: encode: %w", err)
	}

	var sb strings.Builder
	sb.Grow(len(delim)*2 + buf.Len() + len(body) + 2)
	sb.WriteString(delim)
	sb.WriteByte('\n')
	sb.Write(buf.Bytes())
	sb.WriteString(delim)
	sb.WriteByte('\n')
	sb.WriteString(body)
	return sb.String(), nil
}

// Mask returns text with any front-matter block removed together with the
// number of lines the block occupied, so positions computed on the body can
// be shifted back onto the original text.
func Mask(text string) (string, int) {
	block, body, ok := split(text)
	if !ok {
		return text, 0
	}
	// Opening line + block lines + closing line.
	return body, 2 + strings.Count(block, "\n")
}

// split locates the front-matter block. block excludes both delimiter lines;
// body starts right after the closing delimiter's newline.
func split(text string) (block, body string, ok bool) {
	first, rest, found := strings.Cut(text, "\n")
	if !found || strings.TrimRight(first, "\r") != delim {
		return "", "", false
	}

	for i := 0; i < len(rest); {
		end := strings.IndexByte(rest[i:], '\n')
		line, next := rest[i:], len(rest)
		if end >= 0 {
			line, next = rest[i:i+end], i+end+1
		}
		if strings.TrimRight(line, "\r") == delim {
			return rest[:i], rest[next:], true
		}
		i = next
	}
	return "", "", false
}

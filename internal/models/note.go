// Package models defines the domain types for notegraph.
package models

import (
	"slices"
	"time"
)

// NoteExtension is the file extension that marks a file as a note.
const NoteExtension = ".md"

// Metadata holds the reserved front-matter fields lifted out of a note.
type Metadata struct {
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Pinned     bool      `json:"pinned,omitempty"`
	Favorited  bool      `json:"favorited,omitempty"`
	Icon       string    `json:"icon,omitempty"`
	Aliases    []string  `json:"aliases"`
}

// Note represents one loaded Markdown document of a notebook.
type Note struct {
	Path     string   `json:"path"`
	Title    string   `json:"title"`
	Markdown string   `json:"markdown"`
	Metadata Metadata `json:"metadata"`
	// Mentions is the set of canonical target paths currently linked from
	// the note's body. It is only populated by relation processing.
	Mentions map[string]struct{} `json:"-"`
}

// MentionList returns the mention set in sorted order.
func (n *Note) MentionList() []string {
	out := make([]string, 0, len(n.Mentions))
	for m := range n.Mentions {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Clone returns a copy that shares no mutable state with n.
func (n *Note) Clone() *Note {
	c := *n
	c.Metadata.Aliases = slices.Clone(n.Metadata.Aliases)
	if n.Mentions != nil {
		c.Mentions = make(map[string]struct{}, len(n.Mentions))
		for m := range n.Mentions {
			c.Mentions[m] = struct{}{}
		}
	}
	return &c
}

// Reference kinds.
const (
	ReferenceWikiLink = "wikilink"
	ReferenceTag      = "tag"
	ReferenceLink     = "link"
)

// Reference is one concrete occurrence of a link inside a source note.
type Reference struct {
	Kind      string `json:"kind"`
	ElementID string `json:"element_id,omitempty"`
	Text      string `json:"text"`
	Target    string `json:"target"`
	// Line is the 1-based line of the mention in the source file.
	Line int `json:"line"`
}

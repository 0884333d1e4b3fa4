// Package graphview renders a reference map as a node/edge graph for
// visualization front ends.
package graphview

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/models"
)

// Node is one note in the graph.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Edge is a directed link from the note at Source to the note at Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// View is the serializable graph. ContentHash only changes when nodes or
// edges change, so consumers can skip redraws.
type View struct {
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
	ContentHash string `json:"contentHash"`
}

// TitleFunc returns the title of a loaded note.
type TitleFunc func(path string) (string, bool)

// Build walks refs target by target in sorted order. Every target becomes a
// node, every other source under it a node plus a source → target edge.
// Nodes appear once, in first-seen order.
func Build(refs map[string]map[string][]models.Reference, title TitleFunc) (View, error) {
	v := View{Nodes: []Node{}, Edges: []Edge{}}
	seen := make(map[string]struct{})

	addNode := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		v.Nodes = append(v.Nodes, Node{ID: p, Label: label(p, title)})
	}

	targets := make([]string, 0, len(refs))
	for t := range refs {
		targets = append(targets, t)
	}
	slices.Sort(targets)

	for _, target := range targets {
		addNode(target)

		sources := make([]string, 0, len(refs[target]))
		for s := range refs[target] {
			if s != target {
				sources = append(sources, s)
			}
		}
		slices.Sort(sources)

		for _, source := range sources {
			addNode(source)
			v.Edges = append(v.Edges, Edge{Source: source, Target: target})
		}
	}

	hash, err := checksum.SumJSON(struct {
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	}{v.Nodes, v.Edges})
	if err != nil {
		return View{}, fmt.Errorf("graphview: %w", err)
	}
	v.ContentHash = hash
	return v, nil
}

func label(p string, title TitleFunc) string {
	if title != nil {
		if t, ok := title(p); ok && t != "" {
			return t
		}
	}
	return strings.TrimSuffix(path.Base(p), path.Ext(p))
}

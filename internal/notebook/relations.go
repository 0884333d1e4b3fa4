package notebook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/notegraph/internal/graphview"
	"github.com/starford/notegraph/internal/mention"
	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/models"
)

// Backlink is one note linking to a target, with the references it holds in
// document order.
type Backlink struct {
	Note       *models.Note       `json:"note"`
	References []models.Reference `json:"references"`
}

// ProcessMentions recomputes the outgoing edges of note: edges of its
// previous mention set are deleted, the references found in its body are
// inserted, and the self-declaration edge is always recorded. The new
// mention set is stored on the table entry and on note.
func (nb *Notebook) ProcessMentions(ctx context.Context, note *models.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src := nb.source(note)
	tokens, err := nb.tokenizer.Tokenize([]byte(src))
	if err != nil {
		return fmt.Errorf("notebook: tokenize %s: %w", note.Path, err)
	}
	refs := mention.Extract(note.Path, tokens)

	next := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		next[r.Target] = struct{}{}
	}

	nb.relMu.Lock()
	defer nb.relMu.Unlock()

	nb.mu.RLock()
	prev := note.Mentions
	if cur, ok := nb.notes[note.Path]; ok {
		prev = cur.Mentions
	}
	nb.mu.RUnlock()

	for target := range prev {
		nb.refs.Delete(target, note.Path)
	}
	for i := range refs {
		nb.refs.Add(refs[i].Target, note.Path, &refs[i])
	}
	nb.refs.Add(note.Path, note.Path, nil)

	nb.mu.Lock()
	if cur, ok := nb.notes[note.Path]; ok {
		cur.Mentions = next
	}
	nb.mu.Unlock()
	note.Mentions = next

	metrics.MentionsProcessed.Inc()
	return nil
}

// source returns the text mentions are extracted from: the stored file, so
// reference lines match the file, or the loaded body when the file cannot
// be read.
func (nb *Notebook) source(note *models.Note) string {
	data, err := nb.provider.ReadFile(note.Path)
	if err != nil {
		nb.logger.Debug("notebook: using loaded body for mentions", slog.String("path", note.Path), slog.String("error", err.Error()))
		return note.Markdown
	}
	return string(data)
}

// GetBacklinkedNotes returns the notes linking to target keyed by path. The
// target itself is never included and sources that no longer load are
// skipped.
func (nb *Notebook) GetBacklinkedNotes(ctx context.Context, target string) map[string]*models.Note {
	target = canonical(target)
	out := make(map[string]*models.Note)
	for _, src := range nb.refs.Sources(target) {
		if src == target {
			continue
		}
		note, err := nb.GetNote(ctx, src)
		if err != nil {
			continue
		}
		out[src] = note
	}
	return out
}

// GetBacklinks returns the backlinks of target sorted by source path.
func (nb *Notebook) GetBacklinks(ctx context.Context, target string) []Backlink {
	target = canonical(target)
	out := []Backlink{}
	for _, src := range nb.refs.Sources(target) {
		if src == target {
			continue
		}
		note, err := nb.GetNote(ctx, src)
		if err != nil {
			continue
		}
		out = append(out, Backlink{Note: note, References: nb.refs.References(target, src)})
	}
	return out
}

// GetReferences returns the references from source to target.
func (nb *Notebook) GetReferences(target, source string) []models.Reference {
	return nb.refs.References(canonical(target), canonical(source))
}

// ReferenceMap returns a deep copy of the reference map.
func (nb *Notebook) ReferenceMap() map[string]map[string][]models.Reference {
	return nb.refs.Snapshot()
}

// GraphView builds the graph of the current reference map.
func (nb *Notebook) GraphView() (graphview.View, error) {
	return graphview.Build(nb.refs.Snapshot(), nb.noteTitle)
}

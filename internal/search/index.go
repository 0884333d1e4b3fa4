package search

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// DefaultLimit caps Search results when the caller passes a non-positive limit.
const DefaultLimit = 20

const (
	fieldTitle = "title"
	fieldAlias = "alias"
	fieldPath  = "path"
)

var fieldWeight = map[string]float64{
	fieldTitle: 3,
	fieldAlias: 2,
	fieldPath:  1,
}

// Document is one indexed note.
type Document struct {
	ID      string
	Path    string
	Title   string
	Aliases []string
}

// Result represents one search hit.
type Result struct {
	Path    string   `json:"path"`
	Title   string   `json:"title"`
	Aliases []string `json:"aliases"`
	Score   float64  `json:"score"`
}

// Add indexes a note under path. It is a no-op when path is already indexed.
func (ix *Index) Add(notePath, title string, aliases []string) error {
	tx, err := ix.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := insertDocument(tx, notePath, title, aliases); err != nil {
		return err
	}
	return tx.Commit()
}

// Remove drops the document for path. Removing an absent path is a no-op.
func (ix *Index) Remove(notePath string) error {
	tx, err := ix.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDocument(tx, notePath); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteDocument(tx *sql.Tx, notePath string) error {
	if _, err := tx.Exec(`DELETE FROM terms WHERE doc_id IN (SELECT id FROM documents WHERE path = ?)`, notePath); err != nil {
		return fmt.Errorf("search: remove terms %s: %w", notePath, err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, notePath); err != nil {
		return fmt.Errorf("search: remove %s: %w", notePath, err)
	}
	return nil
}

// AddAlias rebuilds the document for path with alias appended.
func (ix *Index) AddAlias(notePath, alias string) error {
	return ix.rebuild(notePath, func(aliases []string) []string {
		if slices.Contains(aliases, alias) {
			return aliases
		}
		return append(aliases, alias)
	})
}

// DeleteAlias rebuilds the document for path without alias.
func (ix *Index) DeleteAlias(notePath, alias string) error {
	return ix.rebuild(notePath, func(aliases []string) []string {
		return slices.DeleteFunc(aliases, func(a string) bool { return a == alias })
	})
}

func (ix *Index) rebuild(notePath string, edit func([]string) []string) error {
	doc, ok, err := ix.Get(notePath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	tx, err := ix.conn.Begin()
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDocument(tx, notePath); err != nil {
		return err
	}
	if err := insertDocument(tx, notePath, doc.Title, edit(doc.Aliases)); err != nil {
		return err
	}
	return tx.Commit()
}

func insertDocument(tx *sql.Tx, notePath, title string, aliases []string) error {
	if aliases == nil {
		aliases = []string{}
	}
	aliasesJSON, err := json.Marshal(aliases)
	if err != nil {
		return fmt.Errorf("search: encode aliases: %w", err)
	}

	id := uuid.NewString()
	res, err := tx.Exec(`INSERT OR IGNORE INTO documents (id, path, title, aliases) VALUES (?, ?, ?, ?)`,
		id, notePath, title, string(aliasesJSON))
	if err != nil {
		return fmt.Errorf("search: insert %s: %w", notePath, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO terms (term, doc_id, field) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("search: prepare term insert: %w", err)
	}
	defer stmt.Close()

	insert := func(field, text string) error {
		for _, term := range uniqueTerms(Tokenize(text)) {
			if _, err := stmt.Exec(term, id, field); err != nil {
				return fmt.Errorf("search: insert term: %w", err)
			}
		}
		return nil
	}

	if err := insert(fieldTitle, title); err != nil {
		return err
	}
	for _, a := range aliases {
		if err := insert(fieldAlias, a); err != nil {
			return err
		}
	}
	return insert(fieldPath, strings.TrimSuffix(notePath, path.Ext(notePath)))
}

// has reports whether path is indexed.
func (ix *Index) has(notePath string) (bool, error) {
	var n int
	err := ix.conn.QueryRow(`SELECT count(*) FROM documents WHERE path = ?`, notePath).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("search: has %s: %w", notePath, err)
	}
	return n > 0, nil
}

// Get returns the indexed document for path.
func (ix *Index) Get(notePath string) (Document, bool, error) {
	var (
		doc         Document
		aliasesJSON string
	)
	err := ix.conn.QueryRow(`SELECT id, path, title, aliases FROM documents WHERE path = ?`, notePath).
		Scan(&doc.ID, &doc.Path, &doc.Title, &aliasesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("search: get %s: %w", notePath, err)
	}
	_ = json.Unmarshal([]byte(aliasesJSON), &doc.Aliases)
	return doc, true, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() (int, error) {
	var n int
	if err := ix.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("search: count: %w", err)
	}
	return n, nil
}

// Reset empties the index.
func (ix *Index) Reset() error {
	if _, err := ix.conn.Exec(`DELETE FROM terms; DELETE FROM documents;`); err != nil {
		return fmt.Errorf("search: reset: %w", err)
	}
	return nil
}

// Search returns documents matching every term of query, best score first.
// Each query term matches indexed terms by prefix.
func (ix *Index) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	terms := uniqueTerms(Tokenize(query))
	if len(terms) == 0 {
		return []Result{}, nil
	}

	type hit struct {
		res     Result
		matched map[string]struct{}
	}
	hits := make(map[string]*hit)

	for _, term := range terms {
		rows, err := ix.conn.Query(`
			SELECT d.path, d.title, d.aliases, t.term, t.field
			FROM terms t JOIN documents d ON d.id = t.doc_id
			WHERE t.term LIKE ? ESCAPE '\'
		`, escapeLike(term)+"%")
		if err != nil {
			return nil, fmt.Errorf("search: query %q: %w", term, err)
		}
		for rows.Next() {
			var p, title, aliasesJSON, indexed, field string
			if err := rows.Scan(&p, &title, &aliasesJSON, &indexed, &field); err != nil {
				rows.Close()
				return nil, fmt.Errorf("search: scan: %w", err)
			}
			h, ok := hits[p]
			if !ok {
				h = &hit{res: Result{Path: p, Title: title}, matched: make(map[string]struct{})}
				_ = json.Unmarshal([]byte(aliasesJSON), &h.res.Aliases)
				hits[p] = h
			}
			w := fieldWeight[field]
			if indexed == term {
				w *= 2
			}
			h.res.Score += w
			h.matched[term] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("search: rows: %w", err)
		}
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		if len(h.matched) == len(terms) {
			out = append(out, h.res)
		}
	}
	slices.SortFunc(out, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

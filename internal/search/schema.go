// Package search provides the title/alias/path search index of a notebook,
// an inverted index held in a private in-memory SQLite database.
package search

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id      TEXT PRIMARY KEY,
	path    TEXT NOT NULL UNIQUE,
	title   TEXT NOT NULL DEFAULT '',
	aliases TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS terms (
	term   TEXT NOT NULL,
	doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	field  TEXT NOT NULL,
	UNIQUE(term, doc_id, field)
);

CREATE INDEX IF NOT EXISTS idx_terms_term ON terms(term);
CREATE INDEX IF NOT EXISTS idx_terms_doc ON terms(doc_id);
`

// Index wraps a sql.DB with search-index operations.
type Index struct {
	conn *sql.DB
}

// Open creates an empty index backed by its own in-memory database.
func Open() (*Index, error) {
	conn, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("search: open db: %w", err)
	}
	// Every new connection would see a fresh in-memory database.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: apply schema: %w", err)
	}
	return &Index{conn: conn}, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	return ix.conn.Close()
}

// Package store provides the SQLite-backed ingestion ledger. It records every
// successfully indexed document and, optionally, each answered question so
// operators can see what the index was built from and how it is being used.
// The ledger is bookkeeping only: the vector index never reads from it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Disabled is the LEDGER_DB value that turns the ledger off.
const Disabled = "disabled"

// Document is one ingested file.
type Document struct {
	// ID is assigned by Record when empty.
	ID string `json:"id"`
	// Path is where the file was read from.
	Path string `json:"path"`
	// Name is the file's base name.
	Name string `json:"name"`
	// Format is the loader that read it ("txt" or "pdf").
	Format string `json:"format"`
	// Chunks is the number of index entries created.
	Chunks int `json:"chunks"`
	// SHA256 is the hex digest of the file content.
	SHA256 string `json:"sha256"`
	// IngestedAt is set by Record when zero.
	IngestedAt time.Time `json:"ingested_at"`
}

// Query is one answered question.
type Query struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Chunks   int       `json:"chunks"`
	AskedAt  time.Time `json:"asked_at"`
}

// Ledger persists ingestion and query records. Implementations must be safe
// for concurrent use.
type Ledger interface {
	// Record persists an ingested document.
	Record(ctx context.Context, doc Document) error
	// List returns up to limit documents, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Document, error)
	// Count returns the number of recorded documents.
	Count(ctx context.Context) (int, error)
	// AppendQuery persists an answered question.
	AppendQuery(ctx context.Context, q Query) error
	// RecentQueries returns the most recent n queries ordered oldest-first.
	RecentQueries(ctx context.Context, n int) ([]Query, error)
	// Close releases any resources held by the ledger.
	Close() error
}

// SQLiteStore is a Ledger backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// path is the database file, or ":memory:".
	path string
}

// DefaultDBPath returns data/ledger.db relative to the working directory,
// next to the default index and upload directories.
func DefaultDBPath() string {
	return filepath.Join("data", "ledger.db")
}

// Open opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir for %s: %w", path, err)
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT    PRIMARY KEY,
    path         TEXT    NOT NULL,
    name         TEXT    NOT NULL,
    format       TEXT    NOT NULL,
    chunks       INTEGER NOT NULL,
    sha256       TEXT    NOT NULL,
    ingested_at  INTEGER NOT NULL  -- Unix nanoseconds
);
CREATE INDEX IF NOT EXISTS idx_documents_ingested ON documents (ingested_at);
CREATE TABLE IF NOT EXISTS queries (
    id        TEXT    PRIMARY KEY,
    question  TEXT    NOT NULL,
    answer    TEXT    NOT NULL,
    chunks    INTEGER NOT NULL,
    asked_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queries_asked ON queries (asked_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Name identifies the ledger in readiness output.
func (s *SQLiteStore) Name() string { return "ledger" }

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Record persists doc, filling ID and IngestedAt when unset.
func (s *SQLiteStore) Record(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now()
	}
	const q = `INSERT INTO documents (id, path, name, format, chunks, sha256, ingested_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		doc.ID, doc.Path, doc.Name, doc.Format, doc.Chunks, strings.ToLower(doc.SHA256), doc.IngestedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("store: record %s: %w", doc.Path, err)
	}
	return nil
}

// List returns up to limit documents, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	const q = `
SELECT id, path, name, format, chunks, sha256, ingested_at
FROM   documents
ORDER  BY ingested_at DESC, rowid DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		var ts int64
		if err := rows.Scan(&d.ID, &d.Path, &d.Name, &d.Format, &d.Chunks, &d.SHA256, &ts); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		d.IngestedAt = time.Unix(0, ts)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return docs, nil
}

// Count returns the number of recorded documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// AppendQuery persists an answered question.
func (s *SQLiteStore) AppendQuery(ctx context.Context, qr Query) error {
	if qr.ID == "" {
		qr.ID = uuid.NewString()
	}
	if qr.AskedAt.IsZero() {
		qr.AskedAt = time.Now()
	}
	const q = `INSERT INTO queries (id, question, answer, chunks, asked_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, qr.ID, qr.Question, qr.Answer, qr.Chunks, qr.AskedAt.UnixNano()); err != nil {
		return fmt.Errorf("store: append query: %w", err)
	}
	return nil
}

// RecentQueries returns the most recent n queries, ordered oldest-first.
// Uses a subquery to select the tail then re-orders it.
func (s *SQLiteStore) RecentQueries(ctx context.Context, n int) ([]Query, error) {
	const q = `
SELECT id, question, answer, chunks, asked_at FROM (
    SELECT rowid AS rid, id, question, answer, chunks, asked_at
    FROM   queries
    ORDER  BY asked_at DESC, rowid DESC
    LIMIT  ?
) ORDER BY asked_at ASC, rid ASC`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent queries: %w", err)
	}
	defer rows.Close()

	var out []Query
	for rows.Next() {
		var qr Query
		var ts int64
		if err := rows.Scan(&qr.ID, &qr.Question, &qr.Answer, &qr.Chunks, &ts); err != nil {
			return nil, fmt.Errorf("store: recent queries scan: %w", err)
		}
		qr.AskedAt = time.Unix(0, ts)
		out = append(out, qr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent queries rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

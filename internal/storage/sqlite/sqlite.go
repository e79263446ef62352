// Package sqlite is a catalog.Store that keeps the catalog in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"bookshelf/internal/catalog"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

// JournalEntry is one row of the catalog_events table.
type JournalEntry struct {
	Seq       int64
	EventType string
	EventData json.RawMessage
}

// Open creates or opens the database at path and applies the schema.
// This function is idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Load(ctx context.Context) (catalog.State, bool, error) {
	var st catalog.State
	var exhausted int
	err := s.db.QueryRowContext(ctx,
		`SELECT next_id, exhausted FROM catalog_meta WHERE singleton = 1`,
	).Scan(&st.NextID, &exhausted)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.State{}, false, nil
	}
	if err != nil {
		return catalog.State{}, false, fmt.Errorf("failed to read catalog meta: %w", err)
	}
	st.Exhausted = exhausted != 0

	rows, err := s.db.QueryContext(ctx, `SELECT id, title, genre FROM books ORDER BY position`)
	if err != nil {
		return catalog.State{}, false, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	st.Books = []catalog.Book{}
	for rows.Next() {
		var b catalog.Book
		var code int
		if err := rows.Scan(&b.ID, &b.Title, &code); err != nil {
			return catalog.State{}, false, fmt.Errorf("failed to scan book: %w", err)
		}
		if b.Genre, err = catalog.ParseGenre(code); err != nil {
			return catalog.State{}, false, fmt.Errorf("book %d: %w", b.ID, err)
		}
		st.Books = append(st.Books, b)
	}
	if err := rows.Err(); err != nil {
		return catalog.State{}, false, fmt.Errorf("failed to iterate books: %w", err)
	}
	return st, true, nil
}

// Commit rewrites the stored catalog to state and journals event, atomically.
func (s *Store) Commit(ctx context.Context, state catalog.State, event catalog.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return fmt.Errorf("failed to clear books: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO books (position, id, title, genre) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, b := range state.Books {
		if _, err := stmt.ExecContext(ctx, i, b.ID, b.Title, int(b.Genre)); err != nil {
			return fmt.Errorf("failed to insert book %d: %w", b.ID, err)
		}
	}

	exhausted := 0
	if state.Exhausted {
		exhausted = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_meta (singleton, next_id, exhausted) VALUES (1, ?, ?)
		ON CONFLICT (singleton) DO UPDATE SET next_id = excluded.next_id, exhausted = excluded.exhausted
	`, state.NextID, exhausted)
	if err != nil {
		return fmt.Errorf("failed to write catalog meta: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_events (event_type, event_data) VALUES (?, ?)`,
		event.Type, string(data),
	); err != nil {
		return fmt.Errorf("failed to journal event: %w", err)
	}

	return tx.Commit()
}

// Journal returns every journaled event, oldest first.
func (s *Store) Journal(ctx context.Context) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, event_type, event_data FROM catalog_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var data string
		if err := rows.Scan(&e.Seq, &e.EventType, &data); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.EventData = json.RawMessage(data)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

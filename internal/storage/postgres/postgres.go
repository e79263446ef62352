// Package postgres is a catalog.Store backed by the Postgres event store.
// Every commit journals the domain event and replaces the sealed snapshot
// of the catalog stream in the same transaction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"bookshelf/internal/catalog"
	"bookshelf/internal/eventstore"
	"bookshelf/internal/storage"
)

const streamType = "catalog"

// ErrSnapshotBehind is returned by Load when the journal has events past the snapshot.
var ErrSnapshotBehind = errors.New("snapshot behind event journal")

type Store struct {
	db       *sql.DB
	es       *eventstore.EventStore
	streamID uuid.UUID

	mu      sync.Mutex
	version int
}

// Open connects to dsn, creates the schema if needed and returns a store for
// the catalog stream identified by streamID.
func Open(ctx context.Context, dsn string, streamID uuid.UUID) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := New(db, streamID)
	if err := s.es.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. The caller owns db unless it calls Close.
func New(db *sql.DB, streamID uuid.UUID) *Store {
	return &Store{
		db:       db,
		es:       eventstore.NewEventStore(db),
		streamID: streamID,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the catalog snapshot and remembers its version for the next commit.
func (s *Store) Load(ctx context.Context) (catalog.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.es.LoadSnapshot(ctx, s.streamID)
	if err != nil {
		return catalog.State{}, false, err
	}
	current, err := s.es.CurrentVersion(ctx, s.streamID)
	if err != nil {
		return catalog.State{}, false, err
	}

	if snap == nil {
		if current != 0 {
			return catalog.State{}, false, fmt.Errorf("%w: no snapshot at version %d", ErrSnapshotBehind, current)
		}
		s.version = 0
		return catalog.State{}, false, nil
	}
	if snap.Version != current {
		return catalog.State{}, false, fmt.Errorf("%w: snapshot %d, journal %d", ErrSnapshotBehind, snap.Version, current)
	}

	st, err := storage.Unseal(snap.State)
	if err != nil {
		return catalog.State{}, false, fmt.Errorf("stream %s: %w", s.streamID, err)
	}
	s.version = snap.Version
	return st, true, nil
}

func (s *Store) Commit(ctx context.Context, state catalog.State, event catalog.Event) error {
	sealed, err := storage.Seal(state)
	if err != nil {
		return err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version, err := s.es.Commit(ctx, s.streamID, streamType, s.version, []eventstore.Event{{
		EventType: event.Type,
		EventData: data,
	}}, sealed)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	s.version = version
	return nil
}

// History returns the journaled events of the catalog stream, oldest first.
func (s *Store) History(ctx context.Context) ([]eventstore.Event, error) {
	return s.es.LoadEvents(ctx, s.streamID, 0, 0)
}

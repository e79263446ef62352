// Package eventstore journals catalog events in Postgres and keeps the latest
// state snapshot per stream, with optimistic concurrency on stream versions.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrEmptyAppend         = errors.New("no events to append")
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	stream_id UUID NOT NULL,
	stream_type TEXT NOT NULL,
	event_type TEXT NOT NULL,
	event_data JSONB NOT NULL,
	metadata JSONB,
	version INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (stream_id, version)
);
CREATE TABLE IF NOT EXISTS snapshots (
	stream_id UUID PRIMARY KEY,
	stream_type TEXT NOT NULL,
	version INT NOT NULL,
	state JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Event is one journal entry of a stream.
type Event struct {
	ID         int64             `json:"id"`
	StreamID   uuid.UUID         `json:"stream_id"`
	StreamType string            `json:"stream_type"`
	EventType  string            `json:"event_type"`
	EventData  json.RawMessage   `json:"event_data"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Version    int               `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Snapshot is the stored state of a stream as of Version.
type Snapshot struct {
	StreamID   uuid.UUID       `json:"stream_id"`
	StreamType string          `json:"stream_type"`
	Version    int             `json:"version"`
	State      json.RawMessage `json:"state"`
	CreatedAt  time.Time       `json:"created_at"`
}

type EventStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{
		db:     db,
		tracer: otel.Tracer("bookshelf/eventstore"),
	}
}

// EnsureSchema creates the events and snapshots tables if missing.
func (es *EventStore) EnsureSchema(ctx context.Context) error {
	if _, err := es.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create eventstore schema: %w", err)
	}
	return nil
}

// Commit appends events after expectedVersion and stores the snapshot taken
// at the resulting version, all in one serializable transaction.
func (es *EventStore) Commit(ctx context.Context, streamID uuid.UUID, streamType string, expectedVersion int, events []Event, state json.RawMessage) (int, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.commit",
		trace.WithAttributes(
			attribute.String("stream.id", streamID.String()),
			attribute.String("stream.type", streamType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if len(events) == 0 {
		return expectedVersion, ErrEmptyAppend
	}

	tx, err := es.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE stream_id = $1
	`, streamID).Scan(&currentVersion)
	if err != nil {
		return 0, fmt.Errorf("query current version: %w", err)
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return 0, ErrConcurrencyConflict
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (stream_id, stream_type, event_type, event_data, metadata, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	version := expectedVersion
	for i, event := range events {
		version++
		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata of event %d: %w", i, err)
		}

		var eventID int64
		err = stmt.QueryRowContext(ctx,
			streamID,
			streamType,
			event.EventType,
			string(event.EventData),
			string(metadataJSON),
			version,
			time.Now().UTC(),
		).Scan(&eventID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return 0, ErrConcurrencyConflict
			}
			return 0, fmt.Errorf("insert event %d: %w", i, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", eventID),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (stream_id, stream_type, version, state, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stream_id) DO UPDATE
		SET version = EXCLUDED.version,
		    state = EXCLUDED.state,
		    created_at = EXCLUDED.created_at
	`, streamID, streamType, version, string(state), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	span.SetAttributes(attribute.Int("committed.version", version))
	return version, nil
}

// LoadEvents returns the events of a stream from fromVersion on, oldest first.
// A toVersion of zero means no upper bound.
func (es *EventStore) LoadEvents(ctx context.Context, streamID uuid.UUID, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("stream.id", streamID.String()),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query := `
		SELECT id, stream_id, stream_type, event_type, event_data, metadata, version, created_at
		FROM events
		WHERE stream_id = $1
		AND version >= $2
	`
	args := []interface{}{streamID, fromVersion}
	if toVersion > 0 {
		query += " AND version <= $3"
		args = append(args, toVersion)
	}
	query += " ORDER BY version ASC"

	rows, err := es.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var data, metadataJSON []byte
		if err := rows.Scan(
			&event.ID,
			&event.StreamID,
			&event.StreamType,
			&event.EventType,
			&data,
			&metadataJSON,
			&event.Version,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.EventData = data
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of event %d: %w", event.ID, err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// CurrentVersion returns the latest event version of a stream, or zero.
func (es *EventStore) CurrentVersion(ctx context.Context, streamID uuid.UUID) (int, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.current_version",
		trace.WithAttributes(attribute.String("stream.id", streamID.String())),
	)
	defer span.End()

	var version int
	err := es.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE stream_id = $1
	`, streamID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

// LoadSnapshot returns the latest snapshot of a stream, or nil if none exists.
func (es *EventStore) LoadSnapshot(ctx context.Context, streamID uuid.UUID) (*Snapshot, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load_snapshot",
		trace.WithAttributes(attribute.String("stream.id", streamID.String())),
	)
	defer span.End()

	var snapshot Snapshot
	var state []byte
	err := es.db.QueryRowContext(ctx, `
		SELECT stream_id, stream_type, version, state, created_at
		FROM snapshots
		WHERE stream_id = $1
	`, streamID).Scan(
		&snapshot.StreamID,
		&snapshot.StreamType,
		&snapshot.Version,
		&state,
		&snapshot.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snapshot.State = state

	return &snapshot, nil
}

// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface. The mutex is the single-writer
// boundary around the Catalog, which holds no locks of its own.
type service struct {
	mu      sync.Mutex
	catalog *Catalog
	store   Store
	logger  *slog.Logger
	tracer  trace.Tracer

	added   metric.Int64Counter
	updated metric.Int64Counter
	removed metric.Int64Counter
	live    metric.Int64UpDownCounter
}

// NewService loads the persisted catalog from store and returns a service around it.
func NewService(ctx context.Context, store Store, logger *slog.Logger) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, ok, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog state: %w", err)
	}
	c := New()
	if ok {
		if c, err = Restore(st); err != nil {
			return nil, err
		}
	}

	s := &service{
		catalog: c,
		store:   store,
		logger:  logger,
		tracer:  otel.Tracer("bookshelf/catalog"),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	s.live.Add(ctx, int64(c.Len()))

	logger.Info("catalog loaded", "books", c.Len(), "next_id", c.Snapshot().NextID, "restored", ok)
	return s, nil
}

func (s *service) initMetrics() error {
	meter := otel.Meter("bookshelf/catalog")
	var err error
	if s.added, err = meter.Int64Counter("catalog.books.added"); err != nil {
		return err
	}
	if s.updated, err = meter.Int64Counter("catalog.books.updated"); err != nil {
		return err
	}
	if s.removed, err = meter.Int64Counter("catalog.books.removed"); err != nil {
		return err
	}
	s.live, err = meter.Int64UpDownCounter("catalog.books.live")
	return err
}

// AddBook stamps a new id, appends the book and commits the new state.
func (s *service) AddBook(ctx context.Context, title string, genre Genre) (Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add",
		trace.WithAttributes(attribute.String("book.genre", genre.String())),
	)
	defer span.End()

	if !genre.Valid() {
		return Book{}, fmt.Errorf("%w: %d", ErrInvalidGenreCode, genre)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.catalog.Snapshot()
	id, err := s.catalog.Add(title, genre)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("add rejected", "error", err)
		return Book{}, err
	}
	book := Book{ID: id, Title: title, Genre: genre}

	event := Event{Type: EventBookAdded, Data: BookAddedEvent(book)}
	if err := s.commit(ctx, prev, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Book{}, err
	}

	span.SetAttributes(attribute.Int64("book.id", int64(id)))
	s.added.Add(ctx, 1)
	s.live.Add(ctx, 1)
	s.logger.Info("book added", "id", id, "genre", genre.String())
	return book, nil
}

// ListBooks returns every live book in insertion order.
func (s *service) ListBooks(ctx context.Context) ([]Book, error) {
	_, span := s.tracer.Start(ctx, "catalog.list")
	defer span.End()

	s.mu.Lock()
	books := s.catalog.List()
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("books.count", len(books)))
	return books, nil
}

// GetBook looks a book up by its exact id.
func (s *service) GetBook(ctx context.Context, id uint32) (Book, bool, error) {
	_, span := s.tracer.Start(ctx, "catalog.get",
		trace.WithAttributes(attribute.Int64("book.id", int64(id))),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.catalog.Get(id)
	return book, ok, nil
}

// UpdateBook replaces a book's title and genre. A missing id is reported as false.
func (s *service) UpdateBook(ctx context.Context, id uint32, title string, genre Genre) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.update",
		trace.WithAttributes(
			attribute.Int64("book.id", int64(id)),
			attribute.String("book.genre", genre.String()),
		),
	)
	defer span.End()

	if !genre.Valid() {
		return false, fmt.Errorf("%w: %d", ErrInvalidGenreCode, genre)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.catalog.Snapshot()
	if !s.catalog.Update(id, title, genre) {
		span.SetAttributes(attribute.Bool("book.found", false))
		return false, nil
	}

	event := Event{Type: EventBookUpdated, Data: BookUpdatedEvent{ID: id, Title: title, Genre: genre}}
	if err := s.commit(ctx, prev, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetAttributes(attribute.Bool("book.found", true))
	s.updated.Add(ctx, 1)
	s.logger.Info("book updated", "id", id, "genre", genre.String())
	return true, nil
}

// RemoveBook deletes a book. A missing id is reported as false.
func (s *service) RemoveBook(ctx context.Context, id uint32) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.remove",
		trace.WithAttributes(attribute.Int64("book.id", int64(id))),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.catalog.Snapshot()
	if !s.catalog.Remove(id) {
		span.SetAttributes(attribute.Bool("book.found", false))
		return false, nil
	}

	event := Event{Type: EventBookRemoved, Data: BookRemovedEvent{ID: id}}
	if err := s.commit(ctx, prev, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetAttributes(attribute.Bool("book.found", true))
	s.removed.Add(ctx, 1)
	s.live.Add(ctx, -1)
	s.logger.Info("book removed", "id", id)
	return true, nil
}

// commit persists the current state. On failure the catalog is put back to
// prev so memory never runs ahead of the store. Callers hold s.mu.
func (s *service) commit(ctx context.Context, prev State, event Event) error {
	if err := s.store.Commit(ctx, s.catalog.Snapshot(), event); err != nil {
		restored, rerr := Restore(prev)
		if rerr != nil {
			// prev came from a live catalog, so this only fires on a bug.
			panic(fmt.Sprintf("catalog: restoring pre-commit state: %v", rerr))
		}
		s.catalog = restored
		s.logger.Error("commit failed, state rolled back", "event", event.Type, "error", err)
		return fmt.Errorf("failed to commit catalog state: %w", err)
	}
	return nil
}

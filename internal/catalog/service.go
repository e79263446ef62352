// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, title string, genre Genre) (Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	GetBook(ctx context.Context, id uint32) (Book, bool, error)
	UpdateBook(ctx context.Context, id uint32, title string, genre Genre) (bool, error)
	RemoveBook(ctx context.Context, id uint32) (bool, error)
}

// Store persists the whole catalog state. Load reports false when nothing
// has been committed yet. Commit receives the state after a mutation together
// with the event describing it.
type Store interface {
	Load(ctx context.Context) (State, bool, error)
	Commit(ctx context.Context, state State, event Event) error
}

package sqlite

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/catalog"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "catalog.db"))
	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommitAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s := openTestStore(t, path)

	st := catalog.State{
		Books: []catalog.Book{
			{ID: 3, Title: "third", Genre: catalog.Romance},
			{ID: 5, Title: "fifth", Genre: catalog.Children},
		},
		NextID: 6,
	}
	require.NoError(t, s.Commit(ctx, st, catalog.Event{
		Type: catalog.EventBookAdded,
		Data: catalog.BookAddedEvent{ID: 5, Title: "fifth", Genre: catalog.Children},
	}))

	shrunk := catalog.State{Books: st.Books[1:], NextID: 6}
	require.NoError(t, s.Commit(ctx, shrunk, catalog.Event{
		Type: catalog.EventBookRemoved,
		Data: catalog.BookRemovedEvent{ID: 3},
	}))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path)
	got, ok, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, shrunk, got)

	journal, err := reopened.Journal(ctx)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, catalog.EventBookAdded, journal[0].EventType)
	assert.Equal(t, catalog.EventBookRemoved, journal[1].EventType)
	assert.JSONEq(t, `{"id":3}`, string(journal[1].EventData))

	var added catalog.BookAddedEvent
	require.NoError(t, json.Unmarshal(journal[0].EventData, &added))
	assert.Equal(t, catalog.Children, added.Genre)
}

func TestCommitKeepsInsertionOrderAndMaxID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "catalog.db"))

	st := catalog.State{
		Books: []catalog.Book{
			{ID: 10, Title: "b", Genre: catalog.Fiction},
			{ID: math.MaxUint32, Title: "a", Genre: catalog.Other},
		},
		NextID:    math.MaxUint32,
		Exhausted: true,
	}
	require.NoError(t, s.Commit(ctx, st, catalog.Event{Type: catalog.EventBookAdded}))

	got, _, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestServiceOverSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	svc, err := catalog.NewService(ctx, openTestStore(t, path), nil)
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "Livro A", catalog.Fiction)
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "Livro B", catalog.Biography)
	require.NoError(t, err)
	found, err := svc.RemoveBook(ctx, 2)
	require.NoError(t, err)
	require.True(t, found)

	restarted, err := catalog.NewService(ctx, openTestStore(t, path), nil)
	require.NoError(t, err)
	books, err := restarted.ListBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Book{{ID: 1, Title: "Livro A", Genre: catalog.Fiction}}, books)

	book, err := restarted.AddBook(ctx, "Livro C", catalog.Poetry)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), book.ID)
}

// internal/catalog/catalog.go
package catalog

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrIDSpaceExhausted is returned by Add once id math.MaxUint32 has been issued.
	ErrIDSpaceExhausted = errors.New("identifier space exhausted")
	// ErrCorruptState is returned by Restore when a State breaks a catalog invariant.
	ErrCorruptState = errors.New("corrupt catalog state")
)

// Catalog owns book identity, existence and mutation.
//
// A Catalog is not safe for concurrent use. Callers that share one must
// serialize access around every call.
type Catalog struct {
	books     []Book
	nextID    uint32
	exhausted bool
}

// New returns an empty catalog whose first id will be 1.
func New() *Catalog {
	return &Catalog{nextID: 1}
}

// Restore rebuilds a catalog from persisted state after checking its invariants.
func Restore(st State) (*Catalog, error) {
	if st.NextID == 0 {
		return nil, fmt.Errorf("%w: next id is zero", ErrCorruptState)
	}
	seen := make(map[uint32]struct{}, len(st.Books))
	for _, b := range st.Books {
		if b.ID == 0 {
			return nil, fmt.Errorf("%w: book with zero id", ErrCorruptState)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrCorruptState, b.ID)
		}
		seen[b.ID] = struct{}{}
		if !b.Genre.Valid() {
			return nil, fmt.Errorf("%w: book %d: %w", ErrCorruptState, b.ID, ErrInvalidGenreCode)
		}
		// An exhausted catalog has issued NextID itself.
		if b.ID > st.NextID || (b.ID == st.NextID && !st.Exhausted) {
			return nil, fmt.Errorf("%w: id %d not below next id %d", ErrCorruptState, b.ID, st.NextID)
		}
	}
	if st.Exhausted && st.NextID != math.MaxUint32 {
		return nil, fmt.Errorf("%w: exhausted below max id", ErrCorruptState)
	}

	books := make([]Book, len(st.Books))
	copy(books, st.Books)
	return &Catalog{books: books, nextID: st.NextID, exhausted: st.Exhausted}, nil
}

// Add appends a new book and returns its id.
func (c *Catalog) Add(title string, genre Genre) (uint32, error) {
	if c.exhausted {
		return 0, ErrIDSpaceExhausted
	}
	id := c.nextID
	c.books = append(c.books, Book{ID: id, Title: title, Genre: genre})
	if id == math.MaxUint32 {
		c.exhausted = true
	} else {
		c.nextID++
	}
	return id, nil
}

// List returns a copy of every live book in insertion order.
func (c *Catalog) List() []Book {
	books := make([]Book, len(c.books))
	copy(books, c.books)
	return books
}

// Get returns the book with the given id.
func (c *Catalog) Get(id uint32) (Book, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.books[i], true
	}
	return Book{}, false
}

// Update replaces the title and genre of the book with the given id in place.
// It reports false, leaving the catalog untouched, when no such book exists.
func (c *Catalog) Update(id uint32, title string, genre Genre) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.books[i].Title = title
	c.books[i].Genre = genre
	return true
}

// Remove deletes the book with the given id, keeping the order of the rest.
func (c *Catalog) Remove(id uint32) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.books = append(c.books[:i], c.books[i+1:]...)
	return true
}

// Len returns the number of live books.
func (c *Catalog) Len() int {
	return len(c.books)
}

// Snapshot returns the full state for persistence.
func (c *Catalog) Snapshot() State {
	return State{Books: c.List(), NextID: c.nextID, Exhausted: c.exhausted}
}

func (c *Catalog) indexOf(id uint32) int {
	for i := range c.books {
		if c.books[i].ID == id {
			return i
		}
	}
	return -1
}

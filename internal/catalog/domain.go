// internal/catalog/domain.go
package catalog

// Book is a single catalog record. ID is assigned by the Catalog and never changes.
type Book struct {
	ID    uint32 `json:"id"`
	Title string `json:"title"`
	Genre Genre  `json:"genre"`
}

// State is the unit of persistence: the whole catalog, nothing partial.
type State struct {
	Books     []Book `json:"books"`
	NextID    uint32 `json:"next_id"`
	Exhausted bool   `json:"exhausted,omitempty"`
}

// Event represents a domain event related to the catalog.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	EventBookAdded   = "BookAdded"
	EventBookUpdated = "BookUpdated"
	EventBookRemoved = "BookRemoved"
)

// BookAddedEvent is published when a book is added.
type BookAddedEvent struct {
	ID    uint32 `json:"id"`
	Title string `json:"title"`
	Genre Genre  `json:"genre"`
}

// BookUpdatedEvent is published when a book's title or genre is replaced.
type BookUpdatedEvent struct {
	ID    uint32 `json:"id"`
	Title string `json:"title"`
	Genre Genre  `json:"genre"`
}

// BookRemovedEvent is published when a book leaves the catalog.
type BookRemovedEvent struct {
	ID uint32 `json:"id"`
}

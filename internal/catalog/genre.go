// internal/catalog/genre.go
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// ErrInvalidGenreCode is returned when a raw code does not name a Genre.
var ErrInvalidGenreCode = errors.New("invalid genre code")

// Genre is the closed set of book categories. The numeric values are the
// wire codes and must never be renumbered.
type Genre uint8

const (
	Fiction Genre = iota
	Biography
	Poetry
	Children
	Romance
	Other
)

var genreNames = [...]string{
	Fiction:   "Fiction",
	Biography: "Biography",
	Poetry:    "Poetry",
	Children:  "Children",
	Romance:   "Romance",
	Other:     "Other",
}

// ParseGenre decodes a wire code. Codes outside 0-5 fail with ErrInvalidGenreCode.
func ParseGenre(code int) (Genre, error) {
	if code < int(Fiction) || code > int(Other) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidGenreCode, code)
	}
	return Genre(code), nil
}

// ParseGenreName accepts either a genre name (case-insensitive) or its numeric code.
func ParseGenreName(s string) (Genre, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		return ParseGenre(code)
	}
	fold := cases.Fold()
	want := fold.String(s)
	for g, name := range genreNames {
		if fold.String(name) == want {
			return Genre(g), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidGenreCode, s)
}

// AllGenres returns every genre in code order.
func AllGenres() []Genre {
	genres := make([]Genre, 0, len(genreNames))
	for g := range genreNames {
		genres = append(genres, Genre(g))
	}
	return genres
}

// Valid reports whether g is one of the declared variants.
func (g Genre) Valid() bool {
	return g <= Other
}

func (g Genre) String() string {
	if !g.Valid() {
		return "Genre(" + strconv.Itoa(int(g)) + ")"
	}
	return genreNames[g]
}

// MarshalJSON encodes the genre as its integer code.
func (g Genre) MarshalJSON() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGenreCode, g)
	}
	return []byte(strconv.Itoa(int(g))), nil
}

// UnmarshalJSON decodes an integer code, rejecting anything outside 0-5.
func (g *Genre) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidGenreCode, data)
	}
	parsed, err := ParseGenre(code)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

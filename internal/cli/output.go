package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"bookshelf/internal/catalog"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeBooks(w io.Writer, format string, books ...catalog.Book) error {
	if format == "json" {
		if books == nil {
			books = []catalog.Book{}
		}
		return writeJSON(w, books)
	}
	if len(books) == 0 {
		_, err := fmt.Fprintln(w, "no books")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGENRE\tTITLE")
	for _, b := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", b.ID, b.Genre, b.Title)
	}
	return tw.Flush()
}

func writeFound(w io.Writer, format, verb string, id uint32, found bool) error {
	if format == "json" {
		return writeJSON(w, map[string]interface{}{"id": id, "found": found})
	}
	if !found {
		_, err := fmt.Fprintf(w, "book %d not found\n", id)
		return err
	}
	_, err := fmt.Fprintf(w, "book %d %s\n", id, verb)
	return err
}

func writeGenres(w io.Writer, format string, genres []catalog.Genre) error {
	if format == "json" {
		type genreOut struct {
			Code catalog.Genre `json:"code"`
			Name string        `json:"name"`
		}
		out := make([]genreOut, 0, len(genres))
		for _, g := range genres {
			out = append(out, genreOut{Code: g, Name: g.String()})
		}
		return writeJSON(w, out)
	}
	for _, g := range genres {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", g, g); err != nil {
			return err
		}
	}
	return nil
}

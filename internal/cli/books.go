package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bookshelf/internal/catalog"
)

func parseBookID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid book id %q", s)
	}
	return uint32(id), nil
}

// NewAddCommand creates `bookshelf add <title> --genre <name|code>`.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	var genreArg string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a book to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			genre, err := catalog.ParseGenreName(genreArg)
			if err != nil {
				return err
			}
			book, err := opts.newClient(opts.Server).AddBook(cmd.Context(), args[0], genre)
			if err != nil {
				return err
			}
			return writeBooks(cmd.OutOrStdout(), opts.Format, book)
		},
	}
	cmd.Flags().StringVarP(&genreArg, "genre", "g", "", "genre name or code (0-5)")
	cmd.MarkFlagRequired("genre")
	return cmd
}

// NewListCommand creates `bookshelf list`.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every book in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := opts.newClient(opts.Server).ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			return writeBooks(cmd.OutOrStdout(), opts.Format, books...)
		},
	}
}

// NewGetCommand creates `bookshelf get <id>`.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			book, ok, err := opts.newClient(opts.Server).GetBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("book %d not found", id)
			}
			return writeBooks(cmd.OutOrStdout(), opts.Format, book)
		},
	}
}

// NewUpdateCommand creates `bookshelf update <id> <title> --genre <name|code>`.
func NewUpdateCommand(opts *RootOptions) *cobra.Command {
	var genreArg string
	cmd := &cobra.Command{
		Use:   "update <id> <title>",
		Short: "Replace a book's title and genre",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			genre, err := catalog.ParseGenreName(genreArg)
			if err != nil {
				return err
			}
			found, err := opts.newClient(opts.Server).UpdateBook(cmd.Context(), id, args[1], genre)
			if err != nil {
				return err
			}
			return writeFound(cmd.OutOrStdout(), opts.Format, "updated", id, found)
		},
	}
	cmd.Flags().StringVarP(&genreArg, "genre", "g", "", "genre name or code (0-5)")
	cmd.MarkFlagRequired("genre")
	return cmd
}

// NewRemoveCommand creates `bookshelf remove <id>`.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a book",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			found, err := opts.newClient(opts.Server).RemoveBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeFound(cmd.OutOrStdout(), opts.Format, "removed", id, found)
		},
	}
}

// NewGenresCommand creates `bookshelf genres`. It needs no server.
func NewGenresCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List the genre codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeGenres(cmd.OutOrStdout(), opts.Format, catalog.AllGenres())
		},
	}
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/service"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

// contentWidth bounds clipping content in text tables.
const contentWidth = 60

// bookDetail is one book with its clippings.
type bookDetail struct {
	Book      *domain.Book             `json:"book"`
	Clippings []*domain.StoredClipping `json:"clippings"`
}

func newBooksCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "books [id]",
		Short: "List the books in the library",
		Long: `List the books in the library, most recently read first.

With a book ID, show that book and its clippings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			injector := opts.container()
			defer func() { _ = injector.Shutdown() }()

			library, err := invoke[*service.LibraryService](injector)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id < 1 {
					return fmt.Errorf("invalid book id %q", args[0])
				}
				book, err := library.GetBook(cmd.Context(), id)
				if err != nil {
					return err
				}
				clippings, err := library.ClippingsForBook(cmd.Context(), id)
				if err != nil {
					return err
				}
				detail := bookDetail{Book: book, Clippings: clippings}
				if isStructured(opts.output) {
					return writeStructured(w, opts.output, detail)
				}
				printBookDetail(w, detail)
				return nil
			}

			if err := library.LastError(); err != nil {
				return err
			}
			books := library.Books()
			if books == nil {
				books = []*domain.Book{}
			}
			if isStructured(opts.output) {
				return writeStructured(w, opts.output, books)
			}
			printBooks(w, books)
			return nil
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			injector := opts.container()
			defer func() { _ = injector.Shutdown() }()

			library, err := invoke[*service.LibraryService](injector)
			if err != nil {
				return err
			}
			entries, err := library.BatchHistory(cmd.Context())
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []*domain.BatchHistoryEntry{}
			}

			w := cmd.OutOrStdout()
			if isStructured(opts.output) {
				return writeStructured(w, opts.output, entries)
			}
			printHistory(w, entries)
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			injector := opts.container()
			defer func() { _ = injector.Shutdown() }()

			library, err := invoke[*service.LibraryService](injector)
			if err != nil {
				return err
			}
			stats, err := library.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if isStructured(opts.output) {
				return writeStructured(w, opts.output, stats)
			}
			printStats(w, stats)
			return nil
		},
	}
}

func printBooks(w io.Writer, books []*domain.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("The library is empty."))
		return
	}
	t := newTable("ID", "Title", "Author", "Clippings", "Last read")
	for _, b := range books {
		t.Row(strconv.FormatInt(b.ID, 10), b.Title, b.Author, strconv.Itoa(b.ClippingCount), humanize.Time(b.LastReadDate))
	}
	fmt.Fprintln(w, t.String())
}

func printBookDetail(w io.Writer, d bookDetail) {
	fmt.Fprintln(w, titleStyle.Render(d.Book.Title))
	if d.Book.Author != "" {
		fmt.Fprintln(w, mutedStyle.Render("by "+d.Book.Author))
	}
	if len(d.Clippings) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No clippings."))
		return
	}

	t := newTable("Type", "Location", "Date", "Content")
	for _, c := range d.Clippings {
		content := strings.Join(strings.Fields(c.Content), " ")
		t.Row(string(c.Type), c.Location, c.Date.Format("2006-01-02"), ansi.Truncate(content, contentWidth, "…"))
	}
	fmt.Fprintln(w, t.String())
}

func printHistory(w io.Writer, entries []*domain.BatchHistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No batches yet."))
		return
	}
	t := newTable("Created", "File", "Status", "Books", "Clippings", "Format")
	for _, e := range entries {
		t.Row(
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.FileName,
			string(e.Status),
			strconv.Itoa(e.BookCount),
			strconv.Itoa(e.ClippingCount),
			e.ExportedFormat,
		)
	}
	fmt.Fprintln(w, t.String())
}

func printStats(w io.Writer, s *store.LibraryStats) {
	t := newTable("Books", "Clippings", "Highlights", "Notes", "Bookmarks")
	t.Row(
		strconv.Itoa(s.TotalBooks),
		strconv.Itoa(s.TotalClippings),
		strconv.Itoa(s.Highlights),
		strconv.Itoa(s.Notes),
		strconv.Itoa(s.Bookmarks),
	)
	fmt.Fprintln(w, t.String())
}

package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kindlehubapp/kindlehub/internal/batch"
	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/importfile"
	"github.com/kindlehubapp/kindlehub/internal/logger"
	"github.com/kindlehubapp/kindlehub/internal/service"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

// Import outcomes.
const (
	outcomeStaged    = "staged"
	outcomeCommitted = "committed"
	outcomeDiscarded = "discarded"
)

// importReport describes what an import did with a file.
type importReport struct {
	BatchID  string            `json:"batch_id"`
	FileName string            `json:"file_name"`
	FileSize int64             `json:"file_size"`
	Stats    batch.Stats       `json:"stats"`
	Books    []importBook      `json:"books"`
	Warnings []batch.Warning   `json:"warnings"`
	Outcome  string            `json:"outcome"`
	Saved    *store.SaveResult `json:"saved,omitempty"`
	Warning  string            `json:"warning,omitempty"`
}

type importBook struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Clippings int    `json:"clippings"`
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var commit, discard bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Stage a parsed clippings file",
		Long: `Stage a parsed clippings file as a batch and report what it contains.

The file is the clipping parser's JSON or YAML output. Without flags the
batch is only previewed and nothing is written. --commit saves the batch
into the library; --discard records it in the history as discarded.

Examples:
  kindlehub import clippings.json
  kindlehub import clippings.yaml --commit
  kindlehub import clippings.json --discard -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome := outcomeStaged
			switch {
			case commit:
				outcome = outcomeCommitted
			case discard:
				outcome = outcomeDiscarded
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), opts, args[0], outcome)
		},
	}

	cmd.Flags().BoolVar(&commit, "commit", false, "save the batch into the library")
	cmd.Flags().BoolVar(&discard, "discard", false, "record the batch as discarded")
	cmd.MarkFlagsMutuallyExclusive("commit", "discard")

	return cmd
}

func runImport(ctx context.Context, w io.Writer, opts *rootOptions, path, outcome string) error {
	result, err := importfile.NewReader(nil).Read(path)
	if err != nil {
		return describeError(err)
	}

	injector := opts.container()
	defer func() { _ = injector.Shutdown() }()

	factory, err := invoke[service.BatchServiceFactory](injector)
	if err != nil {
		return err
	}
	log, err := invoke[*logger.Logger](injector)
	if err != nil {
		return err
	}

	batches := factory()
	batches.CreateBatch(result.Clippings, result.Source)
	report := newImportReport(batches.Current())

	switch outcome {
	case outcomeCommitted:
		res, err := batches.CommitToDatabase(ctx)
		if res == nil {
			return describeError(err)
		}
		report.Saved = &res.Saved
		if err != nil {
			log.Warn("batch saved but history not recorded", "batch_id", res.BatchID, "error", err)
			report.Warning = "history not recorded: " + err.Error()
		}
	case outcomeDiscarded:
		if err := batches.DiscardBatch(ctx); err != nil {
			return describeError(err)
		}
	default:
		batches.ClearBatch()
	}
	report.Outcome = outcome

	if isStructured(opts.output) {
		return writeStructured(w, opts.output, report)
	}
	printImportReport(w, report)
	return nil
}

func newImportReport(b *batch.Batch) *importReport {
	report := &importReport{
		BatchID:  b.ID,
		FileName: b.FileName,
		FileSize: b.FileSize,
		Stats:    b.Stats,
		Books:    make([]importBook, 0, b.Books.Len()),
		Warnings: slices.Clone(b.Warnings),
	}
	for _, book := range b.BookList() {
		report.Books = append(report.Books, importBook{
			Title:     book.Title,
			Author:    book.Author,
			Clippings: len(book.ClippingIDs),
		})
	}
	return report
}

func printImportReport(w io.Writer, r *importReport) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Batch"), r.BatchID)
	fmt.Fprintf(w, "%s\n", mutedStyle.Render(fmt.Sprintf("%s (%s)", r.FileName, humanize.Bytes(uint64(r.FileSize)))))
	fmt.Fprintf(w, "%d clippings in %d books: %d highlights, %d notes, %d bookmarks\n",
		r.Stats.TotalClippings, r.Stats.TotalBooks,
		r.Stats.ByType.Highlights, r.Stats.ByType.Notes, r.Stats.ByType.Bookmarks)
	if r.Stats.DuplicatesRemoved > 0 || r.Stats.LinkedNotes > 0 {
		fmt.Fprintf(w, "%s\n", mutedStyle.Render(fmt.Sprintf("parser removed %d duplicates and linked %d notes",
			r.Stats.DuplicatesRemoved, r.Stats.LinkedNotes)))
	}

	if len(r.Books) > 0 {
		t := newTable("Title", "Author", "Clippings")
		for _, b := range r.Books {
			t.Row(b.Title, b.Author, fmt.Sprint(b.Clippings))
		}
		fmt.Fprintln(w, t.String())
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "%s\n", titleStyle.Render(fmt.Sprintf("Warnings (%d)", len(r.Warnings))))
		for _, warn := range r.Warnings {
			line := fmt.Sprintf("  [%s] %s", warn.Severity, warn.Message)
			if warn.Details != "" {
				line += ": " + warn.Details
			}
			fmt.Fprintln(w, severityStyle(warn.Severity).Render(line))
		}
	}

	switch r.Outcome {
	case outcomeCommitted:
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Committed: %d books created, %d clippings inserted",
			r.Saved.BooksCreated, r.Saved.ClippingsInserted)))
		if r.Warning != "" {
			fmt.Fprintln(w, warningStyle.Render(r.Warning))
		}
	case outcomeDiscarded:
		fmt.Fprintln(w, warningStyle.Render("Discarded"))
	default:
		fmt.Fprintln(w, mutedStyle.Render("Nothing written. Re-run with --commit to save or --discard to record a discard."))
	}
}

// describeError folds validation details into the message so the CLI
// prints which fields failed.
func describeError(err error) error {
	var domainErr *domainerrors.Error
	if !domainerrors.As(err, &domainErr) {
		return err
	}
	details, ok := domainErr.Details.(map[string]string)
	if !ok || len(details) == 0 {
		return err
	}

	parts := make([]string, 0, len(details))
	for _, field := range slices.Sorted(maps.Keys(details)) {
		parts = append(parts, field+" "+details[field])
	}
	return fmt.Errorf("%w: %s", err, strings.Join(parts, "; "))
}

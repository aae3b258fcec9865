package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/normalize"
)

// Source describes the file a batch was imported from.
type Source struct {
	FileName string
	FileSize int64
	Upstream UpstreamStats
}

// Option configures a batch at creation.
type Option func(*Batch)

// WithDuplicateThreshold overrides the similarity threshold used by
// DetectDuplicates. Values outside (0, 1] are ignored.
func WithDuplicateThreshold(threshold float64) Option {
	return func(b *Batch) {
		if threshold > 0 && threshold <= 1 {
			b.threshold = threshold
		}
	}
}

// New stages parsed clippings into a pending batch.
//
// Every clipping gets a fresh batch clipping ID and joins the book grouping
// for its normalized title and author. Clippings with blank content get an
// "Empty content" warning, and duplicate detection runs once the batch is
// fully populated. An empty clipping list yields a valid empty batch.
func New(batchID string, ids IDSource, clippings []domain.Clipping, src Source, now time.Time, opts ...Option) *Batch {
	b := &Batch{
		ID:        batchID,
		CreatedAt: now,
		FileName:  src.FileName,
		FileSize:  src.FileSize,
		Status:    domain.BatchStatusPending,
		Clippings: NewOrderedMap[string, *Clipping](),
		Books:     NewOrderedMap[string, *Book](),
		Stats: Stats{
			DuplicatesRemoved: src.Upstream.DuplicatesRemoved,
			LinkedNotes:       src.Upstream.LinkedNotes,
		},
		Warnings:  []Warning{},
		ids:       ids,
		threshold: normalize.DefaultDuplicateThreshold,
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, c := range clippings {
		staged := &Clipping{
			Clipping:        c.Clone(),
			BatchClippingID: ids.ClippingID(),
			Warnings:        []string{},
		}
		b.Clippings.Set(staged.BatchClippingID, staged)
		b.addToBook(b.Books, staged, true)

		if strings.TrimSpace(staged.Content) == "" {
			b.addWarning(staged, SeverityWarning, MessageEmptyContent, "")
		}
	}

	b.RecalculateStats()
	b.Stats.TotalBooks = b.Books.Len()
	b.DetectDuplicates()

	return b
}

// addToBook appends c to the grouping for its book key, creating it if needed.
func (b *Batch) addToBook(books *OrderedMap[string, *Book], c *Clipping, expanded bool) {
	key := normalize.BookKey(c.Title, c.Author)
	book, ok := books.Get(key)
	if !ok {
		book = &Book{
			Key:         key,
			Title:       c.Title,
			Author:      c.Author,
			ClippingIDs: []string{},
			IsExpanded:  expanded,
		}
		books.Set(key, book)
	}
	book.ClippingIDs = append(book.ClippingIDs, c.BatchClippingID)
}

func (b *Batch) addWarning(c *Clipping, severity Severity, message, details string) {
	w := Warning{
		ID:         b.ids.WarningID(),
		Severity:   severity,
		Message:    message,
		ClippingID: c.BatchClippingID,
		Details:    details,
	}
	b.Warnings = append(b.Warnings, w)
	c.Warnings = append(c.Warnings, w.ID)
}

// UpdateClipping applies patch to one clipping. Unknown IDs are ignored and
// report false. Title or author changes regroup the books; type changes
// recompute the stats.
func (b *Batch) UpdateClipping(clippingID string, patch Patch) bool {
	c, ok := b.Clippings.Get(clippingID)
	if !ok {
		return false
	}

	patch.ApplyTo(c)

	if patch.TouchesBook() {
		b.RebuildBooks()
	}
	if patch.TouchesType() {
		b.RecalculateStats()
	}
	return true
}

// BulkUpdate applies the same patch to every listed clipping and returns how
// many were found. Books are regrouped and stats recomputed at most once.
func (b *Batch) BulkUpdate(clippingIDs []string, patch Patch) int {
	updated := 0
	for _, clippingID := range clippingIDs {
		c, ok := b.Clippings.Get(clippingID)
		if !ok {
			continue
		}
		patch.ApplyTo(c)
		updated++
	}

	if updated > 0 && patch.TouchesBook() {
		b.RebuildBooks()
	}
	if patch.TouchesType() {
		b.RecalculateStats()
	}
	return updated
}

// DeleteClippings removes clippings from the batch along with their warnings,
// then regroups books and recomputes stats. It returns how many were removed.
func (b *Batch) DeleteClippings(clippingIDs []string) int {
	removed := b.Clippings.Delete(clippingIDs...)

	if removed > 0 {
		kept := b.Warnings[:0]
		for _, w := range b.Warnings {
			if w.ClippingID == "" || b.Clippings.Has(w.ClippingID) {
				kept = append(kept, w)
			}
		}
		b.Warnings = kept
	}

	b.RebuildBooks()
	b.RecalculateStats()
	return removed
}

// RebuildBooks regroups every clipping from scratch. Expansion state carries
// over per book key; keys that did not exist before start expanded.
func (b *Batch) RebuildBooks() {
	expanded := make(map[string]bool, b.Books.Len())
	for key, book := range b.Books.All() {
		expanded[key] = book.IsExpanded
	}

	books := NewOrderedMap[string, *Book]()
	for _, c := range b.Clippings.All() {
		key := normalize.BookKey(c.Title, c.Author)
		isExpanded, seen := expanded[key]
		if !seen {
			isExpanded = true
		}
		b.addToBook(books, c, isExpanded)
	}

	b.Books = books
	b.Stats.TotalBooks = books.Len()
}

// RecalculateStats recounts clippings and per-type totals from scratch.
func (b *Batch) RecalculateStats() {
	var counts TypeCounts
	for _, c := range b.Clippings.All() {
		switch c.Type {
		case domain.ClippingTypeHighlight:
			counts.Highlights++
		case domain.ClippingTypeNote:
			counts.Notes++
		case domain.ClippingTypeBookmark:
			counts.Bookmarks++
		}
	}

	b.Stats.TotalClippings = b.Clippings.Len()
	b.Stats.ByType = counts
}

// DetectDuplicates compares clippings pairwise within each book grouping and
// warns on the earlier clipping of every potential duplicate pair. Clippings
// of different books are never compared. Each call appends new warnings.
func (b *Batch) DetectDuplicates() int {
	byBook := NewOrderedMap[string, []*Clipping]()
	for _, c := range b.Clippings.All() {
		key := normalize.BookKey(c.Title, c.Author)
		group, _ := byBook.Get(key)
		byBook.Set(key, append(group, c))
	}

	found := 0
	for _, group := range byBook.All() {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				c1, c2 := group[i], group[j]
				if !normalize.PotentialDuplicatesWithThreshold(c1.Content, c2.Content, b.threshold) {
					continue
				}
				details := fmt.Sprintf("Similar to another clipping in %q", c1.Title)
				b.addWarning(c1, SeverityWarning, MessagePotentialDuplicate, details)
				found++
			}
		}
	}
	return found
}

// ToggleSelection flips the selection flag of one clipping.
func (b *Batch) ToggleSelection(clippingID string) bool {
	c, ok := b.Clippings.Get(clippingID)
	if !ok {
		return false
	}
	c.IsSelected = !c.IsSelected
	return true
}

// SelectAll selects every clipping.
func (b *Batch) SelectAll() {
	b.setSelected(true)
}

// DeselectAll clears every selection flag.
func (b *Batch) DeselectAll() {
	b.setSelected(false)
}

// ClearSelection drops the current selection. It is the review screen's
// reset action and behaves like DeselectAll.
func (b *Batch) ClearSelection() {
	b.setSelected(false)
}

func (b *Batch) setSelected(selected bool) {
	for _, c := range b.Clippings.All() {
		c.IsSelected = selected
	}
}

// SelectBook selects exactly the clippings listed in one book grouping and
// returns how many were selected.
func (b *Batch) SelectBook(bookKey string) int {
	book, ok := b.Books.Get(bookKey)
	if !ok {
		return 0
	}
	selected := 0
	for _, clippingID := range book.ClippingIDs {
		if c, ok := b.Clippings.Get(clippingID); ok {
			c.IsSelected = true
			selected++
		}
	}
	return selected
}

// ToggleBookExpanded flips the UI expansion flag of a book grouping.
func (b *Batch) ToggleBookExpanded(bookKey string) bool {
	book, ok := b.Books.Get(bookKey)
	if !ok {
		return false
	}
	book.IsExpanded = !book.IsExpanded
	return true
}

// ClippingList returns the staged clippings in import order.
func (b *Batch) ClippingList() []*Clipping {
	return b.Clippings.Values()
}

// BookList returns the book groupings in order of first appearance.
func (b *Batch) BookList() []*Book {
	return b.Books.Values()
}

// Selected returns the selected clippings in import order.
func (b *Batch) Selected() []*Clipping {
	var selected []*Clipping
	for _, c := range b.Clippings.All() {
		if c.IsSelected {
			selected = append(selected, c)
		}
	}
	return selected
}

// SelectionCount returns the number of selected clippings.
func (b *Batch) SelectionCount() int {
	count := 0
	for _, c := range b.Clippings.All() {
		if c.IsSelected {
			count++
		}
	}
	return count
}

// WarningsFor returns the warnings attached to one clipping.
func (b *Batch) WarningsFor(clippingID string) []Warning {
	var out []Warning
	for _, w := range b.Warnings {
		if w.ClippingID == clippingID {
			out = append(out, w)
		}
	}
	return out
}

// PlainClippings strips the staging fields and returns parsed clippings in
// import order, optionally only the selected ones. This is the shape handed
// to persistence and to exporters.
func (b *Batch) PlainClippings(selectedOnly bool) []domain.Clipping {
	out := make([]domain.Clipping, 0, b.Clippings.Len())
	for _, c := range b.Clippings.All() {
		if selectedOnly && !c.IsSelected {
			continue
		}
		out = append(out, c.Clipping.Clone())
	}
	return out
}

// Transition moves the batch to status. A terminal batch cannot change again.
func (b *Batch) Transition(status domain.BatchStatus) error {
	if b.Status.IsTerminal() {
		return domainerrors.InvalidState(fmt.Sprintf("batch %s is already %s", b.ID, b.Status))
	}
	b.Status = status
	return nil
}

// HistoryEntry summarizes the batch for the history log.
func (b *Batch) HistoryEntry(status domain.BatchStatus, at time.Time, exportedFormat string) *domain.BatchHistoryEntry {
	entry := &domain.BatchHistoryEntry{
		ID:             b.ID,
		CreatedAt:      b.CreatedAt,
		FileName:       b.FileName,
		FileSize:       b.FileSize,
		Status:         status,
		ClippingCount:  b.Stats.TotalClippings,
		BookCount:      b.Stats.TotalBooks,
		ExportedFormat: exportedFormat,
	}
	if status == domain.BatchStatusImported {
		importedAt := at
		entry.ImportedAt = &importedAt
	}
	return entry
}

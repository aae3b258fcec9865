package batch

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
)

// seqIDs hands out predictable identifiers.
type seqIDs struct {
	clippings int
	warnings  int
}

func (s *seqIDs) ClippingID() string {
	s.clippings++
	return fmt.Sprintf("bc-%d", s.clippings)
}

func (s *seqIDs) WarningID() string {
	s.warnings++
	return fmt.Sprintf("warn-%d", s.warnings)
}

var testNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func clip(title, author string, typ domain.ClippingType, content string) domain.Clipping {
	return domain.Clipping{
		ID:      title + "/" + content,
		Title:   title,
		Author:  author,
		Type:    typ,
		Content: content,
	}
}

func newTestBatch(t *testing.T, clippings ...domain.Clipping) *Batch {
	t.Helper()
	return New("batch-1", &seqIDs{}, clippings, Source{FileName: "f.txt", FileSize: 1024}, testNow)
}

// assertInvariants checks grouping completeness and stats consistency.
func assertInvariants(t *testing.T, b *Batch) {
	t.Helper()

	var grouped []string
	for _, book := range b.Books.All() {
		grouped = append(grouped, book.ClippingIDs...)
	}
	keys := b.Clippings.Keys()
	slices.Sort(grouped)
	slices.Sort(keys)
	assert.Equal(t, keys, grouped, "book groupings must cover every clipping exactly once")

	assert.Equal(t, b.Clippings.Len(), b.Stats.TotalClippings)
	assert.Equal(t, b.Stats.TotalClippings,
		b.Stats.ByType.Highlights+b.Stats.ByType.Notes+b.Stats.ByType.Bookmarks)
	assert.Equal(t, b.Books.Len(), b.Stats.TotalBooks)
}

func TestNew_EndToEndStats(t *testing.T) {
	b := New("batch-1", &seqIDs{}, []domain.Clipping{
		clip("Book 1", "Author 1", domain.ClippingTypeHighlight, "c1"),
		clip("Book 1", "Author 1", domain.ClippingTypeNote, "c2"),
		clip("Book 2", "Author 2", domain.ClippingTypeBookmark, "c3"),
	}, Source{FileName: "f.txt", FileSize: 1024}, testNow)

	assert.Equal(t, "batch-1", b.ID)
	assert.Equal(t, domain.BatchStatusPending, b.Status)
	assert.Equal(t, testNow, b.CreatedAt)
	assert.Equal(t, "f.txt", b.FileName)
	assert.Equal(t, int64(1024), b.FileSize)
	assert.Equal(t, Stats{
		TotalClippings: 3,
		TotalBooks:     2,
		ByType:         TypeCounts{Highlights: 1, Notes: 1, Bookmarks: 1},
	}, b.Stats)
	assertInvariants(t, b)
}

func TestNew_CarriesUpstreamStats(t *testing.T) {
	b := New("batch-1", &seqIDs{}, nil, Source{Upstream: UpstreamStats{DuplicatesRemoved: 4, LinkedNotes: 2}}, testNow)

	assert.Equal(t, 4, b.Stats.DuplicatesRemoved)
	assert.Equal(t, 2, b.Stats.LinkedNotes)
}

func TestNew_Empty(t *testing.T) {
	b := newTestBatch(t)

	assert.Equal(t, 0, b.Clippings.Len())
	assert.Equal(t, 0, b.Books.Len())
	assert.Empty(t, b.Warnings)
	assertInvariants(t, b)
}

func TestNew_GroupsByNormalizedKey(t *testing.T) {
	b := newTestBatch(t,
		clip("  The Book ", "THE AUTHOR", domain.ClippingTypeHighlight, "one"),
		clip("the book", "the   author", domain.ClippingTypeHighlight, "two"),
	)

	require.Equal(t, 1, b.Books.Len())
	book := b.BookList()[0]
	assert.Equal(t, "the book::the author", book.Key)
	// Display title comes from the first member.
	assert.Equal(t, "  The Book ", book.Title)
	assert.Equal(t, []string{"bc-1", "bc-2"}, book.ClippingIDs)
	assert.True(t, book.IsExpanded)
}

func TestNew_EmptyContentWarning(t *testing.T) {
	b := newTestBatch(t,
		clip("Book", "Author", domain.ClippingTypeBookmark, "   "),
		clip("Other", "Author", domain.ClippingTypeHighlight, "text"),
	)

	require.Len(t, b.Warnings, 1)
	w := b.Warnings[0]
	assert.Equal(t, SeverityWarning, w.Severity)
	assert.Equal(t, MessageEmptyContent, w.Message)
	assert.Equal(t, "bc-1", w.ClippingID)

	c, _ := b.Clippings.Get("bc-1")
	assert.Equal(t, []string{w.ID}, c.Warnings)
	assert.Equal(t, []Warning{w}, b.WarningsFor("bc-1"))
}

func TestNew_DoesNotAliasInput(t *testing.T) {
	input := []domain.Clipping{clip("Book", "Author", domain.ClippingTypeHighlight, "text")}
	input[0].Tags = []string{"x"}

	b := newTestBatch(t, input...)
	c, _ := b.Clippings.Get("bc-1")
	c.Tags[0] = "changed"

	assert.Equal(t, "x", input[0].Tags[0])
}

func TestDetectDuplicates_WithinBookOnly(t *testing.T) {
	b := newTestBatch(t,
		clip("Book A", "Author", domain.ClippingTypeHighlight, "Hello world"),
		clip("Book A", "Author", domain.ClippingTypeHighlight, "Hello world!"),
		clip("Book B", "Author", domain.ClippingTypeHighlight, "Hello world"),
		clip("Book A", "Author", domain.ClippingTypeHighlight, "something completely different"),
	)

	require.Len(t, b.Warnings, 1)
	w := b.Warnings[0]
	assert.Equal(t, MessagePotentialDuplicate, w.Message)
	assert.Equal(t, "bc-1", w.ClippingID, "attached to the earlier clipping of the pair")
	assert.Equal(t, `Similar to another clipping in "Book A"`, w.Details)
}

func TestDetectDuplicates_OneWarningPerPair(t *testing.T) {
	b := newTestBatch(t,
		clip("Book", "Author", domain.ClippingTypeHighlight, "same"),
		clip("Book", "Author", domain.ClippingTypeHighlight, "same"),
		clip("Book", "Author", domain.ClippingTypeHighlight, "same"),
	)

	// Pairs (1,2), (1,3), (2,3).
	assert.Len(t, b.Warnings, 3)
	c1, _ := b.Clippings.Get("bc-1")
	c2, _ := b.Clippings.Get("bc-2")
	c3, _ := b.Clippings.Get("bc-3")
	assert.Len(t, c1.Warnings, 2)
	assert.Len(t, c2.Warnings, 1)
	assert.Empty(t, c3.Warnings)
}

func TestUpdateClipping_RenameRegroupsAndKeepsExpansion(t *testing.T) {
	b := newTestBatch(t,
		clip("A", "Author1", domain.ClippingTypeHighlight, "first"),
		clip("A", "Author1", domain.ClippingTypeHighlight, "second"),
	)
	originalKey := b.BookList()[0].Key
	require.True(t, b.ToggleBookExpanded(originalKey))

	author := "Author2"
	require.True(t, b.UpdateClipping("bc-2", Patch{Author: &author}))

	assert.Equal(t, 2, b.Stats.TotalBooks)
	original, ok := b.Books.Get(originalKey)
	require.True(t, ok)
	assert.False(t, original.IsExpanded, "expansion state survives the regroup")
	assert.Equal(t, []string{"bc-1"}, original.ClippingIDs)

	renamed, ok := b.Books.Get("a::author2")
	require.True(t, ok)
	assert.True(t, renamed.IsExpanded, "new groupings start expanded")

	c, _ := b.Clippings.Get("bc-2")
	assert.True(t, c.IsModified)
	assertInvariants(t, b)
}

func TestUpdateClipping_TypeChangeRecalculatesStats(t *testing.T) {
	b := newTestBatch(t,
		clip("A", "Author", domain.ClippingTypeHighlight, "first"),
		clip("A", "Author", domain.ClippingTypeHighlight, "second"),
	)

	note := domain.ClippingTypeNote
	b.UpdateClipping("bc-1", Patch{Type: &note})

	assert.Equal(t, TypeCounts{Highlights: 1, Notes: 1}, b.Stats.ByType)
	assertInvariants(t, b)
}

func TestUpdateClipping_UnknownIDIgnored(t *testing.T) {
	b := newTestBatch(t, clip("A", "Author", domain.ClippingTypeHighlight, "first"))
	before := b.Stats

	content := "x"
	assert.False(t, b.UpdateClipping("missing", Patch{Content: &content}))
	assert.Equal(t, before, b.Stats)
}

func TestUpdateClipping_ContentOnlyKeepsGroupings(t *testing.T) {
	b := newTestBatch(t, clip("A", "Author", domain.ClippingTypeHighlight, "first"))
	books := b.Books

	content := "edited"
	b.UpdateClipping("bc-1", Patch{Content: &content})

	assert.Same(t, books, b.Books, "no regroup for content edits")
	c, _ := b.Clippings.Get("bc-1")
	assert.Equal(t, "edited", c.Content)
	assert.True(t, c.IsModified)
}

func TestBulkUpdate(t *testing.T) {
	b := newTestBatch(t,
		clip("A", "Author", domain.ClippingTypeHighlight, "1"),
		clip("B", "Author", domain.ClippingTypeHighlight, "2"),
		clip("C", "Author", domain.ClippingTypeNote, "3"),
	)

	title := "Merged"
	bookmark := domain.ClippingTypeBookmark
	updated := b.BulkUpdate([]string{"bc-1", "bc-2", "missing"}, Patch{Title: &title, Type: &bookmark})

	assert.Equal(t, 2, updated)
	assert.Equal(t, 2, b.Stats.TotalBooks)
	assert.Equal(t, TypeCounts{Notes: 1, Bookmarks: 2}, b.Stats.ByType)
	merged, ok := b.Books.Get("merged::author")
	require.True(t, ok)
	assert.Equal(t, []string{"bc-1", "bc-2"}, merged.ClippingIDs)
	assertInvariants(t, b)
}

func TestDeleteClippings(t *testing.T) {
	b := newTestBatch(t,
		clip("A", "Author", domain.ClippingTypeHighlight, ""),
		clip("A", "Author", domain.ClippingTypeNote, "keep"),
		clip("B", "Author", domain.ClippingTypeBookmark, "gone"),
	)
	require.Len(t, b.Warnings, 1)

	removed := b.DeleteClippings([]string{"bc-1", "bc-3", "missing"})

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"bc-2"}, b.Clippings.Keys())
	assert.Equal(t, 1, b.Stats.TotalBooks)
	assert.Equal(t, TypeCounts{Notes: 1}, b.Stats.ByType)
	assert.Empty(t, b.Warnings, "warnings of removed clippings are dropped")
	assertInvariants(t, b)
}

func TestInvariants_HoldAcrossMutationSequence(t *testing.T) {
	var clippings []domain.Clipping
	for i := range 12 {
		typ := []domain.ClippingType{domain.ClippingTypeHighlight, domain.ClippingTypeNote, domain.ClippingTypeBookmark}[i%3]
		clippings = append(clippings, clip(fmt.Sprintf("Book %d", i%4), "Author", typ, fmt.Sprintf("content %d", i)))
	}
	b := newTestBatch(t, clippings...)
	assertInvariants(t, b)

	title := "Book 0"
	b.UpdateClipping("bc-2", Patch{Title: &title})
	assertInvariants(t, b)

	note := domain.ClippingTypeNote
	b.BulkUpdate([]string{"bc-3", "bc-4", "bc-5"}, Patch{Type: &note})
	assertInvariants(t, b)

	author := "Someone Else"
	b.BulkUpdate([]string{"bc-6", "bc-7"}, Patch{Author: &author})
	assertInvariants(t, b)

	b.DeleteClippings([]string{"bc-1", "bc-8", "bc-12"})
	assertInvariants(t, b)

	b.DeleteClippings(b.Clippings.Keys())
	assertInvariants(t, b)
	assert.Equal(t, 0, b.Stats.TotalBooks)
}

func TestSelection(t *testing.T) {
	b := newTestBatch(t,
		clip("A", "Author", domain.ClippingTypeHighlight, "1"),
		clip("A", "Author", domain.ClippingTypeHighlight, "2"),
		clip("B", "Author", domain.ClippingTypeHighlight, "3"),
	)
	statsBefore := b.Stats

	assert.True(t, b.ToggleSelection("bc-1"))
	assert.False(t, b.ToggleSelection("missing"))
	assert.Equal(t, 1, b.SelectionCount())

	b.SelectAll()
	assert.Equal(t, 3, b.SelectionCount())

	b.DeselectAll()
	assert.Equal(t, 0, b.SelectionCount())

	assert.Equal(t, 2, b.SelectBook("a::author"))
	assert.Equal(t, 0, b.SelectBook("missing"))
	selected := b.Selected()
	require.Len(t, selected, 2)
	assert.Equal(t, "bc-1", selected[0].BatchClippingID)
	assert.Equal(t, "bc-2", selected[1].BatchClippingID)

	b.ClearSelection()
	assert.Equal(t, 0, b.SelectionCount())
	assert.Equal(t, statsBefore, b.Stats, "selection never touches stats")
}

func TestPlainClippings(t *testing.T) {
	b := newTestBatch(t,
		clip("A", "Author", domain.ClippingTypeHighlight, "1"),
		clip("B", "Author", domain.ClippingTypeNote, "2"),
	)
	b.ToggleSelection("bc-2")

	all := b.PlainClippings(false)
	require.Len(t, all, 2)
	assert.Equal(t, "A/1", all[0].ID)
	assert.Equal(t, domain.ClippingTypeHighlight, all[0].Type)

	selected := b.PlainClippings(true)
	require.Len(t, selected, 1)
	assert.Equal(t, "B/2", selected[0].ID)
}

func TestTransition(t *testing.T) {
	b := newTestBatch(t)

	require.NoError(t, b.Transition(domain.BatchStatusImported))
	err := b.Transition(domain.BatchStatusPending)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidState))
	assert.Equal(t, domain.BatchStatusImported, b.Status)
}

func TestHistoryEntry(t *testing.T) {
	b := newTestBatch(t,
		clip("A", "Author", domain.ClippingTypeHighlight, "1"),
		clip("B", "Author", domain.ClippingTypeNote, "2"),
	)
	at := testNow.Add(time.Minute)

	imported := b.HistoryEntry(domain.BatchStatusImported, at, "")
	assert.Equal(t, "batch-1", imported.ID)
	assert.Equal(t, "f.txt", imported.FileName)
	assert.Equal(t, 2, imported.ClippingCount)
	assert.Equal(t, 2, imported.BookCount)
	require.NotNil(t, imported.ImportedAt)
	assert.Equal(t, at, *imported.ImportedAt)

	discarded := b.HistoryEntry(domain.BatchStatusDiscarded, at, "")
	assert.Nil(t, discarded.ImportedAt)

	exported := b.HistoryEntry(domain.BatchStatusExported, at, "markdown")
	assert.Equal(t, "markdown", exported.ExportedFormat)
}

func TestWithDuplicateThreshold(t *testing.T) {
	clippings := []domain.Clipping{
		clip("Book", "Author", domain.ClippingTypeHighlight, "hello"),
		clip("Book", "Author", domain.ClippingTypeHighlight, "hello worl"),
	}

	strict := New("b", &seqIDs{}, clippings, Source{}, testNow)
	assert.Empty(t, strict.Warnings)

	loose := New("b", &seqIDs{}, clippings, Source{}, testNow, WithDuplicateThreshold(0.5))
	assert.Len(t, loose.Warnings, 1)

	ignored := New("b", &seqIDs{}, clippings, Source{}, testNow, WithDuplicateThreshold(0))
	assert.Empty(t, ignored.Warnings)
}

// Package storetest holds the behavioral tests every store.Store backend
// must pass.
package storetest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindlehubapp/kindlehub/internal/color"
	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

// Factory opens an empty store for one test. The factory registers its own
// cleanup.
type Factory func(t *testing.T) store.Store

// Run executes the backend contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("SaveClippings", func(t *testing.T) { testSaveClippings(t, open(t)) })
	t.Run("SaveClippingsIdempotent", func(t *testing.T) { testSaveIdempotent(t, open(t)) })
	t.Run("SaveClippingsIncremental", func(t *testing.T) { testSaveIncremental(t, open(t)) })
	t.Run("ExactTitleAuthorMatch", func(t *testing.T) { testExactMatch(t, open(t)) })
	t.Run("LastReadDate", func(t *testing.T) { testLastReadDate(t, open(t)) })
	t.Run("ClippingFields", func(t *testing.T) { testClippingFields(t, open(t)) })
	t.Run("Ordering", func(t *testing.T) { testOrdering(t, open(t)) })
	t.Run("GetBookNotFound", func(t *testing.T) { testGetBookNotFound(t, open(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, open(t)) })
	t.Run("ClearAll", func(t *testing.T) { testClearAll(t, open(t)) })
	t.Run("History", func(t *testing.T) { testHistory(t, open(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("UpdateClipping", func(t *testing.T) { testUpdateClipping(t, open(t)) })
	t.Run("DeleteClippings", func(t *testing.T) { testDeleteClippings(t, open(t)) })
	t.Run("DuplicateClippings", func(t *testing.T) { testDuplicateClippings(t, open(t)) })
	t.Run("AddClipping", func(t *testing.T) { testAddClipping(t, open(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, open(t).Ping(context.Background())) })
}

func ptr[T any](v T) *T { return &v }

// Clipping builds a parsed clipping for tests.
func Clipping(id, title, author string, typ domain.ClippingType, date *time.Time) domain.Clipping {
	return domain.Clipping{
		ID:      id,
		Title:   title,
		Author:  author,
		Type:    typ,
		Content: "content of " + id,
		Date:    date,
	}
}

func day(d int) *time.Time {
	return ptr(time.Date(2024, 3, d, 10, 0, 0, 0, time.UTC))
}

func bookByTitle(t *testing.T, books []*domain.Book, title string) *domain.Book {
	t.Helper()
	for _, b := range books {
		if b.Title == title {
			return b
		}
	}
	t.Fatalf("book %q not found", title)
	return nil
}

func testSaveClippings(t *testing.T, s store.Store) {
	ctx := context.Background()

	result, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping("c1", "Book 1", "Author 1", domain.ClippingTypeHighlight, day(1)),
		Clipping("c2", "Book 1", "Author 1", domain.ClippingTypeNote, day(2)),
		Clipping("c3", "Book 2", "Author 2", domain.ClippingTypeBookmark, day(3)),
	})
	require.NoError(t, err)
	assert.Equal(t, &store.SaveResult{BooksCreated: 2, ClippingsInserted: 3}, result)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)

	b1 := bookByTitle(t, books, "Book 1")
	assert.Equal(t, "Author 1", b1.Author)
	assert.Equal(t, 2, b1.ClippingCount)
	assert.Equal(t, color.ForBook("Book 1"), b1.CoverColor)
	assert.NotZero(t, b1.ID)

	got, err := s.GetBook(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, b1.Title, got.Title)
	assert.Equal(t, b1.ClippingCount, got.ClippingCount)

	clippings, err := s.ListClippingsByBook(ctx, b1.ID)
	require.NoError(t, err)
	require.Len(t, clippings, 2)
	for _, c := range clippings {
		assert.Equal(t, b1.ID, c.BookID)
	}
}

func testSaveIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	input := []domain.Clipping{
		Clipping("c1", "Book", "Author", domain.ClippingTypeHighlight, day(1)),
		Clipping("c2", "Book", "Author", domain.ClippingTypeHighlight, day(2)),
	}

	_, err := s.SaveClippings(ctx, input)
	require.NoError(t, err)

	again, err := s.SaveClippings(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, &store.SaveResult{}, again)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 2, books[0].ClippingCount)

	all, err := s.ListClippings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testSaveIncremental(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping("c1", "Book", "Author", domain.ClippingTypeHighlight, day(1)),
		Clipping("c2", "Book", "Author", domain.ClippingTypeHighlight, day(2)),
	})
	require.NoError(t, err)

	result, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping("c1", "Book", "Author", domain.ClippingTypeHighlight, day(1)),
		Clipping("c2", "Book", "Author", domain.ClippingTypeHighlight, day(2)),
		Clipping("c3", "Book", "Author", domain.ClippingTypeNote, day(3)),
	})
	require.NoError(t, err)
	assert.Equal(t, &store.SaveResult{BooksCreated: 0, ClippingsInserted: 1}, result)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 3, books[0].ClippingCount)
}

func testExactMatch(t *testing.T, s store.Store) {
	ctx := context.Background()

	result, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping("c1", "The Book", "Author", domain.ClippingTypeHighlight, day(1)),
		Clipping("c2", "the book", "Author", domain.ClippingTypeHighlight, day(2)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.BooksCreated, "commit matches title and author exactly")
}

func testLastReadDate(t *testing.T, s store.Store) {
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	_, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping("c1", "Dated", "Author", domain.ClippingTypeHighlight, day(5)),
		Clipping("c2", "Dated", "Author", domain.ClippingTypeHighlight, day(9)),
		Clipping("c3", "Dated", "Author", domain.ClippingTypeHighlight, nil),
		Clipping("c4", "Undated", "Author", domain.ClippingTypeBookmark, nil),
	})
	require.NoError(t, err)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)

	dated := bookByTitle(t, books, "Dated")
	assert.True(t, dated.LastReadDate.Equal(*day(9)), "latest clipping date wins, got %v", dated.LastReadDate)

	undated := bookByTitle(t, books, "Undated")
	assert.WithinDuration(t, time.Now(), undated.LastReadDate, time.Minute)
	assert.True(t, undated.LastReadDate.After(before))

	clippings, err := s.ListClippingsByBook(ctx, undated.ID)
	require.NoError(t, err)
	require.Len(t, clippings, 1)
	assert.WithinDuration(t, time.Now(), clippings[0].Date, time.Minute, "missing date falls back to commit time")
}

func testClippingFields(t *testing.T, s store.Store) {
	ctx := context.Background()

	in := domain.Clipping{
		ID:       "full",
		Title:    "Book",
		Author:   "Author",
		Type:     domain.ClippingTypeNote,
		Content:  "a thought",
		Location: "120-125",
		Page:     ptr(42),
		Date:     day(4),
		Note:     "linked note",
		Tags:     []string{"idea", "later"},
	}
	_, err := s.SaveClippings(ctx, []domain.Clipping{in})
	require.NoError(t, err)

	all, err := s.ListClippings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	c := all[0]
	assert.Equal(t, "full", c.OriginalID)
	assert.Equal(t, domain.ClippingTypeNote, c.Type)
	assert.Equal(t, "a thought", c.Content)
	assert.Equal(t, "120-125", c.Location)
	require.NotNil(t, c.Page)
	assert.Equal(t, 42, *c.Page)
	assert.True(t, c.Date.Equal(*day(4)))
	assert.Equal(t, "linked note", c.Note)
	assert.Equal(t, []string{"idea", "later"}, c.Tags)
	assert.NotZero(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())
}

func testOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping("old", "Old Book", "A", domain.ClippingTypeHighlight, day(1)),
		Clipping("new", "New Book", "A", domain.ClippingTypeHighlight, day(20)),
		Clipping("mid", "Old Book", "A", domain.ClippingTypeHighlight, day(10)),
	})
	require.NoError(t, err)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "New Book", books[0].Title)
	assert.Equal(t, "Old Book", books[1].Title)

	all, err := s.ListClippings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"},
		[]string{all[0].OriginalID, all[1].OriginalID, all[2].OriginalID})

	byBook, err := s.ListClippingsByBook(ctx, books[1].ID)
	require.NoError(t, err)
	require.Len(t, byBook, 2)
	assert.Equal(t, "old", byBook[0].OriginalID, "insertion order")
	assert.Equal(t, "mid", byBook[1].OriginalID)
}

func testGetBookNotFound(t *testing.T, s store.Store) {
	_, err := s.GetBook(context.Background(), 999)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testStats(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping("c1", "Book 1", "A", domain.ClippingTypeHighlight, day(1)),
		Clipping("c2", "Book 1", "A", domain.ClippingTypeHighlight, day(1)),
		Clipping("c3", "Book 2", "A", domain.ClippingTypeNote, day(1)),
		Clipping("c4", "Book 3", "A", domain.ClippingTypeBookmark, day(1)),
	})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &store.LibraryStats{
		TotalBooks:     3,
		TotalClippings: 4,
		Highlights:     2,
		Notes:          1,
		Bookmarks:      1,
	}, stats)
}

func testClearAll(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping("c1", "Book", "A", domain.ClippingTypeHighlight, day(1)),
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveBatchHistory(ctx, &domain.BatchHistoryEntry{
		ID:        "batch-1",
		CreatedAt: *day(1),
		FileName:  "My Clippings.txt",
		Status:    domain.BatchStatusImported,
	}))

	require.NoError(t, s.ClearAll(ctx))

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
	all, err := s.ListClippings(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	history, err := s.ListBatchHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1, "history survives a library wipe")

	// The same clippings can be committed again afterwards.
	result, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping("c1", "Book", "A", domain.ClippingTypeHighlight, day(1)),
	})
	require.NoError(t, err)
	assert.Equal(t, &store.SaveResult{BooksCreated: 1, ClippingsInserted: 1}, result)
}

func testHistory(t *testing.T, s store.Store) {
	ctx := context.Background()

	importedAt := *day(3)
	require.NoError(t, s.SaveBatchHistory(ctx, &domain.BatchHistoryEntry{
		ID:            "older",
		CreatedAt:     *day(1),
		FileName:      "a.txt",
		FileSize:      100,
		Status:        domain.BatchStatusImported,
		ClippingCount: 3,
		BookCount:     2,
		ImportedAt:    &importedAt,
	}))
	require.NoError(t, s.SaveBatchHistory(ctx, &domain.BatchHistoryEntry{
		ID:             "newer",
		CreatedAt:      *day(2),
		FileName:       "b.txt",
		Status:         domain.BatchStatusExported,
		ExportedFormat: "markdown",
	}))

	history, err := s.ListBatchHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "newer", history[0].ID)
	assert.Equal(t, "markdown", history[0].ExportedFormat)
	assert.Nil(t, history[0].ImportedAt)

	older := history[1]
	assert.Equal(t, "a.txt", older.FileName)
	assert.Equal(t, int64(100), older.FileSize)
	assert.Equal(t, domain.BatchStatusImported, older.Status)
	assert.Equal(t, 3, older.ClippingCount)
	assert.Equal(t, 2, older.BookCount)
	require.NotNil(t, older.ImportedAt)
	assert.True(t, older.ImportedAt.Equal(importedAt))

	// Saving under an existing ID replaces the entry.
	require.NoError(t, s.SaveBatchHistory(ctx, &domain.BatchHistoryEntry{
		ID:        "newer",
		CreatedAt: *day(2),
		FileName:  "b.txt",
		Status:    domain.BatchStatusDiscarded,
	}))
	history, err = s.ListBatchHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.BatchStatusDiscarded, history[0].Status)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithWriteTx(ctx, func(tx store.WriteTx) error {
		now := time.Now()
		id, err := tx.InsertBook(&domain.Book{
			Title:        "Doomed",
			Author:       "A",
			CoverColor:   color.ForBook("Doomed"),
			LastReadDate: now,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		require.NoError(t, err)
		_, err = tx.InsertClipping(domain.NewStoredClipping(
			Clipping("c1", "Doomed", "A", domain.ClippingTypeHighlight, nil), id, now))
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
	all, err := s.ListClippings(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// seedBook commits clippings c1..cN of one book and returns the stored book
// and its clippings in insertion order.
func seedBook(t *testing.T, s store.Store, title string, n int) (*domain.Book, []*domain.StoredClipping) {
	t.Helper()
	ctx := context.Background()

	var in []domain.Clipping
	for i := 1; i <= n; i++ {
		c := Clipping(title+"-c"+string(rune('0'+i)), title, "Author", domain.ClippingTypeHighlight, day(i))
		c.Tags = []string{"seed"}
		in = append(in, c)
	}
	_, err := s.SaveClippings(ctx, in)
	require.NoError(t, err)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	book := bookByTitle(t, books, title)

	clippings, err := s.ListClippingsByBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, clippings, n)
	return book, clippings
}

func clippingCount(t *testing.T, s store.Store, bookID int64) int {
	t.Helper()
	book, err := s.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	return book.ClippingCount
}

func testUpdateClipping(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, clippings := seedBook(t, s, "Edited", 2)
	target := clippings[0]

	note := domain.ClippingTypeNote
	updated, err := s.UpdateClipping(ctx, target.ID, store.ClippingEdit{
		Type:    &note,
		Content: ptr("rewritten"),
		Page:    ptr(7),
		Note:    ptr("my note"),
		Tags:    ptr([]string{}),
	})
	require.NoError(t, err)
	assert.Equal(t, target.ID, updated.ID)
	assert.Equal(t, domain.ClippingTypeNote, updated.Type)
	assert.Equal(t, "rewritten", updated.Content)

	stored, err := s.ListClippingsByBook(ctx, target.BookID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	got := stored[0]
	assert.Equal(t, domain.ClippingTypeNote, got.Type)
	assert.Equal(t, "rewritten", got.Content)
	require.NotNil(t, got.Page)
	assert.Equal(t, 7, *got.Page)
	assert.Equal(t, "my note", got.Note)
	assert.Empty(t, got.Tags, "an empty tag list clears the tags")
	assert.Equal(t, target.OriginalID, got.OriginalID)
	assert.Equal(t, target.Location, got.Location, "untouched fields are kept")
	assert.True(t, got.Date.Equal(target.Date))
	assert.False(t, got.UpdatedAt.Before(target.UpdatedAt))

	assert.Equal(t, "content of Edited-c2", stored[1].Content)

	// The edited clipping still blocks a re-import of its original.
	result, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping(target.OriginalID, "Edited", "Author", domain.ClippingTypeHighlight, day(1)),
	})
	require.NoError(t, err)
	assert.Zero(t, result.ClippingsInserted)

	_, err = s.UpdateClipping(ctx, 9999, store.ClippingEdit{Content: ptr("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)

	bad := domain.ClippingType("sticky")
	_, err = s.UpdateClipping(ctx, target.ID, store.ClippingEdit{Type: &bad})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func testDeleteClippings(t *testing.T, s store.Store) {
	ctx := context.Background()
	book, clippings := seedBook(t, s, "Trimmed", 3)
	other, otherClippings := seedBook(t, s, "Other", 1)

	n, err := s.DeleteClippings(ctx, []int64{clippings[0].ID, clippings[2].ID, clippings[0].ID, otherClippings[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	remaining, err := s.ListClippingsByBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, clippings[1].ID, remaining[0].ID)
	assert.Equal(t, 1, clippingCount(t, s, book.ID))
	assert.Equal(t, 0, clippingCount(t, s, other.ID), "emptied books are kept")

	// A deleted clipping can be imported again.
	result, err := s.SaveClippings(ctx, []domain.Clipping{
		Clipping(clippings[0].OriginalID, "Trimmed", "Author", domain.ClippingTypeHighlight, day(1)),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ClippingsInserted)
	assert.Equal(t, 2, clippingCount(t, s, book.ID))

	// An unknown ID rolls back the whole delete.
	_, err = s.DeleteClippings(ctx, []int64{remaining[0].ID, 9999})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 2, clippingCount(t, s, book.ID))
}

func testDuplicateClippings(t *testing.T, s store.Store) {
	ctx := context.Background()
	book, clippings := seedBook(t, s, "Copied", 2)

	copies, err := s.DuplicateClippings(ctx, []int64{clippings[0].ID, clippings[1].ID})
	require.NoError(t, err)
	require.Len(t, copies, 2)

	for i, c := range copies {
		src := clippings[i]
		assert.NotEqual(t, src.ID, c.ID)
		assert.Equal(t, book.ID, c.BookID)
		assert.True(t, strings.HasPrefix(c.OriginalID, src.OriginalID+"-copy-"), c.OriginalID)
		assert.Equal(t, src.Content, c.Content)
		assert.Equal(t, src.Tags, c.Tags)
		assert.True(t, c.Date.Equal(src.Date))
	}

	stored, err := s.ListClippingsByBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
	assert.Equal(t, 4, clippingCount(t, s, book.ID))

	_, err = s.DuplicateClippings(ctx, []int64{clippings[0].ID, 9999})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 4, clippingCount(t, s, book.ID), "failed copy adds nothing")
}

func testAddClipping(t *testing.T, s store.Store) {
	ctx := context.Background()
	book, _ := seedBook(t, s, "Annotated", 1)

	added, err := s.AddClipping(ctx, book.ID, store.NewClipping{Content: "typed by hand"})
	require.NoError(t, err)
	assert.NotZero(t, added.ID)
	assert.Equal(t, book.ID, added.BookID)
	assert.Equal(t, domain.ClippingTypeHighlight, added.Type)
	assert.True(t, strings.HasPrefix(added.OriginalID, "new-"), added.OriginalID)
	assert.WithinDuration(t, time.Now(), added.Date, time.Minute)

	second, err := s.AddClipping(ctx, book.ID, store.NewClipping{
		Type:    domain.ClippingTypeNote,
		Content: "second",
		Date:    day(15),
		Tags:    []string{"manual"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, added.OriginalID, second.OriginalID)

	stored, err := s.ListClippingsByBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "second", stored[2].Content)
	assert.Equal(t, []string{"manual"}, stored[2].Tags)
	assert.True(t, stored[2].Date.Equal(*day(15)))
	assert.Equal(t, 3, clippingCount(t, s, book.ID))

	_, err = s.AddClipping(ctx, 9999, store.NewClipping{Content: "orphan"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.AddClipping(ctx, book.ID, store.NewClipping{Type: "sticky"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 3, clippingCount(t, s, book.ID))
}

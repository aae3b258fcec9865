package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindlehubapp/kindlehub/internal/batch"
	"github.com/kindlehubapp/kindlehub/internal/domain"
	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

func seedLibrary(t *testing.T, s store.Store) {
	t.Helper()
	_, err := s.SaveClippings(context.Background(), sampleClippings())
	require.NoError(t, err)
}

func TestLibraryService_LoadBooks(t *testing.T) {
	s := newTestStore(t)
	seedLibrary(t, s)
	svc := NewLibraryService(s, testLogger())

	assert.Zero(t, svc.TotalBooks())
	require.NoError(t, svc.LoadBooks(context.Background()))

	assert.Equal(t, 2, svc.TotalBooks())
	assert.Equal(t, 3, svc.TotalClippings())
	assert.NoError(t, svc.LastError())

	books := svc.Books()
	require.Len(t, books, 2)
	books[0] = nil
	assert.NotNil(t, svc.Books()[0], "Books returns a copy")
}

func TestLibraryService_LoadBooksFailure(t *testing.T) {
	inner := newTestStore(t)
	seedLibrary(t, inner)
	s := &faultyStore{Store: inner}
	svc := NewLibraryService(s, testLogger())
	require.NoError(t, svc.LoadBooks(context.Background()))

	s.listErr = errDiskFull
	err := svc.LoadBooks(context.Background())
	assert.ErrorIs(t, err, errDiskFull)
	assert.ErrorIs(t, svc.LastError(), errDiskFull)
	assert.Equal(t, 2, svc.TotalBooks(), "previous list is kept")

	s.listErr = nil
	require.NoError(t, svc.LoadBooks(context.Background()))
	assert.NoError(t, svc.LastError())
}

func TestLibraryService_Reads(t *testing.T) {
	s := newTestStore(t)
	seedLibrary(t, s)
	svc := NewLibraryService(s, testLogger())
	ctx := context.Background()
	require.NoError(t, svc.LoadBooks(ctx))

	var bookID int64
	for _, b := range svc.Books() {
		if b.Title == "Book 1" {
			bookID = b.ID
		}
	}
	require.NotZero(t, bookID)

	book, err := svc.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, "Author 1", book.Author)

	clippings, err := svc.ClippingsForBook(ctx, bookID)
	require.NoError(t, err)
	assert.Len(t, clippings, 2)

	all, err := svc.AllClippings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &store.LibraryStats{TotalBooks: 2, TotalClippings: 3, Highlights: 1, Notes: 1, Bookmarks: 1}, stats)
}

func TestLibraryService_NotFound(t *testing.T) {
	svc := NewLibraryService(newTestStore(t), testLogger())

	_, err := svc.GetBook(context.Background(), 42)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	_, err = svc.ClippingsForBook(context.Background(), 42)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestLibraryService_ClearAll(t *testing.T) {
	s := newTestStore(t)
	seedLibrary(t, s)
	svc := NewLibraryService(s, testLogger())
	ctx := context.Background()
	require.NoError(t, svc.LoadBooks(ctx))

	require.NoError(t, svc.ClearAll(ctx))
	assert.Zero(t, svc.TotalBooks())

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &store.LibraryStats{}, stats)
}

func TestLibraryService_BatchHistory(t *testing.T) {
	s := newTestStore(t)
	svc := NewLibraryService(s, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Ping(ctx))

	entries, err := svc.BatchHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	batches := NewBatchService(s, svc, testLogger(), WithIDGenerator(&seqIDs{}))
	batches.CreateBatch(sampleClippings(), batch.Source{FileName: "clips.json"})
	require.NoError(t, batches.DiscardBatch(ctx))

	entries, err = svc.BatchHistory(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "batch-1", entries[0].ID)
	assert.Equal(t, domain.BatchStatusDiscarded, entries[0].Status)
}

func TestLibraryService_Edits(t *testing.T) {
	s := newTestStore(t)
	seedLibrary(t, s)
	svc := NewLibraryService(s, testLogger())
	ctx := context.Background()
	require.NoError(t, svc.LoadBooks(ctx))

	all, err := svc.AllClippings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	byOriginal := make(map[string]*domain.StoredClipping)
	for _, c := range all {
		byOriginal[c.OriginalID] = c
	}

	content := "edited"
	updated, err := svc.UpdateClipping(ctx, byOriginal["p1"].ID, store.ClippingEdit{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	copies, err := svc.DuplicateClippings(ctx, []int64{byOriginal["p3"].ID})
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, 4, svc.TotalClippings(), "cache reloads after an edit")

	added, err := svc.AddClipping(ctx, byOriginal["p1"].BookID, store.NewClipping{Content: "by hand"})
	require.NoError(t, err)
	assert.Equal(t, domain.ClippingTypeHighlight, added.Type)
	assert.Equal(t, 5, svc.TotalClippings())

	n, err := svc.DeleteClippings(ctx, []int64{byOriginal["p2"].ID, added.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, svc.TotalClippings())
}

func TestLibraryService_EditErrors(t *testing.T) {
	s := newTestStore(t)
	seedLibrary(t, s)
	svc := NewLibraryService(s, testLogger())
	ctx := context.Background()

	content := "x"
	_, err := svc.UpdateClipping(ctx, 9999, store.ClippingEdit{Content: &content})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	_, err = svc.AddClipping(ctx, 9999, store.NewClipping{})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	_, err = svc.AddClipping(ctx, 1, store.NewClipping{Type: "sticky"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = svc.DeleteClippings(ctx, nil)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = svc.DuplicateClippings(ctx, []int64{9999})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

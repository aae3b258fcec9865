package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/store"
	"github.com/kindlehubapp/kindlehub/internal/store/storetest"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestBadgerStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := store.New(dir, nil)
	require.NoError(t, err)
	_, err = s.SaveClippings(ctx, []domain.Clipping{
		storetest.Clipping("c1", "Book", "Author", domain.ClippingTypeHighlight, nil),
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.New(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	// IDs keep increasing across restarts.
	result, err := s.SaveClippings(ctx, []domain.Clipping{
		storetest.Clipping("c1", "Book", "Author", domain.ClippingTypeHighlight, nil),
		storetest.Clipping("c2", "Other", "Author", domain.ClippingTypeHighlight, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, &store.SaveResult{BooksCreated: 1, ClippingsInserted: 1}, result)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.NotEqual(t, books[0].ID, books[1].ID)
}

// failingTx fails the clipping insert after the book is written.
type failingTx struct {
	store.WriteTx
	err error
}

func (f failingTx) InsertClipping(*domain.StoredClipping) (int64, error) { return 0, f.err }

type failingTransactor struct {
	inner store.Transactor
	err   error
}

func (f failingTransactor) WithWriteTx(ctx context.Context, fn func(tx store.WriteTx) error) error {
	return f.inner.WithWriteTx(ctx, func(tx store.WriteTx) error {
		return fn(failingTx{WriteTx: tx, err: f.err})
	})
}

func TestSaveClippings_FailureWritesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	diskFull := errors.New("disk full")

	_, err := store.SaveClippings(ctx, failingTransactor{inner: s, err: diskFull}, []domain.Clipping{
		storetest.Clipping("c1", "Book", "Author", domain.ClippingTypeHighlight, nil),
	}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "disk full")

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestSaveClippings_GroupsInFirstAppearanceOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveClippings(ctx, []domain.Clipping{
		storetest.Clipping("c1", "B", "A", domain.ClippingTypeHighlight, nil),
		storetest.Clipping("c2", "A", "A", domain.ClippingTypeHighlight, nil),
		storetest.Clipping("c3", "B", "A", domain.ClippingTypeHighlight, nil),
	})
	require.NoError(t, err)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)

	ids := map[string]int64{}
	for _, b := range books {
		ids[b.Title] = b.ID
	}
	assert.Less(t, ids["B"], ids["A"], "first group gets the first ID")
}

func TestSaveClippings_EmptyInput(t *testing.T) {
	s := newTestStore(t)

	result, err := s.SaveClippings(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, &store.SaveResult{}, result)
}

func TestError_Is(t *testing.T) {
	custom := store.ErrNotFound.WithMessage("book 7 not found")

	assert.True(t, errors.Is(custom, store.ErrNotFound))
	assert.False(t, errors.Is(custom, store.ErrAlreadyExists))
	assert.Equal(t, 404, custom.HTTPCode())
	assert.Equal(t, "book 7 not found", custom.Error())
}

// cancelInTx cancels the caller's context once the write transaction has
// begun.
type cancelInTx struct {
	store.Transactor
	cancel context.CancelFunc
}

func (c *cancelInTx) WithWriteTx(ctx context.Context, fn func(tx store.WriteTx) error) error {
	return c.Transactor.WithWriteTx(ctx, func(tx store.WriteTx) error {
		c.cancel()
		return fn(tx)
	})
}

func TestSaveClippings_RunsToCompletionOnceStarted(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := store.SaveClippings(ctx, &cancelInTx{Transactor: s, cancel: cancel}, []domain.Clipping{
		storetest.Clipping("c1", "Book 1", "Author", domain.ClippingTypeHighlight, nil),
		storetest.Clipping("c2", "Book 2", "Author", domain.ClippingTypeHighlight, nil),
		storetest.Clipping("c3", "Book 3", "Author", domain.ClippingTypeHighlight, nil),
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, &store.SaveResult{BooksCreated: 3, ClippingsInserted: 3}, result)

	books, err := s.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Len(t, books, 3)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/store"
	"github.com/kindlehubapp/kindlehub/internal/store/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seqIDs is a deterministic id.Generator.
type seqIDs struct {
	batches, clippings, warnings int
}

func (s *seqIDs) BatchID() string {
	s.batches++
	return fmt.Sprintf("batch-%d", s.batches)
}

func (s *seqIDs) ClippingID() string {
	s.clippings++
	return fmt.Sprintf("bc-%d", s.clippings)
}

func (s *seqIDs) WarningID() string {
	s.warnings++
	return fmt.Sprintf("warn-%d", s.warnings)
}

// faultyStore fails selected operations of an otherwise working store.
type faultyStore struct {
	store.Store
	saveErr    error
	historyErr error
	listErr    error
}

func (f *faultyStore) SaveClippings(ctx context.Context, clippings []domain.Clipping) (*store.SaveResult, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return f.Store.SaveClippings(ctx, clippings)
}

func (f *faultyStore) SaveBatchHistory(ctx context.Context, entry *domain.BatchHistoryEntry) error {
	if f.historyErr != nil {
		return f.historyErr
	}
	return f.Store.SaveBatchHistory(ctx, entry)
}

func (f *faultyStore) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListBooks(ctx)
}

// cancelingStore cancels the caller's context as the commit reaches the
// store, like a client that disconnects mid-request.
type cancelingStore struct {
	store.Store
	cancel context.CancelFunc
}

func (c *cancelingStore) SaveClippings(ctx context.Context, clippings []domain.Clipping) (*store.SaveResult, error) {
	c.cancel()
	return c.Store.SaveClippings(ctx, clippings)
}

// blockingStore holds SaveClippings until release is closed.
type blockingStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore(s store.Store) *blockingStore {
	return &blockingStore{Store: s, entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingStore) SaveClippings(ctx context.Context, clippings []domain.Clipping) (*store.SaveResult, error) {
	close(b.entered)
	<-b.release
	return b.Store.SaveClippings(ctx, clippings)
}

var errDiskFull = errors.New("disk full")

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func sampleClippings() []domain.Clipping {
	date := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	return []domain.Clipping{
		{ID: "p1", Title: "Book 1", Author: "Author 1", Type: domain.ClippingTypeHighlight, Content: "c1", Date: &date},
		{ID: "p2", Title: "Book 1", Author: "Author 1", Type: domain.ClippingTypeNote, Content: "c2"},
		{ID: "p3", Title: "Book 2", Author: "Author 2", Type: domain.ClippingTypeBookmark, Content: "c3"},
	}
}

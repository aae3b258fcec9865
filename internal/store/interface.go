package store

import (
	"context"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// Store is the durable clipping library. The Badger Store in this package and
// sqlite.Store both implement it.
type Store interface {
	Transactor

	// Lifecycle.
	Close() error
	Ping(ctx context.Context) error

	// Commit. SaveClippings runs the whole write in one transaction and is
	// idempotent per (book, original clipping ID).
	SaveClippings(ctx context.Context, clippings []domain.Clipping) (*SaveResult, error)

	// Batch history.
	SaveBatchHistory(ctx context.Context, entry *domain.BatchHistoryEntry) error
	ListBatchHistory(ctx context.Context) ([]*domain.BatchHistoryEntry, error)

	// Library reads.
	ListBooks(ctx context.Context) ([]*domain.Book, error)
	GetBook(ctx context.Context, id int64) (*domain.Book, error)
	ListClippingsByBook(ctx context.Context, bookID int64) ([]*domain.StoredClipping, error)
	ListClippings(ctx context.Context) ([]*domain.StoredClipping, error)
	Stats(ctx context.Context) (*LibraryStats, error)

	// Library edits. Each runs in one transaction and recounts the books it
	// touches.
	UpdateClipping(ctx context.Context, id int64, edit ClippingEdit) (*domain.StoredClipping, error)
	DeleteClippings(ctx context.Context, ids []int64) (int, error)
	DuplicateClippings(ctx context.Context, ids []int64) ([]*domain.StoredClipping, error)
	AddClipping(ctx context.Context, bookID int64, c NewClipping) (*domain.StoredClipping, error)

	// ClearAll removes every book and clipping in one transaction.
	// Batch history is kept.
	ClearAll(ctx context.Context) error
}

// LibraryStats summarizes the stored library.
type LibraryStats struct {
	TotalBooks     int `json:"total_books"`
	TotalClippings int `json:"total_clippings"`
	Highlights     int `json:"highlights"`
	Notes          int `json:"notes"`
	Bookmarks      int `json:"bookmarks"`
}

// Add counts n clippings of type t in the per-type totals.
func (s *LibraryStats) Add(t domain.ClippingType, n int) {
	switch t {
	case domain.ClippingTypeHighlight:
		s.Highlights += n
	case domain.ClippingTypeNote:
		s.Notes += n
	case domain.ClippingTypeBookmark:
		s.Bookmarks += n
	}
}

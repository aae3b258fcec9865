// Package service holds the import workflow and the library views built on
// top of the persistent store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

// LibraryService caches the committed book list and serves library reads.
// It is safe for concurrent use.
type LibraryService struct {
	store  store.Store
	logger *slog.Logger

	mu      sync.RWMutex
	books   []*domain.Book
	lastErr error
}

// NewLibraryService creates a new library service.
func NewLibraryService(store store.Store, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		store:  store,
		logger: logger,
	}
}

// LoadBooks refreshes the cached book list from the store. On failure the
// previous list is kept and the error is remembered for LastError.
func (s *LibraryService) LoadBooks(ctx context.Context) error {
	books, err := s.store.ListBooks(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err
		return persistenceError(err, "load books")
	}
	s.books = books
	s.lastErr = nil
	return nil
}

// Books returns the cached books, most recently read first.
func (s *LibraryService) Books() []*domain.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.books)
}

// TotalBooks returns the number of cached books.
func (s *LibraryService) TotalBooks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books)
}

// TotalClippings sums the clipping counts of the cached books.
func (s *LibraryService) TotalClippings() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, b := range s.books {
		total += b.ClippingCount
	}
	return total
}

// LastError returns the error of the most recent failed LoadBooks, if any.
func (s *LibraryService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// GetBook retrieves one book from the store.
func (s *LibraryService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("book %d not found", id)
		}
		return nil, persistenceError(err, "get book")
	}
	return book, nil
}

// ClippingsForBook returns the stored clippings of one book.
func (s *LibraryService) ClippingsForBook(ctx context.Context, bookID int64) ([]*domain.StoredClipping, error) {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	clippings, err := s.store.ListClippingsByBook(ctx, bookID)
	if err != nil {
		return nil, persistenceError(err, "list clippings")
	}
	return clippings, nil
}

// AllClippings returns every stored clipping, newest first.
func (s *LibraryService) AllClippings(ctx context.Context) ([]*domain.StoredClipping, error) {
	clippings, err := s.store.ListClippings(ctx)
	if err != nil {
		return nil, persistenceError(err, "list clippings")
	}
	return clippings, nil
}

// Stats returns library totals by clipping type.
func (s *LibraryService) Stats(ctx context.Context) (*store.LibraryStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, persistenceError(err, "library stats")
	}
	return stats, nil
}

// BatchHistory returns every recorded batch decision, newest first.
func (s *LibraryService) BatchHistory(ctx context.Context) ([]*domain.BatchHistoryEntry, error) {
	entries, err := s.store.ListBatchHistory(ctx)
	if err != nil {
		return nil, persistenceError(err, "list batch history")
	}
	return entries, nil
}

// Ping checks that the store is reachable.
func (s *LibraryService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ClearAll wipes every book and clipping and empties the cache.
// Batch history is kept.
func (s *LibraryService) ClearAll(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return persistenceError(err, "clear library")
	}

	s.mu.Lock()
	s.books = nil
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("library cleared")
	return nil
}

// UpdateClipping edits one stored clipping and refreshes the book cache.
func (s *LibraryService) UpdateClipping(ctx context.Context, clippingID int64, edit store.ClippingEdit) (*domain.StoredClipping, error) {
	c, err := s.store.UpdateClipping(ctx, clippingID, edit)
	if err != nil {
		return nil, libraryError(err, "update clipping")
	}
	s.logger.Info("clipping updated", "clipping_id", clippingID, "book_id", c.BookID)
	s.reload(ctx)
	return c, nil
}

// DeleteClippings removes stored clippings and returns how many were
// deleted.
func (s *LibraryService) DeleteClippings(ctx context.Context, clippingIDs []int64) (int, error) {
	if len(clippingIDs) == 0 {
		return 0, domainerrors.Validation("no clippings given")
	}
	n, err := s.store.DeleteClippings(ctx, clippingIDs)
	if err != nil {
		return 0, libraryError(err, "delete clippings")
	}
	s.logger.Info("clippings deleted", "count", n)
	s.reload(ctx)
	return n, nil
}

// DuplicateClippings stores a copy of each clipping next to its source.
func (s *LibraryService) DuplicateClippings(ctx context.Context, clippingIDs []int64) ([]*domain.StoredClipping, error) {
	if len(clippingIDs) == 0 {
		return nil, domainerrors.Validation("no clippings given")
	}
	copies, err := s.store.DuplicateClippings(ctx, clippingIDs)
	if err != nil {
		return nil, libraryError(err, "duplicate clippings")
	}
	s.logger.Info("clippings duplicated", "count", len(copies))
	s.reload(ctx)
	return copies, nil
}

// AddClipping writes a hand-made clipping into a stored book.
func (s *LibraryService) AddClipping(ctx context.Context, bookID int64, c store.NewClipping) (*domain.StoredClipping, error) {
	added, err := s.store.AddClipping(ctx, bookID, c)
	if err != nil {
		return nil, libraryError(err, "add clipping")
	}
	s.logger.Info("clipping added", "clipping_id", added.ID, "book_id", bookID)
	s.reload(ctx)
	return added, nil
}

// reload refreshes the cached books after an edit. A failure is logged and
// left for LastError.
func (s *LibraryService) reload(ctx context.Context) {
	if err := s.LoadBooks(ctx); err != nil {
		s.logger.Warn("failed to reload books after edit", "error", err)
	}
}

// libraryError maps store lookups and input errors to domain codes.
func libraryError(err error, action string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, action+": not found")
	case errors.Is(err, store.ErrInvalidInput):
		return domainerrors.Wrap(err, domainerrors.CodeValidation, action)
	default:
		return persistenceError(err, action)
	}
}

// persistenceError wraps a store failure unless it already carries a
// domain error code.
func persistenceError(err error, action string) error {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return domainerrors.Persistence(err, action)
}

package store

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// ListBooks returns every book, most recently read first.
func (s *Badger) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	var books []*domain.Book

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if isIndexKey(item.Key(), bookPrefix) {
				continue
			}
			var book domain.Book
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			}); err != nil {
				return err
			}
			books = append(books, &book)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	SortBooks(books)
	return books, nil
}

// GetBook retrieves a book by ID.
func (s *Badger) GetBook(_ context.Context, id int64) (*domain.Book, error) {
	var book domain.Book
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, bookKey(id), &book)
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// SortBooks orders books by last read date, newest first, then by ID
// descending.
func SortBooks(books []*domain.Book) {
	slices.SortStableFunc(books, func(a, b *domain.Book) int {
		if c := b.LastReadDate.Compare(a.LastReadDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

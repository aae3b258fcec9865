package store

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// ListClippingsByBook returns the clippings of one book in insertion order.
func (s *Badger) ListClippingsByBook(ctx context.Context, bookID int64) ([]*domain.StoredClipping, error) {
	var clippings []*domain.StoredClipping

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = bookClippingsIndexPrefix(bookID)

		it := txn.NewIterator(opts)
		defer it.Close()

		var ids []int64
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				id, err := parseID(val)
				ids = append(ids, id)
				return err
			})
			if err != nil {
				return err
			}
		}

		// Index entries sort by original ID, not by insertion.
		slices.Sort(ids)
		for _, id := range ids {
			var c domain.StoredClipping
			if err := getJSON(txn, clipKey(id), &c); err != nil {
				return err
			}
			clippings = append(clippings, &c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clippings, nil
}

// ListClippings returns every stored clipping, newest clipping date first.
func (s *Badger) ListClippings(ctx context.Context) ([]*domain.StoredClipping, error) {
	var clippings []*domain.StoredClipping

	err := s.eachClipping(ctx, func(c *domain.StoredClipping) {
		clippings = append(clippings, c)
	})
	if err != nil {
		return nil, err
	}

	SortClippings(clippings)
	return clippings, nil
}

// Stats counts books and clippings per type.
func (s *Badger) Stats(ctx context.Context) (*LibraryStats, error) {
	var stats LibraryStats

	err := s.eachClipping(ctx, func(c *domain.StoredClipping) {
		stats.TotalClippings++
		stats.Add(c.Type, 1)
	})
	if err != nil {
		return nil, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(bookPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if !isIndexKey(it.Item().Key(), bookPrefix) {
				stats.TotalBooks++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ClearAll deletes every book and clipping along with their index entries.
func (s *Badger) ClearAll(ctx context.Context) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if err := deletePrefix(txn, []byte(bookPrefix)); err != nil {
			return err
		}
		return deletePrefix(txn, []byte(clipPrefix))
	})
}

func (s *Badger) eachClipping(ctx context.Context, fn func(c *domain.StoredClipping)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(clipPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if isIndexKey(item.Key(), clipPrefix) {
				continue
			}
			var c domain.StoredClipping
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return err
			}
			fn(&c)
		}
		return nil
	})
}

// SortClippings orders clippings by date, newest first, then by ID
// descending.
func SortClippings(clippings []*domain.StoredClipping) {
	slices.SortStableFunc(clippings, func(a, b *domain.StoredClipping) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

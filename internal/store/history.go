package store

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// SaveBatchHistory stores a history entry. An entry with an existing ID
// replaces the earlier one.
func (s *Badger) SaveBatchHistory(ctx context.Context, entry *domain.BatchHistoryEntry) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, historyKey(entry.ID), entry)
	})
}

// ListBatchHistory returns the history, newest batch first.
func (s *Badger) ListBatchHistory(ctx context.Context) ([]*domain.BatchHistoryEntry, error) {
	var entries []*domain.BatchHistoryEntry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry domain.BatchHistoryEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	SortHistory(entries)
	return entries, nil
}

// SortHistory orders entries by batch creation time, newest first.
func SortHistory(entries []*domain.BatchHistoryEntry) {
	slices.SortStableFunc(entries, func(a, b *domain.BatchHistoryEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

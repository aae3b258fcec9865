package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// SaveBatchHistory stores a history entry. An entry with an existing ID
// replaces the earlier one.
func (s *Store) SaveBatchHistory(ctx context.Context, entry *domain.BatchHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_history (id, created_at, file_name, file_size, status, clipping_count, book_count, imported_at, exported_format)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			clipping_count = excluded.clipping_count,
			book_count = excluded.book_count,
			imported_at = excluded.imported_at,
			exported_format = excluded.exported_format`,
		entry.ID,
		formatTime(entry.CreatedAt),
		entry.FileName,
		entry.FileSize,
		string(entry.Status),
		entry.ClippingCount,
		entry.BookCount,
		nullTimeString(entry.ImportedAt),
		nullString(entry.ExportedFormat),
	)
	if err != nil {
		return fmt.Errorf("save batch history: %w", err)
	}
	return nil
}

// ListBatchHistory returns the history, newest batch first.
func (s *Store) ListBatchHistory(ctx context.Context) ([]*domain.BatchHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, file_name, file_size, status, clipping_count, book_count, imported_at, exported_format
		FROM batch_history ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.BatchHistoryEntry
	for rows.Next() {
		var (
			e              domain.BatchHistoryEntry
			createdAt      string
			status         string
			importedAt     sql.NullString
			exportedFormat sql.NullString
		)
		if err := rows.Scan(
			&e.ID,
			&createdAt,
			&e.FileName,
			&e.FileSize,
			&status,
			&e.ClippingCount,
			&e.BookCount,
			&importedAt,
			&exportedFormat,
		); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if e.ImportedAt, err = parseNullableTime(importedAt); err != nil {
			return nil, fmt.Errorf("parse imported_at: %w", err)
		}
		e.Status = domain.BatchStatus(status)
		e.ExportedFormat = exportedFormat.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

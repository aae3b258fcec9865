package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

// clippingColumns must match the scan order in scanClipping.
const clippingColumns = `id, book_id, original_id, type, content, location, page, date, note, tags, created_at, updated_at`

func scanClipping(scanner interface{ Scan(dest ...any) error }) (*domain.StoredClipping, error) {
	var (
		c         domain.StoredClipping
		typ       string
		location  sql.NullString
		page      sql.NullInt64
		date      string
		note      sql.NullString
		tags      string
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&c.ID,
		&c.BookID,
		&c.OriginalID,
		&typ,
		&c.Content,
		&location,
		&page,
		&date,
		&note,
		&tags,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Type = domain.ClippingType(typ)
	c.Location = location.String
	c.Note = note.String
	if page.Valid {
		p := int(page.Int64)
		c.Page = &p
	}
	if c.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	if c.Date, err = parseTime(date); err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &c, nil
}

func (s *Store) queryClippings(ctx context.Context, query string, args ...any) ([]*domain.StoredClipping, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clippings []*domain.StoredClipping
	for rows.Next() {
		c, err := scanClipping(rows)
		if err != nil {
			return nil, err
		}
		clippings = append(clippings, c)
	}
	return clippings, rows.Err()
}

// ListClippingsByBook returns the clippings of one book in insertion order.
func (s *Store) ListClippingsByBook(ctx context.Context, bookID int64) ([]*domain.StoredClipping, error) {
	return s.queryClippings(ctx,
		`SELECT `+clippingColumns+` FROM clippings WHERE book_id = ? ORDER BY id`, bookID)
}

// ListClippings returns every stored clipping, newest clipping date first.
func (s *Store) ListClippings(ctx context.Context) ([]*domain.StoredClipping, error) {
	return s.queryClippings(ctx,
		`SELECT `+clippingColumns+` FROM clippings ORDER BY date DESC, id DESC`)
}

// Stats counts books and clippings per type.
func (s *Store) Stats(ctx context.Context) (*store.LibraryStats, error) {
	var stats store.LibraryStats

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&stats.TotalBooks); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM clippings GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("count clippings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			typ   string
			count int
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		stats.TotalClippings += count
		stats.Add(domain.ClippingType(typ), count)
	}
	return &stats, rows.Err()
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, author, cover_color, clipping_count, last_read_date, created_at, updated_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var (
		b            domain.Book
		lastReadDate string
		createdAt    string
		updatedAt    string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.CoverColor,
		&b.ClippingCount,
		&lastReadDate,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.LastReadDate, err = parseTime(lastReadDate); err != nil {
		return nil, fmt.Errorf("parse last_read_date: %w", err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &b, nil
}

// ListBooks returns every book, most recently read first.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY last_read_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return b, err
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

// writeTx adapts a sql.Tx to store.WriteTx.
type writeTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (w *writeTx) FindBook(title, author string) (*domain.Book, error) {
	row := w.tx.QueryRowContext(w.ctx,
		`SELECT `+bookColumns+` FROM books WHERE title = ? AND author = ?`,
		title, author)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return book, err
}

func (w *writeTx) InsertBook(book *domain.Book) (int64, error) {
	res, err := w.tx.ExecContext(w.ctx, `
		INSERT INTO books (title, author, cover_color, clipping_count, last_read_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		book.Title,
		book.Author,
		book.CoverColor,
		book.ClippingCount,
		formatTime(book.LastReadDate),
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, store.ErrAlreadyExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	book.ID = id
	return id, nil
}

func (w *writeTx) ClippingExists(bookID int64, originalID string) (bool, error) {
	var one int
	err := w.tx.QueryRowContext(w.ctx,
		`SELECT 1 FROM clippings WHERE book_id = ? AND original_id = ?`,
		bookID, originalID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (w *writeTx) InsertClipping(c *domain.StoredClipping) (int64, error) {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return 0, err
	}

	res, err := w.tx.ExecContext(w.ctx, `
		INSERT INTO clippings (book_id, original_id, type, content, location, page, date, note, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.BookID,
		c.OriginalID,
		string(c.Type),
		c.Content,
		nullString(c.Location),
		nullInt(c.Page),
		formatTime(c.Date),
		nullString(c.Note),
		tags,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, store.ErrAlreadyExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

func (w *writeTx) CountClippings(bookID int64) (int, error) {
	var count int
	err := w.tx.QueryRowContext(w.ctx,
		`SELECT COUNT(*) FROM clippings WHERE book_id = ?`, bookID).Scan(&count)
	return count, err
}

func (w *writeTx) SetClippingCount(bookID int64, count int, updatedAt time.Time) error {
	res, err := w.tx.ExecContext(w.ctx,
		`UPDATE books SET clipping_count = ?, updated_at = ? WHERE id = ?`,
		count, formatTime(updatedAt), bookID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (w *writeTx) GetBook(id int64) (*domain.Book, error) {
	row := w.tx.QueryRowContext(w.ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return book, err
}

func (w *writeTx) GetClipping(id int64) (*domain.StoredClipping, error) {
	row := w.tx.QueryRowContext(w.ctx, `SELECT `+clippingColumns+` FROM clippings WHERE id = ?`, id)
	c, err := scanClipping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func (w *writeTx) UpdateClipping(c *domain.StoredClipping) error {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return err
	}

	res, err := w.tx.ExecContext(w.ctx, `
		UPDATE clippings
		SET type = ?, content = ?, location = ?, page = ?, note = ?, tags = ?, updated_at = ?
		WHERE id = ?`,
		string(c.Type),
		c.Content,
		nullString(c.Location),
		nullInt(c.Page),
		nullString(c.Note),
		tags,
		formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (w *writeTx) DeleteClipping(id int64) error {
	res, err := w.tx.ExecContext(w.ctx, `DELETE FROM clippings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow maps an exec that touched no row to store.ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

func decodeTags(raw string) ([]string, error) {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return tags, nil
}

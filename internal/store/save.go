package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kindlehubapp/kindlehub/internal/color"
	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// SaveResult reports what a commit added to the library.
type SaveResult struct {
	BooksCreated      int `json:"books_created"`
	ClippingsInserted int `json:"clippings_inserted"`
}

// WriteTx is the set of writes a commit needs inside one transaction.
// Backends implement it on top of their native transaction type.
type WriteTx interface {
	// FindBook looks a book up by exact title and author.
	// It returns ErrNotFound when no such book exists.
	FindBook(title, author string) (*domain.Book, error)
	InsertBook(book *domain.Book) (int64, error)
	ClippingExists(bookID int64, originalID string) (bool, error)
	InsertClipping(c *domain.StoredClipping) (int64, error)
	CountClippings(bookID int64) (int, error)
	SetClippingCount(bookID int64, count int, updatedAt time.Time) error

	// Library edits. GetBook and GetClipping return ErrNotFound for
	// unknown IDs.
	GetBook(id int64) (*domain.Book, error)
	GetClipping(id int64) (*domain.StoredClipping, error)
	UpdateClipping(c *domain.StoredClipping) error
	DeleteClipping(id int64) error
}

// Transactor runs fn inside a single read-write transaction. The
// transaction commits only if fn returns nil.
type Transactor interface {
	WithWriteTx(ctx context.Context, fn func(tx WriteTx) error) error
}

type bookGroup struct {
	title     string
	author    string
	clippings []domain.Clipping
}

// groupByTitleAuthor groups clippings by exact (title, author), keeping the
// order in which each pair first appears.
func groupByTitleAuthor(clippings []domain.Clipping) []*bookGroup {
	type pair struct{ title, author string }

	index := make(map[pair]*bookGroup)
	var groups []*bookGroup
	for _, c := range clippings {
		k := pair{c.Title, c.Author}
		g, ok := index[k]
		if !ok {
			g = &bookGroup{title: c.Title, author: c.Author}
			index[k] = g
			groups = append(groups, g)
		}
		g.clippings = append(g.clippings, c)
	}
	return groups
}

// latestDate returns the newest clipping date in the group, or now when no
// clipping carries one.
func latestDate(clippings []domain.Clipping, now time.Time) time.Time {
	var latest time.Time
	for _, c := range clippings {
		if c.Date != nil && c.Date.After(latest) {
			latest = *c.Date
		}
	}
	if latest.IsZero() {
		return now
	}
	return latest
}

// SaveClippings writes clippings into the library through t in one
// transaction.
//
// Clippings are grouped by exact title and author. Each group finds or
// creates its book, inserts the clippings not yet stored under that book's
// (book ID, original ID) key, and recounts the book's clippings. Repeating a
// commit with the same input adds nothing. Any error rolls back the whole
// write.
func SaveClippings(ctx context.Context, t Transactor, clippings []domain.Clipping, now time.Time) (*SaveResult, error) {
	groups := groupByTitleAuthor(clippings)

	var result SaveResult
	err := t.WithWriteTx(ctx, func(tx WriteTx) error {
		result = SaveResult{}

		for _, g := range groups {
			book, err := tx.FindBook(g.title, g.author)
			switch {
			case errors.Is(err, ErrNotFound):
				book = &domain.Book{
					Title:         g.title,
					Author:        g.author,
					CoverColor:    color.ForBook(g.title),
					ClippingCount: len(g.clippings),
					LastReadDate:  latestDate(g.clippings, now),
					CreatedAt:     now,
					UpdatedAt:     now,
				}
				if book.ID, err = tx.InsertBook(book); err != nil {
					return fmt.Errorf("insert book %q: %w", g.title, err)
				}
				result.BooksCreated++
			case err != nil:
				return fmt.Errorf("find book %q: %w", g.title, err)
			}

			for _, c := range g.clippings {
				exists, err := tx.ClippingExists(book.ID, c.ID)
				if err != nil {
					return fmt.Errorf("check clipping %s: %w", c.ID, err)
				}
				if exists {
					continue
				}
				if _, err := tx.InsertClipping(domain.NewStoredClipping(c, book.ID, now)); err != nil {
					return fmt.Errorf("insert clipping %s: %w", c.ID, err)
				}
				result.ClippingsInserted++
			}

			if err := recount(tx, book.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// recount stores the current number of clippings on the book.
func recount(tx WriteTx, bookID int64, now time.Time) error {
	count, err := tx.CountClippings(bookID)
	if err != nil {
		return fmt.Errorf("count clippings of book %d: %w", bookID, err)
	}
	if err := tx.SetClippingCount(bookID, count, now); err != nil {
		return fmt.Errorf("update clipping count of book %d: %w", bookID, err)
	}
	return nil
}

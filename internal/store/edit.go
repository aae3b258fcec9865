package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/id"
)

// Prefixes of the original IDs given to clippings created in the library
// rather than imported.
const (
	copyInfix   = "copy"
	addedPrefix = "new"
)

// ClippingEdit changes the editable fields of a stored clipping.
// Nil fields are left alone.
type ClippingEdit struct {
	Type     *domain.ClippingType
	Content  *string
	Location *string
	Page     *int
	Note     *string
	Tags     *[]string
}

func (e ClippingEdit) validate() error {
	if e.Type != nil && !e.Type.Valid() {
		return ErrInvalidInput.WithMessage(fmt.Sprintf("unknown clipping type %q", *e.Type))
	}
	if e.Page != nil && *e.Page < 0 {
		return ErrInvalidInput.WithMessage("page must not be negative")
	}
	return nil
}

func (e ClippingEdit) applyTo(c *domain.StoredClipping) {
	if e.Type != nil {
		c.Type = *e.Type
	}
	if e.Content != nil {
		c.Content = *e.Content
	}
	if e.Location != nil {
		c.Location = *e.Location
	}
	if e.Page != nil {
		c.Page = clonePage(e.Page)
	}
	if e.Note != nil {
		c.Note = *e.Note
	}
	if e.Tags != nil {
		c.Tags = slices.Clone(*e.Tags)
		if len(c.Tags) == 0 {
			c.Tags = nil
		}
	}
}

// NewClipping is a clipping written by hand into a stored book.
// An empty Type means highlight; a nil Date means now.
type NewClipping struct {
	Type     domain.ClippingType
	Content  string
	Location string
	Page     *int
	Date     *time.Time
	Note     string
	Tags     []string
}

// UpdateClipping applies edit to the stored clipping id in one transaction.
func UpdateClipping(ctx context.Context, t Transactor, clippingID int64, edit ClippingEdit, now time.Time) (*domain.StoredClipping, error) {
	if err := edit.validate(); err != nil {
		return nil, err
	}

	var updated *domain.StoredClipping
	err := t.WithWriteTx(ctx, func(tx WriteTx) error {
		c, err := tx.GetClipping(clippingID)
		if err != nil {
			return err
		}
		edit.applyTo(c)
		c.UpdatedAt = now
		if err := tx.UpdateClipping(c); err != nil {
			return fmt.Errorf("update clipping %d: %w", clippingID, err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteClippings removes the given clippings and recounts their books in
// one transaction. An unknown ID fails the whole delete. Books left without
// clippings are kept.
func DeleteClippings(ctx context.Context, t Transactor, clippingIDs []int64, now time.Time) (int, error) {
	ids := uniqueIDs(clippingIDs)

	err := t.WithWriteTx(ctx, func(tx WriteTx) error {
		var books []int64
		for _, clippingID := range ids {
			c, err := tx.GetClipping(clippingID)
			if err != nil {
				return err
			}
			if err := tx.DeleteClipping(clippingID); err != nil {
				return fmt.Errorf("delete clipping %d: %w", clippingID, err)
			}
			if !slices.Contains(books, c.BookID) {
				books = append(books, c.BookID)
			}
		}
		for _, bookID := range books {
			if err := recount(tx, bookID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DuplicateClippings stores a copy of each given clipping under the same
// book. Copies get a fresh original ID derived from the source clipping's.
func DuplicateClippings(ctx context.Context, t Transactor, clippingIDs []int64, now time.Time) ([]*domain.StoredClipping, error) {
	ids := uniqueIDs(clippingIDs)

	var copies []*domain.StoredClipping
	err := t.WithWriteTx(ctx, func(tx WriteTx) error {
		copies = copies[:0]

		var books []int64
		for _, clippingID := range ids {
			src, err := tx.GetClipping(clippingID)
			if err != nil {
				return err
			}
			suffix, err := id.Generate(copyInfix)
			if err != nil {
				return err
			}

			dup := *src
			dup.ID = 0
			dup.OriginalID = src.OriginalID + "-" + suffix
			dup.Tags = slices.Clone(src.Tags)
			dup.Page = clonePage(src.Page)
			dup.CreatedAt = now
			dup.UpdatedAt = now

			if _, err := tx.InsertClipping(&dup); err != nil {
				return fmt.Errorf("copy clipping %d: %w", clippingID, err)
			}
			copies = append(copies, &dup)
			if !slices.Contains(books, dup.BookID) {
				books = append(books, dup.BookID)
			}
		}
		for _, bookID := range books {
			if err := recount(tx, bookID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copies, nil
}

// AddClipping writes nc into the stored book bookID and recounts the book.
func AddClipping(ctx context.Context, t Transactor, bookID int64, nc NewClipping, now time.Time) (*domain.StoredClipping, error) {
	typ := nc.Type
	if typ == "" {
		typ = domain.ClippingTypeHighlight
	}
	if !typ.Valid() {
		return nil, ErrInvalidInput.WithMessage(fmt.Sprintf("unknown clipping type %q", typ))
	}
	if nc.Page != nil && *nc.Page < 0 {
		return nil, ErrInvalidInput.WithMessage("page must not be negative")
	}

	date := now
	if nc.Date != nil {
		date = *nc.Date
	}

	var added *domain.StoredClipping
	err := t.WithWriteTx(ctx, func(tx WriteTx) error {
		if _, err := tx.GetBook(bookID); err != nil {
			return err
		}
		originalID, err := id.Generate(addedPrefix)
		if err != nil {
			return err
		}

		c := &domain.StoredClipping{
			BookID:     bookID,
			OriginalID: originalID,
			Type:       typ,
			Content:    nc.Content,
			Location:   nc.Location,
			Page:       clonePage(nc.Page),
			Date:       date,
			Note:       nc.Note,
			Tags:       slices.Clone(nc.Tags),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := tx.InsertClipping(c); err != nil {
			return fmt.Errorf("insert clipping: %w", err)
		}
		added = c
		return recount(tx, bookID, now)
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func clonePage(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

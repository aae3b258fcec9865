// Package domain contains the core entities of the KindleHub clipping library.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ClippingType classifies an annotation captured on an e-reader.
type ClippingType string

// Clipping types.
const (
	ClippingTypeHighlight ClippingType = "highlight"
	ClippingTypeNote      ClippingType = "note"
	ClippingTypeBookmark  ClippingType = "bookmark"
)

// Valid reports whether t is one of the three stored clipping types.
func (t ClippingType) Valid() bool {
	switch t {
	case ClippingTypeHighlight, ClippingTypeNote, ClippingTypeBookmark:
		return true
	default:
		return false
	}
}

// ParseClippingType converts a parser type name into a ClippingType.
// The parser's "clip" and "article" kinds are stored as highlights.
func ParseClippingType(raw string) (ClippingType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "highlight", "clip", "article":
		return ClippingTypeHighlight, nil
	case "note":
		return ClippingTypeNote, nil
	case "bookmark":
		return ClippingTypeBookmark, nil
	default:
		return "", fmt.Errorf("unknown clipping type %q", raw)
	}
}

// Clipping is one parsed annotation as produced by the clipping parser.
// It is the shape exchanged with both the parser and the exporters.
type Clipping struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Author   string       `json:"author"`
	Type     ClippingType `json:"type"`
	Content  string       `json:"content"`
	Location string       `json:"location,omitempty"`
	Page     *int         `json:"page,omitempty"`
	Date     *time.Time   `json:"date,omitempty"`
	Note     string       `json:"note,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
}

// Clone returns a deep copy of c.
func (c Clipping) Clone() Clipping {
	out := c
	if c.Page != nil {
		page := *c.Page
		out.Page = &page
	}
	if c.Date != nil {
		date := *c.Date
		out.Date = &date
	}
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	return out
}

// StoredClipping is a clipping persisted under a book.
// (BookID, OriginalID) is its natural key.
type StoredClipping struct {
	ID         int64        `json:"id"`
	BookID     int64        `json:"book_id"`
	OriginalID string       `json:"original_id"`
	Type       ClippingType `json:"type"`
	Content    string       `json:"content"`
	Location   string       `json:"location,omitempty"`
	Page       *int         `json:"page,omitempty"`
	Date       time.Time    `json:"date"`
	Note       string       `json:"note,omitempty"`
	Tags       []string     `json:"tags,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewStoredClipping converts a parsed clipping into its persistent form.
// A clipping without a date is stamped with now.
func NewStoredClipping(c Clipping, bookID int64, now time.Time) *StoredClipping {
	date := now
	if c.Date != nil {
		date = *c.Date
	}
	c = c.Clone()
	return &StoredClipping{
		BookID:     bookID,
		OriginalID: c.ID,
		Type:       c.Type,
		Content:    c.Content,
		Location:   c.Location,
		Page:       c.Page,
		Date:       date,
		Note:       c.Note,
		Tags:       c.Tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

package batch

import (
	"time"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// Patch lists the clipping fields a review edit may change.
// Nil fields are left untouched.
type Patch struct {
	Title    *string              `json:"title,omitempty"`
	Author   *string              `json:"author,omitempty"`
	Type     *domain.ClippingType `json:"type,omitempty"`
	Content  *string              `json:"content,omitempty"`
	Location *string              `json:"location,omitempty"`
	Page     *int                 `json:"page,omitempty"`
	Date     *time.Time           `json:"date,omitempty"`
	Note     *string              `json:"note,omitempty"`
	Tags     *[]string            `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.Type == nil && p.Content == nil &&
		p.Location == nil && p.Page == nil && p.Date == nil && p.Note == nil && p.Tags == nil
}

// TouchesBook reports whether the patch changes the book identity fields.
func (p Patch) TouchesBook() bool {
	return p.Title != nil || p.Author != nil
}

// TouchesType reports whether the patch sets the clipping type.
func (p Patch) TouchesType() bool {
	return p.Type != nil
}

// ApplyTo merges the patch into c field by field and marks it modified.
func (p Patch) ApplyTo(c *Clipping) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Author != nil {
		c.Author = *p.Author
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.Page != nil {
		page := *p.Page
		c.Page = &page
	}
	if p.Date != nil {
		date := *p.Date
		c.Date = &date
	}
	if p.Note != nil {
		c.Note = *p.Note
	}
	if p.Tags != nil {
		c.Tags = append([]string(nil), (*p.Tags)...)
	}
	c.IsModified = true
}

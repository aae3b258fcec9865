package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

func TestPatch_ApplyTo(t *testing.T) {
	c := &Clipping{Clipping: domain.Clipping{Title: "Old", Author: "Someone", Content: "text"}}

	page := 42
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tags := []string{"quote"}
	note := "my note"
	Patch{Page: &page, Date: &date, Tags: &tags, Note: &note}.ApplyTo(c)

	assert.Equal(t, "Old", c.Title, "untouched fields stay")
	assert.Equal(t, 42, *c.Page)
	assert.Equal(t, date, *c.Date)
	assert.Equal(t, []string{"quote"}, c.Tags)
	assert.Equal(t, "my note", c.Note)
	assert.True(t, c.IsModified)

	// The clipping must not alias the patch values.
	page = 7
	tags[0] = "changed"
	assert.Equal(t, 42, *c.Page)
	assert.Equal(t, "quote", c.Tags[0])
}

func TestPatch_Touches(t *testing.T) {
	title := "T"
	typ := domain.ClippingTypeNote

	assert.True(t, Patch{}.IsEmpty())
	assert.True(t, Patch{Title: &title}.TouchesBook())
	assert.False(t, Patch{Title: &title}.TouchesType())
	assert.True(t, Patch{Type: &typ}.TouchesType())
	assert.False(t, Patch{Type: &typ}.IsEmpty())
}

package domain

import "time"

// Book is a persistent book owning stored clippings.
// Books are matched on the exact (Title, Author) pair when committing.
type Book struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	CoverColor string `json:"cover_color,omitempty"`
	// ClippingCount caches the number of stored clippings; it is recomputed
	// from the clippings table after every commit touching the book.
	ClippingCount int       `json:"clipping_count"`
	LastReadDate  time.Time `json:"last_read_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Package batch implements the in-memory staging area for one imported file.
//
// A Batch receives parsed clippings, groups them into books by normalized
// title and author, keeps aggregate statistics, and records advisory
// warnings. Every mutation keeps two invariants: each clipping belongs to
// exactly one book grouping, and Stats matches the current clipping set.
package batch

import (
	"time"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// Severity grades a batch warning.
type Severity string

// Warning severities.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Warning messages attached by the batch itself.
const (
	MessageEmptyContent       = "Empty content"
	MessagePotentialDuplicate = "Potential duplicate content"
)

// Warning is an advisory note about one clipping. Warnings never block commit.
type Warning struct {
	ID         string   `json:"id"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	ClippingID string   `json:"clipping_id,omitempty"`
	Details    string   `json:"details,omitempty"`
}

// Clipping is a parsed clipping staged for review.
type Clipping struct {
	domain.Clipping

	// BatchClippingID identifies the clipping inside the batch only.
	BatchClippingID string   `json:"batch_clipping_id"`
	IsSelected      bool     `json:"is_selected"`
	IsModified      bool     `json:"is_modified"`
	Warnings        []string `json:"warnings"`
}

// Book groups the staged clippings sharing a book key.
type Book struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	ClippingIDs []string `json:"clipping_ids"`
	IsExpanded  bool     `json:"is_expanded"`
}

// TypeCounts counts staged clippings per type.
type TypeCounts struct {
	Highlights int `json:"highlights"`
	Notes      int `json:"notes"`
	Bookmarks  int `json:"bookmarks"`
}

// Stats is a derived view over the batch, recomputed rather than patched.
type Stats struct {
	TotalClippings    int        `json:"total_clippings"`
	TotalBooks        int        `json:"total_books"`
	DuplicatesRemoved int        `json:"duplicates_removed"`
	LinkedNotes       int        `json:"linked_notes"`
	ByType            TypeCounts `json:"by_type"`
}

// UpstreamStats are the counters reported by the parser for the imported file.
type UpstreamStats struct {
	DuplicatesRemoved int `json:"duplicates_removed"`
	LinkedNotes       int `json:"linked_notes"`
}

// Batch is the staging aggregate for one imported file.
type Batch struct {
	ID        string
	CreatedAt time.Time
	FileName  string
	FileSize  int64
	Status    domain.BatchStatus
	Clippings *OrderedMap[string, *Clipping]
	Books     *OrderedMap[string, *Book]
	Stats     Stats
	Warnings  []Warning

	ids       IDSource
	threshold float64
}

// IDSource hands out identifiers for staged clippings and warnings.
type IDSource interface {
	ClippingID() string
	WarningID() string
}

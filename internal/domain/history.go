package domain

import "time"

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

// Batch statuses. Imported and discarded are terminal.
const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusImported  BatchStatus = "imported"
	BatchStatusExported  BatchStatus = "exported"
	BatchStatusDiscarded BatchStatus = "discarded"
)

// IsTerminal reports whether a batch in this status can no longer change.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusImported || s == BatchStatusDiscarded
}

// BatchHistoryEntry records one decision taken on an import batch.
type BatchHistoryEntry struct {
	ID             string      `json:"id"`
	CreatedAt      time.Time   `json:"created_at"`
	FileName       string      `json:"file_name"`
	FileSize       int64       `json:"file_size"`
	Status         BatchStatus `json:"status"`
	ClippingCount  int         `json:"clipping_count"`
	BookCount      int         `json:"book_count"`
	ImportedAt     *time.Time  `json:"imported_at,omitempty"`
	ExportedFormat string      `json:"exported_format,omitempty"`
}

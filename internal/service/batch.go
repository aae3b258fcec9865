package service

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/kindlehubapp/kindlehub/internal/batch"
	"github.com/kindlehubapp/kindlehub/internal/domain"
	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/id"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

// Commit progress checkpoints reported through Progress.
const (
	progressStarted  = 0
	progressStripped = 30
	progressSaved    = 80
	progressDone     = 100
)

// ErrNoBatch is returned by operations that need an active batch.
var ErrNoBatch = domainerrors.InvalidState("no active batch")

// BookReloader refreshes a cached view of the committed books.
type BookReloader interface {
	LoadBooks(ctx context.Context) error
}

// CommitResult describes a successful commit.
type CommitResult struct {
	BatchID string                    `json:"batch_id"`
	Saved   store.SaveResult          `json:"saved"`
	History *domain.BatchHistoryEntry `json:"history"`
}

// BatchServiceOption configures a BatchService.
type BatchServiceOption func(*BatchService)

// WithIDGenerator replaces the identifier source.
func WithIDGenerator(ids id.Generator) BatchServiceOption {
	return func(s *BatchService) { s.ids = ids }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) BatchServiceOption {
	return func(s *BatchService) { s.now = now }
}

// WithDuplicateThreshold sets the similarity threshold for new batches.
func WithDuplicateThreshold(threshold float64) BatchServiceOption {
	return func(s *BatchService) { s.threshold = threshold }
}

// BatchService owns the active import batch of one session and drives it
// from review to commit or discard.
//
// A BatchService is not safe for concurrent use; hosts serialize calls per
// session. IsProcessing and Progress may be polled from any goroutine.
type BatchService struct {
	store    store.Store
	reloader BookReloader
	logger   *slog.Logger

	ids       id.Generator
	now       func() time.Time
	threshold float64

	current *batch.Batch
	history []*domain.BatchHistoryEntry

	processing atomic.Bool
	progress   atomic.Int32
}

// NewBatchService creates a batch service. reloader may be nil.
func NewBatchService(store store.Store, reloader BookReloader, logger *slog.Logger, opts ...BatchServiceOption) *BatchService {
	s := &BatchService{
		store:    store,
		reloader: reloader,
		logger:   logger,
		ids:      id.Default,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBatch stages parsed clippings as the new active batch and returns its
// ID. Any previous batch is replaced without a history entry.
func (s *BatchService) CreateBatch(clippings []domain.Clipping, src batch.Source) string {
	if s.current != nil {
		s.logger.Debug("replacing active batch", "batch_id", s.current.ID)
	}

	var opts []batch.Option
	if s.threshold != 0 {
		opts = append(opts, batch.WithDuplicateThreshold(s.threshold))
	}

	b := batch.New(s.ids.BatchID(), s.ids, clippings, src, s.now(), opts...)
	s.current = b

	s.logger.Info("batch created",
		"batch_id", b.ID,
		"file_name", b.FileName,
		"clippings", b.Stats.TotalClippings,
		"books", b.Stats.TotalBooks,
		"warnings", len(b.Warnings),
	)
	return b.ID
}

// HasBatch reports whether a batch is active.
func (s *BatchService) HasBatch() bool {
	return s.current != nil
}

// Current returns the active batch, or nil.
func (s *BatchService) Current() *batch.Batch {
	return s.current
}

// Clippings returns the staged clippings of the active batch.
func (s *BatchService) Clippings() []*batch.Clipping {
	if s.current == nil {
		return nil
	}
	return s.current.ClippingList()
}

// Books returns the book groupings of the active batch.
func (s *BatchService) Books() []*batch.Book {
	if s.current == nil {
		return nil
	}
	return s.current.BookList()
}

// SelectedClippings returns the selected clippings of the active batch.
func (s *BatchService) SelectedClippings() []*batch.Clipping {
	if s.current == nil {
		return nil
	}
	return s.current.Selected()
}

// SelectionCount returns how many clippings are selected.
func (s *BatchService) SelectionCount() int {
	if s.current == nil {
		return 0
	}
	return s.current.SelectionCount()
}

// UpdateClipping edits one staged clipping.
func (s *BatchService) UpdateClipping(clippingID string, patch batch.Patch) bool {
	if s.current == nil {
		return false
	}
	return s.current.UpdateClipping(clippingID, patch)
}

// BulkUpdateClippings applies one patch to many staged clippings.
func (s *BatchService) BulkUpdateClippings(clippingIDs []string, patch batch.Patch) int {
	if s.current == nil {
		return 0
	}
	return s.current.BulkUpdate(clippingIDs, patch)
}

// DeleteClippings removes staged clippings.
func (s *BatchService) DeleteClippings(clippingIDs []string) int {
	if s.current == nil {
		return 0
	}
	return s.current.DeleteClippings(clippingIDs)
}

// ToggleSelection flips the selection of one clipping.
func (s *BatchService) ToggleSelection(clippingID string) bool {
	if s.current == nil {
		return false
	}
	return s.current.ToggleSelection(clippingID)
}

// SelectAll selects every staged clipping.
func (s *BatchService) SelectAll() {
	if s.current != nil {
		s.current.SelectAll()
	}
}

// DeselectAll clears every selection.
func (s *BatchService) DeselectAll() {
	if s.current != nil {
		s.current.DeselectAll()
	}
}

// ClearSelection resets the selection.
func (s *BatchService) ClearSelection() {
	if s.current != nil {
		s.current.ClearSelection()
	}
}

// SelectBook selects the clippings of one book grouping.
func (s *BatchService) SelectBook(bookKey string) int {
	if s.current == nil {
		return 0
	}
	return s.current.SelectBook(bookKey)
}

// ToggleBookExpanded flips the expansion flag of one book grouping.
func (s *BatchService) ToggleBookExpanded(bookKey string) bool {
	if s.current == nil {
		return false
	}
	return s.current.ToggleBookExpanded(bookKey)
}

// DetectDuplicates reruns duplicate detection and returns how many pairs
// were flagged.
func (s *BatchService) DetectDuplicates() int {
	if s.current == nil {
		return 0
	}
	return s.current.DetectDuplicates()
}

// IsProcessing reports whether a commit is running.
func (s *BatchService) IsProcessing() bool {
	return s.processing.Load()
}

// Progress returns the coarse commit progress percentage.
func (s *BatchService) Progress() int {
	return int(s.progress.Load())
}

// CommitToDatabase writes the active batch into the library.
//
// The store write is all-or-nothing. If it fails the batch stays pending and
// can be committed again. On success the batch becomes imported, an imported
// history entry is recorded, the book collection reloads, and the batch is
// released. A history write failure after a successful store write is
// returned together with the result.
//
// Once started the commit is not cancelled by ctx; it runs to success or
// failure.
func (s *BatchService) CommitToDatabase(ctx context.Context) (*CommitResult, error) {
	b := s.current
	if b == nil {
		return nil, ErrNoBatch
	}
	if !s.processing.CompareAndSwap(false, true) {
		return nil, domainerrors.InvalidState("commit already in progress")
	}
	defer s.processing.Store(false)

	ctx = context.WithoutCancel(ctx)

	s.progress.Store(progressStarted)
	clippings := b.PlainClippings(false)
	s.progress.Store(progressStripped)

	saved, err := s.store.SaveClippings(ctx, clippings)
	if err != nil {
		s.logger.Error("commit failed",
			"batch_id", b.ID,
			"file_name", b.FileName,
			"error", err,
		)
		return nil, persistenceError(err, "save clippings")
	}
	s.progress.Store(progressSaved)

	if err := b.Transition(domain.BatchStatusImported); err != nil {
		return nil, err
	}
	entry := b.HistoryEntry(domain.BatchStatusImported, s.now(), "")
	historyErr := s.recordHistory(ctx, entry)

	if s.reloader != nil {
		if err := s.reloader.LoadBooks(ctx); err != nil {
			s.logger.Warn("failed to reload books after commit", "batch_id", b.ID, "error", err)
		}
	}

	s.current = nil
	s.progress.Store(progressDone)

	s.logger.Info("batch committed",
		"batch_id", b.ID,
		"file_name", b.FileName,
		"books_created", saved.BooksCreated,
		"clippings_inserted", saved.ClippingsInserted,
	)

	result := &CommitResult{BatchID: b.ID, Saved: *saved, History: entry}
	if historyErr != nil {
		return result, historyErr
	}
	return result, nil
}

// DiscardBatch marks the active batch discarded, records it in the history,
// and releases it. Without an active batch it does nothing. If the history
// write fails the discarded batch stays current and the discard can be
// retried.
func (s *BatchService) DiscardBatch(ctx context.Context) error {
	b := s.current
	if b == nil {
		return nil
	}
	if b.Status != domain.BatchStatusDiscarded {
		if err := b.Transition(domain.BatchStatusDiscarded); err != nil {
			return err
		}
	}
	if err := s.recordHistory(ctx, b.HistoryEntry(domain.BatchStatusDiscarded, s.now(), "")); err != nil {
		return err
	}
	s.current = nil

	s.logger.Info("batch discarded", "batch_id", b.ID, "file_name", b.FileName)
	return nil
}

// ClearBatch drops the active batch without recording anything.
func (s *BatchService) ClearBatch() {
	s.current = nil
}

// RecordExport hands the batch clippings to an exporter and records the
// export. The batch stays pending. With selectedOnly only the selected
// clippings are returned.
func (s *BatchService) RecordExport(ctx context.Context, format string, selectedOnly bool) ([]domain.Clipping, error) {
	b := s.current
	if b == nil {
		return nil, ErrNoBatch
	}
	if format == "" {
		return nil, domainerrors.Validation("export format is required")
	}

	clippings := b.PlainClippings(selectedOnly)

	entry := b.HistoryEntry(domain.BatchStatusExported, s.now(), format)
	// One export entry per format, next to the terminal entry under the batch ID.
	entry.ID = b.ID + ":" + string(domain.BatchStatusExported) + ":" + format

	s.logger.Info("batch exported", "batch_id", b.ID, "format", format, "clippings", len(clippings))
	if err := s.recordHistory(ctx, entry); err != nil {
		return clippings, err
	}
	return clippings, nil
}

// LoadHistory replaces the in-memory history with the stored one.
func (s *BatchService) LoadHistory(ctx context.Context) error {
	entries, err := s.store.ListBatchHistory(ctx)
	if err != nil {
		return persistenceError(err, "load batch history")
	}
	s.history = entries
	return nil
}

// History returns the batch history, newest first.
func (s *BatchService) History() []*domain.BatchHistoryEntry {
	return slices.Clone(s.history)
}

// recordHistory prepends entry to the in-memory history and persists it.
// An entry with the same ID is replaced, matching the store.
func (s *BatchService) recordHistory(ctx context.Context, entry *domain.BatchHistoryEntry) error {
	s.history = slices.DeleteFunc(s.history, func(e *domain.BatchHistoryEntry) bool {
		return e.ID == entry.ID
	})
	s.history = slices.Insert(s.history, 0, entry)

	if err := s.store.SaveBatchHistory(ctx, entry); err != nil {
		s.logger.Error("failed to save batch history",
			"batch_id", entry.ID,
			"status", entry.Status,
			"error", err,
		)
		return persistenceError(err, "save batch history")
	}
	return nil
}

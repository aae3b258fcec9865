package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kindlehubapp/kindlehub/internal/batch"
	"github.com/kindlehubapp/kindlehub/internal/domain"
	"github.com/kindlehubapp/kindlehub/internal/importfile"
	"github.com/kindlehubapp/kindlehub/internal/service"
)

func (s *Server) registerBatchRoutes() {
	register(s.api, huma.Operation{
		OperationID:   "createBatch",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/{session}/batch",
		Summary:       "Create batch",
		Description:   "Stages parsed clippings as the session's active batch, replacing any previous one",
		Tags:          []string{"Batch"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBatch)

	register(s.api, huma.Operation{
		OperationID: "getBatch",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{session}/batch",
		Summary:     "Get batch",
		Description: "Returns the active batch with its books, clippings, warnings and stats",
		Tags:        []string{"Batch"},
	}, s.handleGetBatch)

	register(s.api, huma.Operation{
		OperationID: "commitBatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{session}/batch/commit",
		Summary:     "Commit batch",
		Description: "Writes the batch to the library in one transaction and records it as imported",
		Tags:        []string{"Batch"},
	}, s.handleCommitBatch)

	register(s.api, huma.Operation{
		OperationID:   "discardBatch",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions/{session}/batch/discard",
		Summary:       "Discard batch",
		Description:   "Drops the active batch and records it as discarded",
		Tags:          []string{"Batch"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDiscardBatch)

	register(s.api, huma.Operation{
		OperationID:   "clearBatch",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{session}/batch",
		Summary:       "Clear batch",
		Description:   "Drops the active batch without recording anything",
		Tags:          []string{"Batch"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearBatch)
}

// === DTOs ===

// CreateBatchRequest is the parser output for one imported file.
type CreateBatchRequest struct {
	FileName  string                `json:"file_name,omitempty" validate:"max=255" doc:"Imported file name"`
	FileSize  int64                 `json:"file_size,omitempty" validate:"gte=0" doc:"Imported file size in bytes"`
	Clippings []importfile.Clipping `json:"clippings" validate:"dive" doc:"Parsed clippings"`
	Stats     importfile.Stats      `json:"stats,omitempty" doc:"Parser counters"`
}

// CreateBatchInput wraps the create batch request for Huma.
type CreateBatchInput struct {
	Session string `path:"session" doc:"Session ID"`
	Body    CreateBatchRequest
}

// BatchView is the full review state of a batch.
type BatchView struct {
	ID             string             `json:"id" doc:"Batch ID"`
	CreatedAt      time.Time          `json:"created_at" doc:"Creation time"`
	FileName       string             `json:"file_name" doc:"Imported file name"`
	FileSize       int64              `json:"file_size" doc:"Imported file size in bytes"`
	Status         domain.BatchStatus `json:"status" doc:"pending until committed or discarded"`
	Stats          batch.Stats        `json:"stats" doc:"Derived counters"`
	Books          []batch.Book       `json:"books" doc:"Book groupings in first-appearance order"`
	Clippings      []batch.Clipping   `json:"clippings" doc:"Staged clippings in import order"`
	Warnings       []batch.Warning    `json:"warnings" doc:"Advisory warnings"`
	SelectionCount int                `json:"selection_count" doc:"Selected clippings"`
}

// BatchStateResponse reports the session's batch, if any.
type BatchStateResponse struct {
	Active       bool       `json:"active" doc:"Whether the session holds a batch"`
	IsProcessing bool       `json:"is_processing" doc:"Whether a commit is running"`
	Progress     int        `json:"progress" doc:"Commit progress, 0 to 100"`
	Batch        *BatchView `json:"batch,omitempty" doc:"The active batch"`
}

// BatchStateOutput wraps the batch state for Huma.
type BatchStateOutput struct {
	Body BatchStateResponse
}

// CommitResponse describes a successful commit.
type CommitResponse struct {
	BatchID           string                    `json:"batch_id" doc:"Committed batch ID"`
	BooksCreated      int                       `json:"books_created" doc:"Books created by this commit"`
	ClippingsInserted int                       `json:"clippings_inserted" doc:"Clippings inserted by this commit"`
	History           *domain.BatchHistoryEntry `json:"history" doc:"The imported history entry"`
	Warning           string                    `json:"warning,omitempty" doc:"Set when the commit succeeded but its history entry was not saved"`
}

// CommitOutput wraps the commit response for Huma.
type CommitOutput struct {
	Body CommitResponse
}

// === Handlers ===

func (s *Server) handleCreateBatch(_ context.Context, input *CreateBatchInput) (*BatchStateOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	doc := importfile.Document{Clippings: input.Body.Clippings, Stats: input.Body.Stats}
	res, err := doc.Result()
	if err != nil {
		return nil, err
	}
	src := res.Source
	src.FileName = input.Body.FileName
	src.FileSize = input.Body.FileSize

	var out BatchStateResponse
	err = s.services.Sessions.Do(input.Session, func(b *service.BatchService) error {
		b.CreateBatch(res.Clippings, src)
		out = batchState(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BatchStateOutput{Body: out}, nil
}

// handleGetBatch answers from the commit progress alone while a commit runs,
// since the commit holds the session until it finishes.
func (s *Server) handleGetBatch(_ context.Context, input *SessionInput) (*BatchStateOutput, error) {
	status, err := s.services.Sessions.CommitStatus(input.Session)
	if err != nil {
		return nil, err
	}
	if status.Processing {
		return &BatchStateOutput{Body: BatchStateResponse{
			Active:       true,
			IsProcessing: true,
			Progress:     status.Progress,
		}}, nil
	}

	var out BatchStateResponse
	err = s.services.Sessions.Do(input.Session, func(b *service.BatchService) error {
		out = batchState(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BatchStateOutput{Body: out}, nil
}

func (s *Server) handleCommitBatch(ctx context.Context, input *SessionInput) (*CommitOutput, error) {
	var result *service.CommitResult
	var historyErr error
	err := s.services.Sessions.Do(input.Session, func(b *service.BatchService) error {
		var err error
		result, err = b.CommitToDatabase(ctx)
		if err != nil && result != nil {
			historyErr = err
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := commitResponse(result)
	if historyErr != nil {
		s.logger.Warn("commit succeeded without history entry", "batch_id", result.BatchID, "error", historyErr)
		resp.Warning = "batch history could not be saved"
	}
	return &CommitOutput{Body: resp}, nil
}

func (s *Server) handleDiscardBatch(ctx context.Context, input *SessionInput) (*struct{}, error) {
	err := s.services.Sessions.Do(input.Session, func(b *service.BatchService) error {
		if !b.HasBatch() {
			return service.ErrNoBatch
		}
		return b.DiscardBatch(ctx)
	})
	return nil, err
}

func (s *Server) handleClearBatch(_ context.Context, input *SessionInput) (*struct{}, error) {
	err := s.services.Sessions.Do(input.Session, func(b *service.BatchService) error {
		b.ClearBatch()
		return nil
	})
	return nil, err
}

// === Helpers ===

// batchState snapshots the session's batch so the response can be encoded
// after the session lock is released.
func batchState(b *service.BatchService) BatchStateResponse {
	state := BatchStateResponse{
		Active:       b.HasBatch(),
		IsProcessing: b.IsProcessing(),
		Progress:     b.Progress(),
	}
	if cur := b.Current(); cur != nil {
		state.Batch = &BatchView{
			ID:             cur.ID,
			CreatedAt:      cur.CreatedAt,
			FileName:       cur.FileName,
			FileSize:       cur.FileSize,
			Status:         cur.Status,
			Stats:          cur.Stats,
			Books:          snapshotBooks(cur.BookList()),
			Clippings:      snapshotClippings(cur.ClippingList()),
			Warnings:       slices.Clone(cur.Warnings),
			SelectionCount: cur.SelectionCount(),
		}
	}
	return state
}

func snapshotBooks(books []*batch.Book) []batch.Book {
	out := make([]batch.Book, len(books))
	for i, book := range books {
		out[i] = *book
		out[i].ClippingIDs = slices.Clone(book.ClippingIDs)
	}
	return out
}

func snapshotClippings(clippings []*batch.Clipping) []batch.Clipping {
	out := make([]batch.Clipping, len(clippings))
	for i, c := range clippings {
		out[i] = *c
		out[i].Clipping = c.Clipping.Clone()
		out[i].Warnings = slices.Clone(c.Warnings)
	}
	return out
}

func commitResponse(result *service.CommitResult) CommitResponse {
	return CommitResponse{
		BatchID:           result.BatchID,
		BooksCreated:      result.Saved.BooksCreated,
		ClippingsInserted: result.Saved.ClippingsInserted,
		History:           result.History,
	}
}

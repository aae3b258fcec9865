package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kindlehubapp/kindlehub/internal/batch"
	"github.com/kindlehubapp/kindlehub/internal/domain"
	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/service"
)

// Selection actions accepted by the selection endpoint.
const (
	SelectionToggle      = "toggle"
	SelectionSelectAll   = "select_all"
	SelectionDeselectAll = "deselect_all"
	SelectionSelectBook  = "select_book"
	SelectionClear       = "clear"
)

func (s *Server) registerReviewRoutes() {
	register(s.api, huma.Operation{
		OperationID: "updateBatchClipping",
		Method:      http.MethodPatch,
		Path:        "/api/v1/sessions/{session}/batch/clippings/{clipping}",
		Summary:     "Edit clipping",
		Description: "Edits one staged clipping. Title or author changes regroup the batch books",
		Tags:        []string{"Review"},
	}, s.handleUpdateClipping)

	register(s.api, huma.Operation{
		OperationID: "bulkUpdateBatchClippings",
		Method:      http.MethodPatch,
		Path:        "/api/v1/sessions/{session}/batch/clippings",
		Summary:     "Bulk edit clippings",
		Description: "Applies one patch to many staged clippings",
		Tags:        []string{"Review"},
	}, s.handleBulkUpdateClippings)

	register(s.api, huma.Operation{
		OperationID: "deleteBatchClippings",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{session}/batch/clippings/delete",
		Summary:     "Delete clippings",
		Description: "Removes staged clippings from the batch",
		Tags:        []string{"Review"},
	}, s.handleDeleteClippings)

	register(s.api, huma.Operation{
		OperationID: "updateBatchSelection",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{session}/batch/selection",
		Summary:     "Change selection",
		Description: "Toggles, selects or clears the clipping selection",
		Tags:        []string{"Review"},
	}, s.handleSelection)

	register(s.api, huma.Operation{
		OperationID: "toggleBatchBookExpanded",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{session}/batch/books/expanded",
		Summary:     "Toggle book expansion",
		Description: "Flips the expanded flag of one book grouping",
		Tags:        []string{"Review"},
	}, s.handleToggleBookExpanded)

	register(s.api, huma.Operation{
		OperationID: "detectBatchDuplicates",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{session}/batch/duplicates",
		Summary:     "Detect duplicates",
		Description: "Reruns duplicate detection over the staged clippings",
		Tags:        []string{"Review"},
	}, s.handleDetectDuplicates)

	register(s.api, huma.Operation{
		OperationID: "exportBatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{session}/batch/export",
		Summary:     "Export batch",
		Description: "Returns plain clippings for an exporter and records the export in the history",
		Tags:        []string{"Review"},
	}, s.handleExportBatch)
}

// === DTOs ===

// ClippingPatch lists the fields an edit may change. Omitted fields are kept.
type ClippingPatch struct {
	Title    *string    `json:"title,omitempty" validate:"omitempty,notblank" doc:"Book title"`
	Author   *string    `json:"author,omitempty" doc:"Book author"`
	Type     *string    `json:"type,omitempty" validate:"omitempty,clippingtype" doc:"Clipping type"`
	Content  *string    `json:"content,omitempty" doc:"Clipping text"`
	Location *string    `json:"location,omitempty" doc:"Location in the book"`
	Page     *int       `json:"page,omitempty" validate:"omitempty,gte=0" doc:"Page number"`
	Date     *time.Time `json:"date,omitempty" doc:"Capture time"`
	Note     *string    `json:"note,omitempty" doc:"Attached note"`
	Tags     *[]string  `json:"tags,omitempty" doc:"Replacement tag list; an empty list clears the tags"`
}

// UpdateClippingInput wraps the edit request for Huma.
type UpdateClippingInput struct {
	Session  string `path:"session" doc:"Session ID"`
	Clipping string `path:"clipping" doc:"Batch clipping ID"`
	Body     ClippingPatch
}

// BulkUpdateRequest is the request body for bulk edits.
type BulkUpdateRequest struct {
	ClippingIDs []string      `json:"clipping_ids" validate:"min=1,dive,notblank" doc:"Batch clipping IDs"`
	Patch       ClippingPatch `json:"patch" doc:"Fields to change"`
}

// BulkUpdateInput wraps the bulk edit request for Huma.
type BulkUpdateInput struct {
	Session string `path:"session" doc:"Session ID"`
	Body    BulkUpdateRequest
}

// DeleteClippingsRequest is the request body for deleting clippings.
type DeleteClippingsRequest struct {
	ClippingIDs []string `json:"clipping_ids" validate:"min=1,dive,notblank" doc:"Batch clipping IDs"`
}

// DeleteClippingsInput wraps the delete request for Huma.
type DeleteClippingsInput struct {
	Session string `path:"session" doc:"Session ID"`
	Body    DeleteClippingsRequest
}

// SelectionRequest is the request body for selection changes.
type SelectionRequest struct {
	Action     string `json:"action" validate:"required,oneof=toggle select_all deselect_all select_book clear" doc:"toggle, select_all, deselect_all, select_book or clear"`
	ClippingID string `json:"clipping_id,omitempty" validate:"required_if=Action toggle" doc:"Clipping to toggle"`
	BookKey    string `json:"book_key,omitempty" validate:"required_if=Action select_book" doc:"Book grouping to select"`
}

// SelectionInput wraps the selection request for Huma.
type SelectionInput struct {
	Session string `path:"session" doc:"Session ID"`
	Body    SelectionRequest
}

// BookKeyRequest names one book grouping.
type BookKeyRequest struct {
	BookKey string `json:"book_key" validate:"notblank" doc:"Book grouping key"`
}

// BookKeyInput wraps the book key request for Huma.
type BookKeyInput struct {
	Session string `path:"session" doc:"Session ID"`
	Body    BookKeyRequest
}

// ExportRequest is the request body for exports.
type ExportRequest struct {
	Format       string `json:"format" validate:"notblank,max=32" doc:"Exporter format name"`
	SelectedOnly bool   `json:"selected_only,omitempty" doc:"Export only the selected clippings"`
}

// ExportInput wraps the export request for Huma.
type ExportInput struct {
	Session string `path:"session" doc:"Session ID"`
	Body    ExportRequest
}

// CountResponse reports how many items an operation affected.
type CountResponse struct {
	Count          int `json:"count" doc:"Affected items"`
	SelectionCount int `json:"selection_count" doc:"Selected clippings after the operation"`
	TotalClippings int `json:"total_clippings" doc:"Staged clippings after the operation"`
}

// CountOutput wraps the count response for Huma.
type CountOutput struct {
	Body CountResponse
}

// ExpandedResponse reports a book grouping's expansion flag.
type ExpandedResponse struct {
	BookKey    string `json:"book_key" doc:"Book grouping key"`
	IsExpanded bool   `json:"is_expanded" doc:"Expansion flag after the toggle"`
}

// ExpandedOutput wraps the expanded response for Huma.
type ExpandedOutput struct {
	Body ExpandedResponse
}

// ExportResponse carries the clippings handed to an exporter.
type ExportResponse struct {
	BatchID   string            `json:"batch_id" doc:"Exported batch ID"`
	Format    string            `json:"format" doc:"Exporter format name"`
	Clippings []domain.Clipping `json:"clippings" doc:"Plain clippings"`
}

// ExportOutput wraps the export response for Huma.
type ExportOutput struct {
	Body ExportResponse
}

// === Handlers ===

func (s *Server) handleUpdateClipping(_ context.Context, input *UpdateClippingInput) (*BatchStateOutput, error) {
	patch, err := s.toPatch(input.Body)
	if err != nil {
		return nil, err
	}

	var out BatchStateResponse
	err = s.services.Sessions.Do(input.Session, func(b *service.BatchService) error {
		if !b.HasBatch() {
			return service.ErrNoBatch
		}
		if !b.UpdateClipping(input.Clipping, patch) {
			return domainerrors.NotFoundf("clipping %s not found", input.Clipping)
		}
		out = batchState(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BatchStateOutput{Body: out}, nil
}

func (s *Server) handleBulkUpdateClippings(_ context.Context, input *BulkUpdateInput) (*CountOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}
	patch, err := s.toPatch(input.Body.Patch)
	if err != nil {
		return nil, err
	}

	return s.count(input.Session, func(b *service.BatchService) (int, error) {
		return b.BulkUpdateClippings(input.Body.ClippingIDs, patch), nil
	})
}

func (s *Server) handleDeleteClippings(_ context.Context, input *DeleteClippingsInput) (*CountOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	return s.count(input.Session, func(b *service.BatchService) (int, error) {
		return b.DeleteClippings(input.Body.ClippingIDs), nil
	})
}

func (s *Server) handleSelection(_ context.Context, input *SelectionInput) (*CountOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}
	req := input.Body

	return s.count(input.Session, func(b *service.BatchService) (int, error) {
		switch req.Action {
		case SelectionToggle:
			if !b.ToggleSelection(req.ClippingID) {
				return 0, domainerrors.NotFoundf("clipping %s not found", req.ClippingID)
			}
			return 1, nil
		case SelectionSelectAll:
			b.SelectAll()
		case SelectionDeselectAll:
			b.DeselectAll()
		case SelectionClear:
			b.ClearSelection()
		case SelectionSelectBook:
			n := b.SelectBook(req.BookKey)
			if n == 0 && !hasBook(b, req.BookKey) {
				return 0, domainerrors.NotFoundf("book %q not found", req.BookKey)
			}
			return n, nil
		}
		return b.SelectionCount(), nil
	})
}

func (s *Server) handleToggleBookExpanded(_ context.Context, input *BookKeyInput) (*ExpandedOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}
	key := input.Body.BookKey

	var out ExpandedResponse
	err := s.services.Sessions.Do(input.Session, func(b *service.BatchService) error {
		if !b.HasBatch() {
			return service.ErrNoBatch
		}
		if !b.ToggleBookExpanded(key) {
			return domainerrors.NotFoundf("book %q not found", key)
		}
		book, _ := b.Current().Books.Get(key)
		out = ExpandedResponse{BookKey: key, IsExpanded: book.IsExpanded}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ExpandedOutput{Body: out}, nil
}

func (s *Server) handleDetectDuplicates(_ context.Context, input *SessionInput) (*CountOutput, error) {
	return s.count(input.Session, func(b *service.BatchService) (int, error) {
		return b.DetectDuplicates(), nil
	})
}

func (s *Server) handleExportBatch(ctx context.Context, input *ExportInput) (*ExportOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}

	var out ExportResponse
	err := s.services.Sessions.Do(input.Session, func(b *service.BatchService) error {
		clippings, err := b.RecordExport(ctx, input.Body.Format, input.Body.SelectedOnly)
		if err != nil {
			return err
		}
		out = ExportResponse{
			BatchID:   b.Current().ID,
			Format:    input.Body.Format,
			Clippings: clippings,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ExportOutput{Body: out}, nil
}

// === Helpers ===

// count runs fn on the session's active batch and reports the affected
// count together with the batch totals.
func (s *Server) count(sessionID string, fn func(*service.BatchService) (int, error)) (*CountOutput, error) {
	var out CountResponse
	err := s.services.Sessions.Do(sessionID, func(b *service.BatchService) error {
		if !b.HasBatch() {
			return service.ErrNoBatch
		}
		n, err := fn(b)
		if err != nil {
			return err
		}
		out = CountResponse{
			Count:          n,
			SelectionCount: b.SelectionCount(),
			TotalClippings: b.Current().Stats.TotalClippings,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &CountOutput{Body: out}, nil
}

func hasBook(b *service.BatchService, key string) bool {
	return b.Current().Books.Has(key)
}

// toPatch validates an edit and converts it to a batch patch.
func (s *Server) toPatch(p ClippingPatch) (batch.Patch, error) {
	if err := s.validator.Validate(&p); err != nil {
		return batch.Patch{}, err
	}

	patch := batch.Patch{
		Title:    p.Title,
		Author:   p.Author,
		Content:  p.Content,
		Location: p.Location,
		Page:     p.Page,
		Date:     p.Date,
		Note:     p.Note,
	}
	if p.Type != nil {
		typ, err := domain.ParseClippingType(*p.Type)
		if err != nil {
			return batch.Patch{}, domainerrors.Validation(err.Error())
		}
		patch.Type = &typ
	}
	if p.Tags != nil {
		tags := append([]string(nil), (*p.Tags)...)
		patch.Tags = &tags
	}

	if patch.IsEmpty() {
		return batch.Patch{}, domainerrors.Validation("patch changes no fields")
	}
	return patch, nil
}

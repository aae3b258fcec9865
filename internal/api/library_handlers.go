package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kindlehubapp/kindlehub/internal/domain"
	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

func (s *Server) registerLibraryRoutes() {
	register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns committed books, most recently read first",
		Tags:        []string{"Library"},
	}, s.handleListBooks)

	register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a committed book by ID",
		Tags:        []string{"Library"},
	}, s.handleGetBook)

	register(s.api, huma.Operation{
		OperationID: "listBookClippings",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/clippings",
		Summary:     "List book clippings",
		Description: "Returns the stored clippings of one book",
		Tags:        []string{"Library"},
	}, s.handleListBookClippings)

	register(s.api, huma.Operation{
		OperationID: "listClippings",
		Method:      http.MethodGet,
		Path:        "/api/v1/clippings",
		Summary:     "List clippings",
		Description: "Returns every stored clipping, newest first",
		Tags:        []string{"Library"},
	}, s.handleListClippings)

	register(s.api, huma.Operation{
		OperationID: "getLibraryStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Library stats",
		Description: "Returns book and clipping totals by type",
		Tags:        []string{"Library"},
	}, s.handleStats)

	register(s.api, huma.Operation{
		OperationID: "listBatchHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/history",
		Summary:     "Batch history",
		Description: "Returns every recorded import, export and discard, newest first",
		Tags:        []string{"Library"},
	}, s.handleListHistory)

	register(s.api, huma.Operation{
		OperationID: "editStoredClipping",
		Method:      http.MethodPatch,
		Path:        "/api/v1/clippings/{id}",
		Summary:     "Edit stored clipping",
		Description: "Changes the given fields of a committed clipping",
		Tags:        []string{"Library"},
	}, s.handleEditStoredClipping)

	register(s.api, huma.Operation{
		OperationID: "deleteStoredClippings",
		Method:      http.MethodPost,
		Path:        "/api/v1/clippings/delete",
		Summary:     "Delete stored clippings",
		Description: "Deletes committed clippings and recounts their books",
		Tags:        []string{"Library"},
	}, s.handleDeleteStoredClippings)

	register(s.api, huma.Operation{
		OperationID:   "duplicateStoredClippings",
		Method:        http.MethodPost,
		Path:          "/api/v1/clippings/duplicate",
		Summary:       "Duplicate stored clippings",
		Description:   "Stores a copy of each clipping under the same book",
		Tags:          []string{"Library"},
		DefaultStatus: http.StatusCreated,
	}, s.handleDuplicateStoredClippings)

	register(s.api, huma.Operation{
		OperationID:   "addStoredClipping",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/clippings",
		Summary:       "Add clipping",
		Description:   "Writes a new clipping into a committed book",
		Tags:          []string{"Library"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddStoredClipping)

	register(s.api, huma.Operation{
		OperationID:   "clearLibrary",
		Method:        http.MethodDelete,
		Path:          "/api/v1/library",
		Summary:       "Clear library",
		Description:   "Deletes every book and clipping. Batch history is kept",
		Tags:          []string{"Library"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearLibrary)
}

// === DTOs ===

// ListBooksInput contains parameters for listing books.
type ListBooksInput struct {
	Refresh bool `query:"refresh" doc:"Reload the book list from the store first"`
}

// ListBooksResponse contains the committed books.
type ListBooksResponse struct {
	Books          []*domain.Book `json:"books" doc:"Books, most recently read first"`
	TotalBooks     int            `json:"total_books" doc:"Number of books"`
	TotalClippings int            `json:"total_clippings" doc:"Sum of the books' clipping counts"`
}

// ListBooksOutput wraps the list books response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// BookInput identifies a book.
type BookInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Book ID"`
}

// BookOutput wraps a book for Huma.
type BookOutput struct {
	Body *domain.Book
}

// ClippingsResponse contains stored clippings.
type ClippingsResponse struct {
	Clippings []*domain.StoredClipping `json:"clippings" doc:"Stored clippings"`
}

// ClippingsOutput wraps the clippings response for Huma.
type ClippingsOutput struct {
	Body ClippingsResponse
}

// StatsOutput wraps the library stats for Huma.
type StatsOutput struct {
	Body *store.LibraryStats
}

// HistoryResponse contains batch history entries.
type HistoryResponse struct {
	Entries []*domain.BatchHistoryEntry `json:"entries" doc:"History entries, newest first"`
}

// HistoryOutput wraps the history response for Huma.
type HistoryOutput struct {
	Body HistoryResponse
}

// StoredClippingPatch lists the fields of a committed clipping an edit may
// change. Omitted fields are kept.
type StoredClippingPatch struct {
	Type     *string   `json:"type,omitempty" validate:"omitempty,clippingtype" doc:"Clipping type"`
	Content  *string   `json:"content,omitempty" doc:"Clipping text"`
	Location *string   `json:"location,omitempty" doc:"Location in the book"`
	Page     *int      `json:"page,omitempty" validate:"omitempty,gte=0" doc:"Page number"`
	Note     *string   `json:"note,omitempty" doc:"Attached note"`
	Tags     *[]string `json:"tags,omitempty" doc:"Replacement tag list; an empty list clears the tags"`
}

// EditStoredClippingInput wraps a stored clipping edit for Huma.
type EditStoredClippingInput struct {
	ID   int64 `path:"id" minimum:"1" doc:"Clipping ID"`
	Body StoredClippingPatch
}

// StoredClippingOutput wraps one stored clipping for Huma.
type StoredClippingOutput struct {
	Body *domain.StoredClipping
}

// StoredClippingIDsRequest names committed clippings.
type StoredClippingIDsRequest struct {
	ClippingIDs []int64 `json:"clipping_ids" validate:"min=1,dive,gte=1" doc:"Clipping IDs"`
}

// StoredClippingIDsInput wraps a list of clipping IDs for Huma.
type StoredClippingIDsInput struct {
	Body StoredClippingIDsRequest
}

// DeletedResponse reports a library delete.
type DeletedResponse struct {
	Deleted        int `json:"deleted" doc:"Clippings deleted"`
	TotalClippings int `json:"total_clippings" doc:"Clippings left in the library"`
}

// DeletedOutput wraps the delete response for Huma.
type DeletedOutput struct {
	Body DeletedResponse
}

// NewClippingRequest is a clipping written by hand.
type NewClippingRequest struct {
	Type     string     `json:"type,omitempty" validate:"omitempty,clippingtype" doc:"Clipping type, highlight when empty"`
	Content  string     `json:"content,omitempty" doc:"Clipping text"`
	Location string     `json:"location,omitempty" doc:"Location in the book"`
	Page     *int       `json:"page,omitempty" validate:"omitempty,gte=0" doc:"Page number"`
	Date     *time.Time `json:"date,omitempty" doc:"Capture time, now when empty"`
	Note     string     `json:"note,omitempty" doc:"Attached note"`
	Tags     []string   `json:"tags,omitempty" doc:"Tags"`
}

// AddStoredClippingInput wraps a new clipping for Huma.
type AddStoredClippingInput struct {
	ID   int64 `path:"id" minimum:"1" doc:"Book ID"`
	Body NewClippingRequest
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	lib := s.services.Library
	if input.Refresh || lib.LastError() != nil {
		if err := lib.LoadBooks(ctx); err != nil {
			return nil, err
		}
	}

	books := lib.Books()
	if books == nil {
		books = []*domain.Book{}
	}
	return &ListBooksOutput{Body: ListBooksResponse{
		Books:          books,
		TotalBooks:     len(books),
		TotalClippings: lib.TotalClippings(),
	}}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookInput) (*BookOutput, error) {
	book, err := s.services.Library.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleListBookClippings(ctx context.Context, input *BookInput) (*ClippingsOutput, error) {
	clippings, err := s.services.Library.ClippingsForBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ClippingsOutput{Body: ClippingsResponse{Clippings: nonNil(clippings)}}, nil
}

func (s *Server) handleListClippings(ctx context.Context, _ *struct{}) (*ClippingsOutput, error) {
	clippings, err := s.services.Library.AllClippings(ctx)
	if err != nil {
		return nil, err
	}
	return &ClippingsOutput{Body: ClippingsResponse{Clippings: nonNil(clippings)}}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	stats, err := s.services.Library.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsOutput{Body: stats}, nil
}

func (s *Server) handleListHistory(ctx context.Context, _ *struct{}) (*HistoryOutput, error) {
	entries, err := s.services.Library.BatchHistory(ctx)
	if err != nil {
		return nil, err
	}
	return &HistoryOutput{Body: HistoryResponse{Entries: nonNil(entries)}}, nil
}

func (s *Server) handleEditStoredClipping(ctx context.Context, input *EditStoredClippingInput) (*StoredClippingOutput, error) {
	p := input.Body
	if err := s.validator.Validate(&p); err != nil {
		return nil, err
	}

	edit := store.ClippingEdit{
		Content:  p.Content,
		Location: p.Location,
		Page:     p.Page,
		Note:     p.Note,
		Tags:     p.Tags,
	}
	if p.Type != nil {
		typ, err := domain.ParseClippingType(*p.Type)
		if err != nil {
			return nil, domainerrors.Validation(err.Error())
		}
		edit.Type = &typ
	}
	if edit == (store.ClippingEdit{}) {
		return nil, domainerrors.Validation("patch changes no fields")
	}

	c, err := s.services.Library.UpdateClipping(ctx, input.ID, edit)
	if err != nil {
		return nil, err
	}
	return &StoredClippingOutput{Body: c}, nil
}

func (s *Server) handleDeleteStoredClippings(ctx context.Context, input *StoredClippingIDsInput) (*DeletedOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}
	n, err := s.services.Library.DeleteClippings(ctx, input.Body.ClippingIDs)
	if err != nil {
		return nil, err
	}
	return &DeletedOutput{Body: DeletedResponse{
		Deleted:        n,
		TotalClippings: s.services.Library.TotalClippings(),
	}}, nil
}

func (s *Server) handleDuplicateStoredClippings(ctx context.Context, input *StoredClippingIDsInput) (*ClippingsOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, err
	}
	copies, err := s.services.Library.DuplicateClippings(ctx, input.Body.ClippingIDs)
	if err != nil {
		return nil, err
	}
	return &ClippingsOutput{Body: ClippingsResponse{Clippings: copies}}, nil
}

func (s *Server) handleAddStoredClipping(ctx context.Context, input *AddStoredClippingInput) (*StoredClippingOutput, error) {
	req := input.Body
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}

	nc := store.NewClipping{
		Content:  req.Content,
		Location: req.Location,
		Page:     req.Page,
		Date:     req.Date,
		Note:     req.Note,
		Tags:     req.Tags,
	}
	if req.Type != "" {
		typ, err := domain.ParseClippingType(req.Type)
		if err != nil {
			return nil, domainerrors.Validation(err.Error())
		}
		nc.Type = typ
	}

	c, err := s.services.Library.AddClipping(ctx, input.ID, nc)
	if err != nil {
		return nil, err
	}
	return &StoredClippingOutput{Body: c}, nil
}

func (s *Server) handleClearLibrary(ctx context.Context, _ *struct{}) (*struct{}, error) {
	return nil, s.services.Library.ClearAll(ctx)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindlehubapp/kindlehub/internal/domain"
)

// commitSample stages and commits the sample batch and returns the stored
// Dune book and its clippings.
func (ts *testServer) commitSample(t *testing.T) (*domain.Book, []*domain.StoredClipping) {
	t.Helper()
	session := ts.createSession(t)
	ts.createBatch(t, session)
	resp := ts.api.Post("/api/v1/sessions/"+session+"/batch/commit", struct{}{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/books")
	require.Equal(t, http.StatusOK, resp.Code)
	var dune *domain.Book
	for _, b := range decode[ListBooksResponse](t, resp).Data.Books {
		if b.Title == "Dune" {
			dune = b
		}
	}
	require.NotNil(t, dune)

	resp = ts.api.Get(fmt.Sprintf("/api/v1/books/%d/clippings", dune.ID))
	require.Equal(t, http.StatusOK, resp.Code)
	clippings := decode[ClippingsResponse](t, resp).Data.Clippings
	require.Len(t, clippings, 2)
	return dune, clippings
}

func (ts *testServer) clippingCount(t *testing.T, bookID int64) int {
	t.Helper()
	resp := ts.api.Get(fmt.Sprintf("/api/v1/books/%d", bookID))
	require.Equal(t, http.StatusOK, resp.Code)
	return decode[*domain.Book](t, resp).Data.ClippingCount
}

func TestEditStoredClipping(t *testing.T) {
	ts := setupTestServer(t, Options{})
	_, clippings := ts.commitSample(t)
	path := fmt.Sprintf("/api/v1/clippings/%d", clippings[0].ID)

	resp := ts.api.Patch(path, map[string]any{"content": "Fear.", "type": "note", "tags": []string{"fear"}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	edited := decode[*domain.StoredClipping](t, resp).Data
	assert.Equal(t, "Fear.", edited.Content)
	assert.Equal(t, domain.ClippingTypeNote, edited.Type)
	assert.Equal(t, []string{"fear"}, edited.Tags)

	resp = ts.api.Patch(path, map[string]any{"tags": []string{}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Empty(t, decode[*domain.StoredClipping](t, resp).Data.Tags)

	resp = ts.api.Patch(path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Patch(path, map[string]any{"type": "sticky"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Patch("/api/v1/clippings/9999", map[string]any{"content": "x"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[any](t, resp).Code)
}

func TestDuplicateAndDeleteStoredClippings(t *testing.T) {
	ts := setupTestServer(t, Options{})
	dune, clippings := ts.commitSample(t)

	resp := ts.api.Post("/api/v1/clippings/duplicate", map[string]any{"clipping_ids": []int64{clippings[0].ID}})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	copies := decode[ClippingsResponse](t, resp).Data.Clippings
	require.Len(t, copies, 1)
	assert.Equal(t, clippings[0].Content, copies[0].Content)
	assert.Equal(t, 3, ts.clippingCount(t, dune.ID))

	resp = ts.api.Post("/api/v1/clippings/delete", map[string]any{"clipping_ids": []int64{clippings[1].ID, copies[0].ID}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	deleted := decode[DeletedResponse](t, resp).Data
	assert.Equal(t, 2, deleted.Deleted)
	assert.Equal(t, 2, deleted.TotalClippings)
	assert.Equal(t, 1, ts.clippingCount(t, dune.ID))

	resp = ts.api.Post("/api/v1/clippings/delete", map[string]any{"clipping_ids": []int64{9999}})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Post("/api/v1/clippings/delete", map[string]any{"clipping_ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAddStoredClipping(t *testing.T) {
	ts := setupTestServer(t, Options{})
	dune, _ := ts.commitSample(t)
	path := fmt.Sprintf("/api/v1/books/%d/clippings", dune.ID)

	resp := ts.api.Post(path, map[string]any{"content": "Written later", "page": 3})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	added := decode[*domain.StoredClipping](t, resp).Data
	assert.Equal(t, dune.ID, added.BookID)
	assert.Equal(t, domain.ClippingTypeHighlight, added.Type)
	require.NotNil(t, added.Page)
	assert.Equal(t, 3, *added.Page)
	assert.Equal(t, 3, ts.clippingCount(t, dune.ID))

	resp = ts.api.Post("/api/v1/books/9999/clippings", map[string]any{"content": "x"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Post(path, map[string]any{"type": "sticky"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

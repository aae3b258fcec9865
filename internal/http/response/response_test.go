package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"message": "test"}, discardLogger())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var result Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, Version, result.Version)
	assert.True(t, result.Success)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Error)
}

func TestJSON_ErrorStatus(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNotFound, nil, nil)

	var result Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"not found", func(w http.ResponseWriter) { NotFound(w, "missing", nil) }, http.StatusNotFound, "NOT_FOUND"},
		{"method not allowed", func(w http.ResponseWriter) { MethodNotAllowed(w, "nope", nil) }, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"too many requests", func(w http.ResponseWriter) { TooManyRequests(w, "slow down", nil) }, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "boom", nil) }, http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			env := decodeError(t, w)
			assert.Equal(t, Version, env.Version)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "domain error",
			err:     domainerrors.InvalidState("no active batch"),
			status:  http.StatusConflict,
			code:    "INVALID_STATE",
			message: "no active batch",
		},
		{
			name:    "store error",
			err:     store.ErrNotFound.WithMessage("book 7"),
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
			message: "book 7",
		},
		{
			name:    "unknown error",
			err:     errors.New("disk on fire"),
			status:  http.StatusInternalServerError,
			code:    "INTERNAL",
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(w, tt.err, discardLogger())

			assert.Equal(t, tt.status, w.Code)
			env := decodeError(t, w)
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.message, env.Message)
		})
	}
}

func TestHandleError_Details(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, domainerrors.ValidationWithDetails("validation failed", map[string]string{"title": "is required"}), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeError(t, w)
	assert.Equal(t, map[string]any{"title": "is required"}, env.Details)
}

package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
)

func TestToStatusError(t *testing.T) {
	RegisterErrorHandler()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"domain not found", domainerrors.NotFound("book not found"), http.StatusNotFound, "NOT_FOUND"},
		{"wrapped invalid state", fmt.Errorf("commit: %w", domainerrors.InvalidState("no batch")), http.StatusConflict, "INVALID_STATE"},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiErr *APIError
			require.ErrorAs(t, toStatusError(tt.err), &apiErr)
			assert.Equal(t, tt.status, apiErr.GetStatus())
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}

	existing := huma.Error429TooManyRequests("slow down")
	assert.Same(t, existing, toStatusError(existing))
}

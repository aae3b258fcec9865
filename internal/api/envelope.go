package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/kindlehubapp/kindlehub/internal/http/response"
)

// EnvelopeVersion is the response envelope format version.
const EnvelopeVersion = response.Version

// APIEnvelope wraps successful responses and uncoded errors.
type APIEnvelope = response.Envelope //nolint:revive // API prefix is intentional for clarity

// APIErrorEnvelope wraps coded error responses.
type APIErrorEnvelope = response.ErrorEnvelope //nolint:revive // API prefix is intentional for clarity

// EnvelopeTransformer wraps every huma response body in the versioned
// envelope shared with the router-level responses.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}, nil
	case error:
		return APIEnvelope{
			Version: EnvelopeVersion,
			Error:   body.Error(),
		}, nil
	}

	return APIEnvelope{
		Version: EnvelopeVersion,
		Success: len(status) > 0 && status[0] < '4',
		Data:    v,
	}, nil
}

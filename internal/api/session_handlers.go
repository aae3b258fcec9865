package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerSessionRoutes() {
	register(s.api, huma.Operation{
		OperationID:   "createSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Create session",
		Description:   "Opens a review session that can hold one import batch",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateSession)

	register(s.api, huma.Operation{
		OperationID:   "deleteSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{session}",
		Summary:       "Close session",
		Description:   "Closes a session and drops its batch without recording it",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSession)
}

// SessionInput identifies a review session.
type SessionInput struct {
	Session string `path:"session" doc:"Session ID"`
}

// SessionResponse contains session data in API responses.
type SessionResponse struct {
	ID        string    `json:"id" doc:"Session ID"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

func (s *Server) handleCreateSession(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	sess, err := s.services.Sessions.Create(ctx)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: SessionResponse{ID: sess.ID, CreatedAt: sess.CreatedAt}}, nil
}

func (s *Server) handleDeleteSession(_ context.Context, input *SessionInput) (*struct{}, error) {
	if err := s.services.Sessions.Close(input.Session); err != nil {
		return nil, err
	}
	return nil, nil
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	Sessions   int                        `json:"sessions" doc:"Open review sessions"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	dbHealth := s.checkStore(ctx)
	components["store"] = dbHealth
	if dbHealth.Status != "healthy" {
		overall = dbHealth.Status
	}

	libraryHealth := s.checkLibraryCache()
	components["library"] = libraryHealth
	if libraryHealth.Status != "healthy" && overall == "healthy" {
		overall = libraryHealth.Status
	}

	sessions := 0
	if s.services.Sessions != nil {
		sessions = s.services.Sessions.Len()
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
			Sessions:   sessions,
		},
	}, nil
}

// checkStore verifies the store answers a ping.
func (s *Server) checkStore(ctx context.Context) ComponentHealth {
	if s.services.Library == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "store not configured",
		}
	}

	start := time.Now()
	err := s.services.Library.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "store ping failed",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// checkLibraryCache reports whether the last book reload succeeded.
func (s *Server) checkLibraryCache() ComponentHealth {
	if s.services.Library == nil {
		return ComponentHealth{Status: "degraded", Message: "library not configured"}
	}
	if err := s.services.Library.LastError(); err != nil {
		return ComponentHealth{Status: "degraded", Message: "last book reload failed"}
	}
	return ComponentHealth{Status: "healthy"}
}

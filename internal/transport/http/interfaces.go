package http

import (
	"context"
	"io"

	api "retailcast/pkg/contracts/api/v1"
	"retailcast/pkg/contracts/domain"
	"retailcast/pkg/contracts/events"
)

// DashboardService builds the interactive dashboard from an uploaded file
type DashboardService interface {
	FromUpload(ctx context.Context, filename string, r io.Reader) (*domain.Dashboard, error)
}

// PipelineService starts and tracks batch runs
type PipelineService interface {
	Start(ctx context.Context, req api.PipelineRunRequest) (*events.RunSnapshot, error)
	Status(id string) (*events.RunSnapshot, error)
	Cancel(id string) error
}

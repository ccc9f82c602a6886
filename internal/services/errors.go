package services

import "errors"

var (
	// ErrShuttingDown is returned by PipelineService.Start after Shutdown
	ErrShuttingDown = errors.New("service is shutting down")
)

// Package api contains the request and response contracts of the v1 HTTP API.
package api

import (
	"time"

	"retailcast/pkg/contracts/domain"
)

// Batch pipeline stage identifiers accepted by PipelineRunRequest
const (
	StageMakeDaily = "make_daily"
	StageForecast  = "forecast"
	StageAll       = "all"
)

// PipelineRunRequest starts a batch pipeline run
type PipelineRunRequest struct {
	Stage        string `json:"stage" validate:"required,oneof=make_daily forecast all"`
	InputFile    string `json:"input_file,omitempty" validate:"omitempty,max=4096,datafile"`
	DailyFile    string `json:"daily_file,omitempty" validate:"omitempty,max=4096,datafile"`
	ForecastFile string `json:"forecast_file,omitempty" validate:"omitempty,max=4096,datafile"`
}

// PipelineRunResponse reports the outcome of a batch run
type PipelineRunResponse struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Duration  string                 `json:"duration"`
	Stages    map[string]StageResult `json:"stages"`
	Error     string                 `json:"error,omitempty"`
	StartedAt time.Time              `json:"started_at"`
}

// StageResult is the final state of a single stage
type StageResult struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ForecastResponse wraps the interactive dashboard
type ForecastResponse struct {
	Dashboard *domain.Dashboard `json:"dashboard"`
}

package operations

import (
	"time"
)

// Pipeline step identifiers
const (
	StageIDMakeDaily = "make_daily"
	StageIDForecast  = "forecast"

	// StageAll selects every registered step in dependency order
	StageAll = "all"
)

// Pipeline step names
const (
	StageNameMakeDaily = "Daily Aggregation"
	StageNameForecast  = "Sales Forecast"
)

// Keys of OperationState.Config, set from the request
const (
	ConfigKeyInputFile    = "input_file"
	ConfigKeyDailyFile    = "daily_file"
	ConfigKeyForecastFile = "forecast_file"
)

// Keys of OperationState.Context, written by steps
const (
	ContextKeyRowsLoaded  = "rows_loaded"
	ContextKeyRowsDropped = "rows_dropped"
	ContextKeyDays        = "days"
	ContextKeyMethod      = "method"
	ContextKeySummary     = "summary"
)

// Default timeouts
const (
	DefaultStageTimeout     = 5 * time.Minute
	DefaultMakeDailyTimeout = 2 * time.Minute
	DefaultForecastTimeout  = 2 * time.Minute
)

// ExecutionMode defines how steps are executed
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration: a single attempt
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  1,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationRequest represents a request to execute the pipeline
type OperationRequest struct {
	ID         string                 `json:"id"`
	Stage      string                 `json:"stage"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// OperationResponse represents the response from a pipeline execution
type OperationResponse struct {
	ID        string                `json:"id"`
	Status    OperationStatusValue  `json:"status"`
	Duration  time.Duration         `json:"duration"`
	StartedAt time.Time             `json:"started_at"`
	Steps     map[string]*StepState `json:"steps"`
	Error     string                `json:"error,omitempty"`
}

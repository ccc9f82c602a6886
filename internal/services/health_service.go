package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"retailcast/internal/config"
	"retailcast/internal/infrastructure"
	"retailcast/internal/validation"
	"retailcast/pkg/contracts"
)

// ClientCounter reports connected websocket clients
type ClientCounter interface {
	ClientCount() int
}

// RunLister reports active pipeline runs
type RunLister interface {
	ActiveRuns() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	paths     *config.Paths
	validator *validation.FileValidator
	hub       ClientCounter
	runs      RunLister
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health states
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// NewHealthService creates a health service. hub and runs may be nil.
func NewHealthService(version, buildTime string, paths *config.Paths, validator *validation.FileValidator, hub ClientCounter, runs RunLister, logger *slog.Logger) *HealthService {
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		paths:     paths,
		validator: validator,
		hub:       hub,
		runs:      runs,
		startTime: time.Now(),
		logger:    infrastructure.WithComponent(logger, "health_service"),
	}
}

// HealthCheck reports liveness with basic runtime figures
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	runtimeInfo := map[string]interface{}{
		"uptime_seconds": time.Since(hs.startTime).Seconds(),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
	}
	if hs.hub != nil {
		runtimeInfo["websocket_clients"] = hs.hub.ClientCount()
		if st, ok := hs.hub.(interface{ Stats() map[string]interface{} }); ok {
			runtimeInfo["websocket"] = st.Stats()
		}
	}
	if hs.runs != nil {
		runtimeInfo["active_runs"] = hs.runs.ActiveRuns()
	}

	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Runtime:   runtimeInfo,
	}
}

// ReadinessCheck verifies that the data and output directories are usable
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"data":   hs.checkDataDir(),
			"output": hs.checkOutputDir(),
		},
	}

	for name, svc := range status.Services {
		if svc.Status != StatusReady {
			status.Status = StatusNotReady
			hs.logger.WarnContext(ctx, "readiness check failed",
				slog.String("service", name),
				slog.String("message", svc.Message))
		}
	}
	return status
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	result := map[string]interface{}{
		"version":     hs.version,
		"go_version":  info.GoVersion,
		"os":          info.OS,
		"arch":        info.Architecture,
		"start_time":  hs.startTime.UTC().Format(time.RFC3339),
		"api":         info.APIVersion,
		"data_format": info.DataFormat,
		"git_commit":  info.GitCommit,
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkDataDir() ServiceHealth {
	info, err := os.Stat(hs.paths.DataDir)
	if err != nil {
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("data directory unavailable: %v", err)}
	}
	if !info.IsDir() {
		return ServiceHealth{Status: StatusNotReady, Message: "data path is not a directory"}
	}
	return ServiceHealth{Status: StatusReady}
}

func (hs *HealthService) checkOutputDir() ServiceHealth {
	if err := hs.validator.ValidateOutputDirectory(hs.paths.OutputDir); err != nil {
		return ServiceHealth{Status: StatusNotReady, Message: err.Error()}
	}
	return ServiceHealth{Status: StatusReady}
}

// Package operations runs the batch forecasting pipeline as a sequence of
// dependent steps.
//
// Core Components:
//
// Manager: orchestrates a run. It resolves which steps to execute, enforces
// dependencies, applies per-step timeouts and the retry policy, and keeps the
// StatusBroadcaster informed.
//
// Step: a single unit of work. MakeDailyStage aggregates the raw sales file
// into a daily series and ForecastStage forecasts that series.
//
// Registry: holds registered steps and orders them topologically.
//
// StatusBroadcaster: the single source of run status. Every change produces
// a complete RunSnapshot that is pushed to websocket subscribers and kept for
// later lookup.
//
// Example usage:
//
//	manager := operations.NewManager(hub, nil, nil, logger)
//	manager.RegisterStage(operations.NewMakeDailyStage(deps))
//	manager.RegisterStage(operations.NewForecastStage(deps))
//
//	resp, err := manager.Execute(ctx, operations.OperationRequest{Stage: "all"})
//
// A failed step marks every step depending on it as skipped.
package operations

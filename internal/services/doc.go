// Package services implements the business logic layer of retailcast.
// Handlers and the batch binary call into services; services call the
// dataprocessing, forecast and operations packages.
//
// # Available Services
//
//	- DashboardService: builds the interactive dashboard for one uploaded file
//	- PipelineService: runs the make_daily and forecast stages, synchronously
//	  or in the background with status on the websocket hub
//	- HealthService: liveness, readiness and version information
//
// RunForecast is the pure core shared by the interactive path: rows in,
// daily series, forecast and summary out.
//
// # Error Handling
//
// Services return the domain errors of the packages they call, wrapped with
// context. internal/errors maps them onto HTTP problem responses.
package services

// Package http implements the HTTP handlers of retailcast. Handlers parse and
// validate requests, call a service and render the result; every error goes
// through internal/errors so clients always receive problem details.
//
// # Endpoints
//
//	POST /api/v1/forecast             multipart upload (field "file"), returns the dashboard
//	POST /api/v1/pipeline/run         starts a batch run, returns 202 with the pending snapshot
//	GET  /api/v1/pipeline/{id}        last known snapshot of a run
//	POST /api/v1/pipeline/{id}/cancel cancels a running batch run
//	GET  /api/health                  liveness
//	GET  /api/health/ready            readiness
//	GET  /api/version                 build information
package http

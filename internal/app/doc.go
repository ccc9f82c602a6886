// Package app wires the retailcast server together: configuration, logging,
// telemetry, the websocket hub, the services and the HTTP router.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, YAML and the environment
//	2. Initialize logging and OpenTelemetry
//	3. Resolve paths and create the data and output directories
//	4. Build the forecasting pipeline and the services around it
//	5. Set up middleware and routes
//	6. Start the HTTP server and wait for a signal
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
package app

// Package app wires the dashboard service together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config.yaml, .env and APS_* variables
//	2. Resolve paths and create the log and export directories
//	3. Initialize logging and OpenTelemetry
//	4. Create the dataset cache, the forecaster and the services
//	5. Set up HTTP handlers and middleware
//	6. Configure and start the HTTP server
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
//
// New builds an Application from an already loaded configuration, which is
// what tests use.
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests within
// the configured shutdown timeout and flushes telemetry. Initialization errors
// are returned; the package never calls os.Exit.
package app

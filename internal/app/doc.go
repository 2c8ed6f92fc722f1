// Package app wires the carecohort HTTP service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from defaults, the YAML file and the environment
//  2. Initialize the JSON logger and OpenTelemetry (tracing, Prometheus)
//  3. Resolve and create the storage and log directories
//  4. Open the store (project catalog plus round snapshots)
//  5. Start the WebSocket hub and build the project, analysis and health
//     services, with round events routed to the hub
//  6. Mount the handlers and /ws behind the middleware chain
//  7. Create the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication(nil)
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then Stop closes WebSocket clients,
// drains in-flight requests, closes the store and flushes telemetry. Initialization errors are returned
// to the caller; the package never calls os.Exit.
package app

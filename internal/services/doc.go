// Package services implements the business logic layer of carecohort. It
// sits between the HTTP handlers and the storage layer so that the rules of
// a round's lifecycle live in one place and stay testable.
//
// # Services
//
//   - ProjectService: projects, rounds and the current selection
//   - AnalysisService: upload, mapping suggestions, tenure preview, runs
//     and the dashboard read views
//   - HealthService: liveness, readiness and version information
//
// # Concurrency
//
// Writes to one round (upload, run, saving filters) are serialized by a
// per-round lock held by AnalysisService. Reads take no lock; snapshot files
// are replaced by rename so a reader sees either the old or the new file.
//
// # Events
//
// Upload and Run publish an events.RoundSnapshot when they start and when
// they complete or fail. The application routes them to the WebSocket hub
// through SetPublisher; without a publisher they are discarded.
//
// # Error Handling
//
// Services return the sentinels of internal/errors, re-exported here, or
// typed errors from internal/cohort. Handlers map both to RFC 7807 problems
// through errors.ErrorHandler:
//
//	ErrProjectNotFound, ErrRoundNotFound, ErrInputsNotFound -> 404
//	ErrAnalysisNotRun                                       -> 409
//	*cohort.PreconditionError                               -> 422
package services

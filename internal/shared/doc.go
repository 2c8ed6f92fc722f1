// Package shared holds code used across packages that belongs to no single
// layer. Today that is the testutil subpackage: a capturing slog handler and
// sample roster/event tables shared by the storage, service and HTTP tests.
package shared

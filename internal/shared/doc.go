// Package shared holds helpers used by more than one package. Its testutil
// subpackage provides a capturing slog handler and attendance dataset
// fixtures for tests.
package shared

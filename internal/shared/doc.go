// Package shared holds helpers used by more than one package's tests.
//
// The testutil subpackage provides a buffered slog handler for asserting on
// log output and builders for demand and SWAT CSV fixtures.
package shared

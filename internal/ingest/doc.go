// Package ingest is the trust boundary for uploaded CSV exports.
//
// A Guard screens a set of files before any parsing happens:
//
//   - files without a .csv name or with binary, script or undelimited
//     content are rejected one by one and reported as FileRejections
//   - too many files, an oversized file, or a row estimate above the per-file
//     or total ceiling aborts the whole calculation with ErrLimitExceeded
//
// Row estimates count line breaks, so a limit violation is detected without
// parsing a single record.
package ingest

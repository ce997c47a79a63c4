// Package record defines the archive's row model and the pure functions over it.
//
// This package has no storage dependency. Every other internal package imports
// record; record imports nothing internal.
//
// Key constraints:
//   - All values are text. Column sets vary between files of the same kind.
//   - Column names pass through NormalizeColumn before anything else sees them.
//     The rule is durable: re-ingesting the same inputs must reproduce the same
//     column names and therefore the same row fingerprints.
//   - Fingerprints are content-addressed (SHA-256 with domain separation) and
//     independent of column order.
package record

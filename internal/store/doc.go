// Package store provides SQLite-backed durable storage for the local archive.
//
// The store owns four tables:
//   - device, foitext, foidev: one table per record kind, keyed by row fingerprint
//   - ingestion_log: the ledger, one entry per ingested file, keyed by file fingerprint
//
// # Write Contract
//
// Insert-or-ignore only. Rows and ledger entries are written with
// ON CONFLICT DO NOTHING; nothing is ever updated or deleted. Record tables are
// widened with ALTER TABLE ADD COLUMN as new normalized column names appear and
// are never narrowed. All values are TEXT.
//
// Each source file is written inside one transaction (FileTx): widening, row
// inserts and the ledger entry commit together or not at all.
//
// # Ordering
//
// Record reads are ordered by rowid, i.e. storage (insertion) order.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - contains_fold(value, term): case-insensitive substring match, registered
//     on every connection
package store

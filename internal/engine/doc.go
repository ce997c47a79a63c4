// Package engine implements term-match search over the archive.
//
// A search names a table, a text field, include groups and exclude groups.
// A row matches when every include group has at least one term that is a
// case-insensitive substring of the field, and it is discarded when every
// exclude group matches the same way. The request is turned into a
// queryir.Select, compiled by querysql, and executed against the store.
//
// Filter applies identical semantics to records already in memory, so rows
// read here can be merged with records from another source under one rule.
//
// Validation happens before any SQL runs. An unknown table or a field the
// table does not have fails with *ValidationError and no partial results.
// When Request.Table is empty, every table that has the field is searched
// in record.Kinds order.
//
// The engine only reads. It is safe for concurrent use, but it must not run
// while an ingestion run is writing to the same archive.
package engine

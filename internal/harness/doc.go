// Package harness runs end-to-end archive scenarios.
//
// A scenario lays out source files, ingests them into a fresh database and
// runs searches, recording each step in a trace. The trace excludes run IDs,
// timestamps and fingerprints so it can be compared against a golden file.
//
// # Scenario Format
//
//	name: renamed_copy
//	description: "A renamed copy of an ingested file is skipped"
//	files:
//	  - name: foitext1996.zip
//	    members:
//	      - name: foitext1996.txt
//	        content: |
//	          MDR_REPORT_KEY|FOI_TEXT
//	          1|Infusion pump occluded
//	  - name: backup.zip
//	    copy_of: foitext1996.zip
//	steps:
//	  - ingest: [foitext1996.zip]
//	    expect: { processed: 1, rows_inserted: 1 }
//	  - ingest: [backup.zip]
//	    expect: { skipped: 1 }
//	  - query: { field: foi_text, include: ["pump"] }
//	    expect: { count: 1 }
//	assertions:
//	  - type: table_rows
//	    table: foitext
//	    count: 1
//
// Text content is encoded as latin1 unless the file sets encoding: utf-8.
// Ingest steps add the named files to the data directory; earlier files
// stay in place, so a later step sees them again.
//
// # Assertion Types
//
//   - table_rows: the table holds exactly count rows
//   - table_columns: the table has exactly the listed columns, in order
//   - ledger_count: the ledger holds exactly count files
//   - trace_count: exactly count steps of the given step type ran
//
// # Deterministic Testing
//
// Scenarios use testutil.DeterministicClock and testutil.SequenceRunIDs and a
// database in a temporary directory that is removed afterwards.
package harness

// Package harness provides scripted conformance testing for the
// reconciliation pipeline.
//
// A scenario drives a table session through an interleaving of local
// mutations and server snapshots, then asserts on the merged view and
// the tombstone set. Scenarios live in YAML files:
//
//	name: rename_then_snapshot
//	description: "A rename survives a snapshot that does not carry it yet"
//	table: tbl-1
//	steps:
//	  - op: seed_columns
//	    columns:
//	      - { id: c1, name: Name, kind: text, position: 0 }
//	  - op: rename_column
//	    id: c1
//	    name: Title
//	  - op: column_snapshot
//	    columns:
//	      - { id: c1, name: Name, kind: text, position: 0 }
//	expect:
//	  columns:
//	    - "c1:Name@0"
//
// # Step Operations
//
//   - seed_columns / seed_rows: initialize an overlay from server data
//   - column_snapshot / row_snapshot: merge an authoritative snapshot
//   - add_column, rename_column, delete_column: optimistic column mutations
//   - add_row, delete_row, edit_cell, clear_cell: optimistic row mutations
//
// A mutation step with fail: true makes the scripted persister reject it,
// exercising the rollback path; such a step must also set expect_error: true.
//
// # Deterministic Execution
//
// The scripted persister assigns server ids from a fixed sequence
// (srv-1, srv-2, ...) and the session's placeholder generator from
// another (tmp-1, tmp-2, ...), so every run of a scenario produces an
// identical trace. Traces are compared against golden files with goldie;
// regenerate them with:
//
//	go test ./internal/harness -update
package harness

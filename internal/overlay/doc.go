// Package overlay implements the client-side reconciliation state for
// editable tables.
//
// An Overlay holds the locally mutated, optimistic view of one table's
// columns or rows and merges eventually-arriving authoritative server
// snapshots into it. Local edits that the server has not yet confirmed
// (adds, renames, deletes) survive the merge; locally deleted entities
// are tombstoned so a stale server echo cannot resurrect them.
//
// The overlay is a transient reconciliation buffer, not a store of
// record: it is created when a table view mounts, mutated on every local
// edit and every snapshot, and discarded on unmount. The persistence
// layer remains the source of truth.
//
// Thread-safety model:
//   - All Overlay methods are safe from any goroutine (single mutex)
//   - Every mutation is atomic from the caller's perspective; partial
//     updates are never visible to CurrentView
//   - Overlay methods never perform I/O; persistence is the dispatcher's
//     job (package dispatch)
package overlay

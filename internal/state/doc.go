// Package state persists the tagger's durable memory across invocations:
// the append-only inventory of every photo ever discovered, the
// append-only completion set, and the incremental-scan checkpoint.
//
// All three live in a single SQLite database opened in WAL mode. The
// inventory and completion key sets only ever grow; completion marks are
// committed one at a time so that a crash mid-batch leaves the on-disk
// state consistent with the files that were actually written.
package state

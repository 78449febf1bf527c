// Package repositories implements SQLite persistence for the sync engine.
//
// Key Implementations:
//   - [ManagementRepository] : management records keyed by (owner, definition)
//   - [PlaylistRepository] : cached playlist snapshots and their ordered tracks
//   - [EventRepository] : append-only bookkeeping events
//
// Management upserts are a single INSERT ... ON CONFLICT statement, so concurrent registrations of one
// (owner, definition) pair never leave two rows. A remote playlist id may back only one record.
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories

// Package repositories implements SQLite persistence for the local session history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [SessionRepository] : Sessions this client has started, resumed, or opened, keyed by backend session id
//   - [DecisionRepository] : Append-only log of confirmed accept and reject decisions
//   - [Recorder] : Adapts both repositories to the engine's recording hook
//
// Sequence numbers provide stable ordering (e.g., session #12) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories

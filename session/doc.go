// Package session owns the single client-side session slot: creation with a
// random token, inactivity tracking, a warning/expiry timer pair and
// persistence to tab-scoped storage.
//
// # Validity
//
// A record is valid while both its creation age and its idle time are below
// the configured timeout. Activity does not extend the creation bound, so a
// session never outlives Timeout from creation even when kept busy.
//
// # Storage
//
// The in-memory slot is authoritative. [Storage] mirrors it so a host that
// restarts within the timeout can restore the session; storage failures are
// logged and otherwise ignored. [MemoryStorage] models tab scope and
// [RedisStorage] lets several host processes share one slot.
//
// # Architecture boundaries
//
// This package does NOT talk to the backend and does NOT decide
// authentication state; the Engine reacts to the events it emits.
//
// # What this package must NOT do
//
//   - Import clientauth or api (no upward imports).
//   - Persist passwords or backend secrets other than the opaque backend token.
package session

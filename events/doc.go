// Package events carries session lifecycle notifications from the session
// store and bot heuristic to UI subscribers.
//
// Exactly three kinds exist: [KindSessionWarning], [KindSessionExpired] and
// [KindBotDetected]. Each carries a user-facing message.
//
// # Architecture boundaries
//
// Producers call [Sink.Emit]. The [Bus] fans events out to subscribers on a
// single goroutine, so every subscriber observes events in emission order.
// A slow subscriber delays the others; subscribers that block should hand work
// off to their own goroutine.
//
// # What this package must NOT do
//
//   - Import clientauth, session or api.
//   - Mutate authentication state.
package events

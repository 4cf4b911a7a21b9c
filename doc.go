// Package clientauth is the client-side session lifecycle and request
// authorization library for the MERBS conference backend.
//
// A host (desktop shell, CLI, kiosk, test harness) builds one [Engine] with
// [Builder] and drives it from user actions: [Engine.Login], [Engine.Register],
// [Engine.Logout], [Engine.TrackActivity] and [Engine.ExtendSession]. The
// engine keeps at most one session, warns before it expires from inactivity,
// expires it, and publishes session-warning, session-expired and bot-detected
// events to subscribers.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// clientauth is the public surface. It exposes [Engine], [Builder], [Config],
// [Error] and metrics types. Sub-packages carry the building blocks: sanitize
// (pure input sanitizers and validators), session (the session store),
// api (the backend client) and events (lifecycle events). Flow orchestration,
// the attempt ledger, activity debouncing and the bot heuristic live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Issue or validate CSRF tokens; cookies are only carried.
//   - Persist anything beyond the session lifetime.
//   - Expose Redis clients or session encoding in its public API.
//   - Import any sub-package that re-imports clientauth (no import cycles).
package clientauth

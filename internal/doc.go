// Package internal contains helper utilities that are intentionally private to
// clientauth, chiefly session token generation.
//
// # Sub-packages
//
//   - activity — debounced activity tracking
//   - botdetect — interaction-cadence bot heuristic
//   - clocktest — manually advanced clock for deterministic timer tests
//   - flows — pure-function flow orchestrators for every Engine operation
//   - logging — zap logger construction for binaries
//   - rate — sliding-window rate limit ledgers (memory and Redis)
//
// # What this package must NOT do
//
//   - Export types that appear in the public clientauth API.
//   - Be imported by any package outside the clientauth module.
package internal

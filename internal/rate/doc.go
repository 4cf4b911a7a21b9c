// Package rate provides sliding-window attempt ledgers keyed by arbitrary
// strings such as "login_<email>".
//
// # Window semantics
//
// Each key holds the timestamps of permitted attempts. A check first drops
// timestamps at least one window old, then denies when the remaining count has
// reached the maximum. Denied checks are not recorded, so a caller hammering a
// closed window does not extend its own lockout.
//
// Two ledgers share these semantics: [Memory] for a single process and
// [Redis], a sorted set per key updated by one Lua script, for hosts that share
// limits across processes.
//
// # What this package must NOT do
//
//   - Choose policies; max and window are supplied per call.
//   - Be imported outside the clientauth module.
package rate

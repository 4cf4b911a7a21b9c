// Package flows contains function orchestrators for the Engine's auth
// operations.
//
// Each flow function (RunLogin, RunRegister, RunLogout, RunVerify, RunRefresh)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. The Engine builds the dependency structs once and
// stays a thin state holder.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the rate ledger, the backend client, the
// session store and metrics. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import clientauth (to avoid import cycles).
//   - Touch engine state (identity, auth state); the Engine applies results.
package flows

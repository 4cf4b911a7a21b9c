// Package sanitize provides pure string transformations and validation
// predicates for user-supplied form fields.
//
// # Architecture boundaries
//
// Every function in this package is side-effect free: no I/O, no logging, no
// shared state. Callers decide whether to surface the first violation or all of
// them.
//
// # Known limitations
//
// [Input] strips the substrings "script", "iframe", "object" and "embed"
// wherever they occur, so legitimate words such as "description" or "objective"
// are altered. The sanitizer is a coarse filter for free-text fields and is not
// an HTML sanitizer.
//
// # What this package must NOT do
//
//   - Perform network calls or touch session state.
//   - Import clientauth or any sibling package.
package sanitize

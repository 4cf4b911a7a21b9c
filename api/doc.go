// Package api is the HTTP client for the conference backend.
//
// Every call carries Content-Type, a fresh X-Request-ID and, when the
// credentials source reports a session, Authorization and X-Session-ID
// headers. Request bodies are flattened to a JSON object and stripped of
// sensitive fields (password, confirmPassword, sessionId, token) before they
// are serialized; remaining top-level strings are trimmed. Each call is bounded
// by the client timeout, tripled for uploads.
//
// Failures are returned as [*Error]. Error() yields a message that is safe to
// show to a user; the raw server or transport text is kept in Detail for logs.
//
// # Architecture boundaries
//
// The client does not know about sessions. The host supplies a
// [CredentialsFunc]; the auth Engine wires it to the session store.
//
// # What this package must NOT do
//
//   - Import clientauth or session.
//   - Read or set CSRF cookies; the cookie jar only carries what the server sets.
package api

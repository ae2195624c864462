// Package server exposes a runner over HTTP.
//
// Routes:
//   - POST /chat: one chat turn. JSON by default; server-sent events
//     ("delta" per text fragment, then "response") when the client accepts
//     text/event-stream.
//   - DELETE /chat/{session_id}: ends a server-side session.
//   - GET /healthz: liveness.
//
// The caller's Authorization header is forwarded to the booking store. When a
// TokenVerifier is configured, requests without a valid bearer token are
// rejected with 401 before any agent runs.
package server

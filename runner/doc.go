// Package runner implements the caller-facing chat service of the router.
//
// A Runner turns one chat request into one routed turn: it resumes the
// caller's state (from the request or from a snapshot store), publishes a
// UserTask to the entry agent on the bus, collects the session's events with
// an emitter and returns the assembled response.
//
// # Responsibilities
//   - Entry agent resolution (only resumable agents may be named by a caller)
//   - Session defaults (date) and forwarding of the caller's authorization
//   - Graceful fallback on fatal routing errors, resetting to the root agent
//   - Cancellation of in-flight work when the caller goes away
//   - Snapshot persistence keyed by session id
//
// Requests for the same session id are serialised; requests without a
// session id run on a private, throwaway bus session.
package runner

// Package session houses snapshot stores for server-side conversation resume.
//
// The chat protocol is stateless: callers send history, user_info and
// agent_name back on every request. A Store lets the server keep that
// snapshot itself, keyed by session id, so a caller may send only the new
// message. Snapshots never hold the forwarded authorization headers; they are
// taken from the current request on every turn.
//
// Two backends ship here: InMemoryStore for tests and single-process demos,
// and SQLiteStore for persistence across restarts.
package session

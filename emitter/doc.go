// Package emitter turns the event stream of one user turn into the
// caller-facing ChatResponse.
//
// Text fragments are concatenated in arrival order and every completed
// segment ends with a newline. Tool outputs are captured separately from the
// prose: the last successful payload becomes ChatResponse.Data. The terminal
// response event supplies the history, the reply-to agent and the session
// snapshot; a failure event ends the turn with an error instead.
package emitter

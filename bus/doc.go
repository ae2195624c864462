// Package bus implements the topic bus that routes user tasks between agents.
//
// Topics are agent names. Register installs one Factory per topic; Publish
// resolves (topic, session key) to a lazily created Instance and enqueues the
// task on its bounded mailbox. Each Instance drains its mailbox on its own
// goroutine, so one agent never handles two tasks of the same session at once.
//
// Callers observe a session by attaching a listener; handlers emit events to
// it through the core.Outbox they receive with each task.
package bus

// Package core provides the foundational domain types and execution contexts
// used by vaxmesh. It defines:
//
//   - Messages and the append-only ConversationContext threaded through every hop
//   - UserSessionContext (per-session slot-filling state carried across handoffs)
//   - UserTask / AgentResponse envelopes exchanged over the topic bus
//   - Events streamed from running agents to the caller
//   - The routing error taxonomy and the turn limiter
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//
// Implementation concerns (bus delivery, model adapters, concrete tools) live
// in their own packages; core only exposes the shared vocabulary.
package core

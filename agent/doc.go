// Package agent describes the reasoning roles of the router and the
// capability sandbox each one runs in.
//
// A Definition names an agent (its name doubles as its bus topic), carries
// its instruction (static text or computed from the session), the direct
// tools it may call and the agents it may delegate to. NewRegistry checks the
// whole roster once at startup:
//   - names are unique and the root is registered
//   - every direct tool exists in the tool catalog
//   - every delegate target is a registered agent
//   - direct tool names and delegate tool names never overlap
//
// The Registry is read-only after construction. Toolset gives the turn loop
// the per-agent lookup from a model-issued tool name to its capability.
package agent

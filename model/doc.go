// Package model defines the provider-agnostic contract between the turn loop
// and a language model.
//
// A request carries resolved instructions, the ordered conversation history
// and the tool signatures the current agent may call. A model answers with
// either text (optionally streamed as partial fragments) or a batch of tool
// calls. Providers live in subpackages (openai, anthropic); ScriptedModel
// replays canned turns for tests and demos.
package model

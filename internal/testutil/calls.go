package testutil

import (
	"encoding/json"

	"github.com/hupe1980/vaxmesh/core"
)

// Call builds a tool call with JSON-encoded args. A nil args map yields an
// empty argument payload.
func Call(id, name string, args map[string]any) core.ToolCall {
	c := core.ToolCall{ID: id, Name: name}

	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			panic(err)
		}

		c.Arguments = string(b)
	}

	return c
}

// RawCall builds a tool call with a verbatim argument payload, useful for
// malformed-argument tests.
func RawCall(id, name, arguments string) core.ToolCall {
	return core.ToolCall{ID: id, Name: name, Arguments: arguments}
}

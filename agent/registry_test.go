package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/tool"
)

func testCatalog(t *testing.T) *tool.Catalog {
	t.Helper()

	noop := func(*core.ToolContext, map[string]any) (any, error) { return "ok", nil }
	c := tool.NewCatalog("fetch_vaccination_history", "get_available_slots")
	c.MustRegister(
		tool.NewFunctionTool("fetch_vaccination_history", "History", nil, noop),
		tool.NewFunctionTool("get_available_slots", "Slots", nil, noop),
	)

	return c
}

func testDefinitions() []Definition {
	return []Definition{
		{Name: "root", Instruction: NewInstructionFromText("route"), Delegates: []string{"records", "slots"}, Resumable: true},
		{Name: "records", Description: "Shows history.", Tools: []string{"fetch_vaccination_history"}, OneShot: true},
		{Name: "slots", Tools: []string{"get_available_slots"}, Delegates: []string{"records"}, Resumable: true},
	}
}

// -------------------- Registry Validation Tests --------------------

func TestNewRegistry_Valid(t *testing.T) {
	r, err := NewRegistry(testCatalog(t), "root", testDefinitions()...)
	require.NoError(t, err)

	assert.Equal(t, "root", r.Root())
	assert.Equal(t, []string{"root", "records", "slots"}, r.Names())

	d, ok := r.Lookup("records")
	require.True(t, ok)
	assert.True(t, d.OneShot)
}

func TestNewRegistry_Rejections(t *testing.T) {
	cases := map[string][]Definition{
		"duplicate name":   append(testDefinitions(), Definition{Name: "records"}),
		"unknown tool":     {{Name: "root", Tools: []string{"book_everything"}}},
		"unknown delegate": {{Name: "root", Delegates: []string{"ghost"}}},
		"self delegate":    {{Name: "root", Delegates: []string{"root"}}},
		"tool twice":       {{Name: "root", Tools: []string{"get_available_slots", "get_available_slots"}}},
		"missing root":     {{Name: "records", Tools: []string{"fetch_vaccination_history"}}},
		"tool and delegate overlap": {
			{Name: "root", Tools: []string{"get_available_slots"}, Delegates: []string{"get_available_slots"}},
			{Name: "get_available_slots"},
		},
	}

	for name, defs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(testCatalog(t), "root", defs...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRoster))
		})
	}
}

// -------------------- Toolset Tests --------------------

func TestToolset_Classify(t *testing.T) {
	r, err := NewRegistry(testCatalog(t), "root", testDefinitions()...)
	require.NoError(t, err)

	ts, ok := r.Toolset("slots")
	require.True(t, ok)
	assert.Equal(t, 2, ts.Len())

	assert.Equal(t, CallDirect, ts.Classify("get_available_slots"))
	assert.Equal(t, CallDelegate, ts.Classify("transfer_to_records"))
	assert.Equal(t, CallUnknown, ts.Classify("fetch_vaccination_history"), "outside this agent's sandbox")
	assert.Equal(t, "unknown", CallUnknown.String())

	d, ok := ts.Delegate("transfer_to_records")
	require.True(t, ok)
	assert.Equal(t, "records", d.Target())
	assert.Equal(t, "Shows history.", d.Description())

	defs := ts.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "get_available_slots", defs[0].Function.Name)
	assert.Equal(t, "transfer_to_records", defs[1].Function.Name)
}

// -------------------- Routing Hint Tests --------------------

func TestRegistry_EntryPointAndReplyTo(t *testing.T) {
	r, err := NewRegistry(testCatalog(t), "root", testDefinitions()...)
	require.NoError(t, err)

	assert.Equal(t, "slots", r.EntryPoint("slots"))
	assert.Equal(t, "root", r.EntryPoint("records"), "one-shot agents are not entry points")
	assert.Equal(t, "root", r.EntryPoint("ghost"))
	assert.Equal(t, "root", r.EntryPoint(""))

	assert.Equal(t, "slots", r.ReplyTo("slots", core.UserSessionContext{}))
	assert.Equal(t, "root", r.ReplyTo("slots", core.UserSessionContext{Restart: true}))
	assert.Equal(t, "root", r.ReplyTo("records", core.UserSessionContext{}))
}

// -------------------- Instruction Tests --------------------

func TestInstruction(t *testing.T) {
	static := NewInstructionFromText("static instruction")
	assert.True(t, static.IsStatic())
	got, err := static.Resolve(core.UserSessionContext{})
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)

	dynamic := NewInstructionFromFunc(func(s core.UserSessionContext) (string, error) {
		return "Clinic: " + s.Clinic, nil
	})
	assert.False(t, dynamic.IsStatic())
	got, err = dynamic.Resolve(core.UserSessionContext{Clinic: "Pioneer Polyclinic"})
	require.NoError(t, err)
	assert.Equal(t, "Clinic: Pioneer Polyclinic", got)

	failing := NewInstructionFromProvider(Func(func(core.UserSessionContext) (string, error) {
		return "", errors.New("provider error")
	}))
	_, err = failing.Resolve(core.UserSessionContext{})
	assert.EqualError(t, err, "provider error")
}

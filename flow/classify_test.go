package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/internal/testutil"
	"github.com/hupe1980/vaxmesh/tool"
)

func classifyRegistry(t *testing.T) *agent.Registry {
	t.Helper()

	return newTestRegistry(t,
		[]tool.Tool{okTool("standardise_vaccine_name", "ok").FunctionTool},
		agent.Definition{
			Name:      "handle_vaccine_names_agent",
			Tools:     []string{"standardise_vaccine_name"},
			Delegates: []string{"identify_clinic_agent", "recommender_agent"},
		},
		agent.Definition{Name: "identify_clinic_agent"},
		agent.Definition{Name: "recommender_agent"},
	)
}

func TestClassify(t *testing.T) {
	ts := toolsetOf(t, classifyRegistry(t), "handle_vaccine_names_agent")

	t.Run("text", func(t *testing.T) {
		b, err := Classify("handle_vaccine_names_agent", ts, nil)
		require.NoError(t, err)
		assert.Equal(t, BatchText, b.Kind)
	})

	t.Run("direct", func(t *testing.T) {
		calls := []core.ToolCall{
			testutil.Call("1", "standardise_vaccine_name", map[string]any{"vaccine": "flu"}),
			testutil.Call("2", "standardise_vaccine_name", map[string]any{"vaccine": "hpv"}),
		}

		b, err := Classify("handle_vaccine_names_agent", ts, calls)
		require.NoError(t, err)
		assert.Equal(t, BatchDirect, b.Kind)
		assert.Len(t, b.Calls, 2)
	})

	t.Run("single delegate", func(t *testing.T) {
		b, err := Classify("handle_vaccine_names_agent", ts, []core.ToolCall{testutil.Call("1", "transfer_to_recommender_agent", nil)})
		require.NoError(t, err)
		assert.Equal(t, BatchDelegate, b.Kind)
		require.NotNil(t, b.Delegate)
		assert.Equal(t, "recommender_agent", b.Delegate.Target())
	})
}

func TestClassify_Rejections(t *testing.T) {
	ts := toolsetOf(t, classifyRegistry(t), "handle_vaccine_names_agent")

	t.Run("unknown tool", func(t *testing.T) {
		_, err := Classify("handle_vaccine_names_agent", ts, []core.ToolCall{
			testutil.Call("1", "standardise_vaccine_name", nil),
			testutil.Call("2", "book_everything", nil),
		})

		var target *core.UnknownToolError
		require.ErrorAs(t, err, &target)
		assert.Equal(t, "book_everything", target.Tool)
		assert.True(t, core.IsFatal(err))
	})

	t.Run("delegate outside sandbox", func(t *testing.T) {
		_, err := Classify("handle_vaccine_names_agent", ts, []core.ToolCall{testutil.Call("1", "transfer_to_manage_appointment_agent", nil)})
		assert.ErrorIs(t, err, core.ErrUnknownTool)
	})

	t.Run("mixed batch", func(t *testing.T) {
		_, err := Classify("handle_vaccine_names_agent", ts, []core.ToolCall{
			testutil.Call("1", "standardise_vaccine_name", nil),
			testutil.Call("2", "transfer_to_identify_clinic_agent", nil),
		})

		var target *core.MixedCallBatchError
		require.ErrorAs(t, err, &target)
		assert.Equal(t, []string{"transfer_to_identify_clinic_agent"}, target.Delegates)
		assert.Equal(t, []string{"standardise_vaccine_name"}, target.Direct)
	})

	t.Run("multiple delegation", func(t *testing.T) {
		_, err := Classify("handle_vaccine_names_agent", ts, []core.ToolCall{
			testutil.Call("1", "transfer_to_identify_clinic_agent", nil),
			testutil.Call("2", "transfer_to_recommender_agent", nil),
		})

		var target *core.MultipleDelegationError
		require.ErrorAs(t, err, &target)
		assert.Len(t, target.Targets, 2)
	})

	t.Run("unknown wins over mixed", func(t *testing.T) {
		_, err := Classify("handle_vaccine_names_agent", ts, []core.ToolCall{
			testutil.Call("1", "transfer_to_identify_clinic_agent", nil),
			testutil.Call("2", "standardise_vaccine_name", nil),
			testutil.Call("3", "ghost", nil),
		})
		assert.ErrorIs(t, err, core.ErrUnknownTool)
	})
}

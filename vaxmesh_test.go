package vaxmesh_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vaxmesh"
	"github.com/hupe1980/vaxmesh/booking"
	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/internal/testutil"
	"github.com/hupe1980/vaxmesh/model"
	"github.com/hupe1980/vaxmesh/roster"
	"github.com/hupe1980/vaxmesh/runner"
	"github.com/hupe1980/vaxmesh/session"
)

func TestNew_RequiresModel(t *testing.T) {
	_, err := vaxmesh.New(nil, nil)
	assert.Error(t, err)
}

func TestMesh_RecordsRoundTrip(t *testing.T) {
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/records":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 7, "booking_slot_id": 3}})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Not found"})
		}
	}))
	defer store.Close()

	client, err := booking.NewClient(booking.Config{BaseURL: store.URL})
	require.NoError(t, err)

	m := model.NewScriptedModel(
		model.CallStep(testutil.Call("c1", "transfer_to_vaccination_records_agent", nil)),
		model.CallStep(testutil.Call("c2", "fetch_vaccination_history", nil)),
		model.TextStep("You have one vaccination record."),
	)

	snapshots := session.NewInMemoryStore()

	mesh, err := vaxmesh.New(client, m, func(o *vaxmesh.Options) {
		o.Store = snapshots
		o.SessionDate = "2024-06-29"
	})
	require.NoError(t, err)
	defer mesh.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := mesh.Chat(ctx, runner.ChatRequest{Message: "show my records", SessionID: "s1"}, map[string]string{"Authorization": "Bearer abc"})
	require.NoError(t, err)

	assert.Equal(t, roster.Orchestrator, resp.AgentName, "one-shot agents hand back to the orchestrator")
	assert.Equal(t, core.DataTypeRecords, resp.DataType)
	assert.Equal(t, "You have one vaccination record.\n", resp.Message)
	assert.Zero(t, m.Remaining())

	snap, err := snapshots.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, roster.Orchestrator, snap.AgentName)
	assert.Equal(t, resp.History.Len(), snap.History.Len())
}

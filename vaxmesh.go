// Package vaxmesh provides a high-level façade over the router's building
// blocks (booking tools, agent roster, turn-loop controller, topic bus and
// runner) so that a complete vaccination booking assistant can be set up in
// one call. Most applications interact with this package by:
//  1. Creating a booking.Client for the store and a model.Model
//  2. Creating a Mesh via New() (optionally overriding the in-memory snapshot store)
//  3. Serving chat turns with Chat / ChatStream, or mounting Runner() behind server.Server
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable snapshot store and a structured logger.
package vaxmesh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/vaxmesh/agent"
	"github.com/hupe1980/vaxmesh/booking"
	"github.com/hupe1980/vaxmesh/bus"
	"github.com/hupe1980/vaxmesh/emitter"
	"github.com/hupe1980/vaxmesh/flow"
	"github.com/hupe1980/vaxmesh/logging"
	"github.com/hupe1980/vaxmesh/model"
	"github.com/hupe1980/vaxmesh/roster"
	"github.com/hupe1980/vaxmesh/runner"
	"github.com/hupe1980/vaxmesh/session"
)

// Options configures the Mesh instance.
type Options struct {
	// FlowConfig bounds the turn loop (max turns, tool timeout, streaming).
	FlowConfig flow.Config

	// BusConfig sizes instance mailboxes and session listeners.
	BusConfig bus.Config

	// Store persists snapshots for requests carrying a session id.
	// Defaults to an in-memory store.
	Store session.Store

	// SessionDate fixes "today" for every new session (YYYY-MM-DD).
	// Empty means the current date.
	SessionDate string

	// TurnTimeout bounds one user message end to end. Zero disables it.
	TurnTimeout time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Mesh aggregates the bus, the controller serving it and the runner in
// front of it.
type Mesh struct {
	opts     Options
	registry *agent.Registry
	bus      *bus.Bus
	runner   *runner.Runner
}

// New creates a Mesh serving the vaccination roster with the given store
// client and model.
func New(client *booking.Client, m model.Model, optFns ...func(o *Options)) (*Mesh, error) {
	if m == nil {
		return nil, errors.New("vaxmesh: model is required")
	}

	opts := Options{
		FlowConfig: flow.DefaultConfig,
		BusConfig:  bus.DefaultConfig,
		Store:      session.NewInMemoryStore(),
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	catalog, err := booking.NewCatalog(client)
	if err != nil {
		return nil, fmt.Errorf("vaxmesh: %w", err)
	}

	registry, err := roster.NewRegistry(catalog)
	if err != nil {
		return nil, fmt.Errorf("vaxmesh: %w", err)
	}

	controller, err := flow.NewController(registry, func(o *flow.Options) {
		o.Config = opts.FlowConfig
		o.Model = m
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("vaxmesh: %w", err)
	}

	b := bus.New(func(o *bus.Options) {
		o.Config = opts.BusConfig
		o.Logger = opts.Logger
	})

	if err := controller.Register(b); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("vaxmesh: %w", err)
	}

	r := runner.New(b, registry, func(o *runner.Options) {
		o.Store = opts.Store
		o.SessionDate = opts.SessionDate
		o.Timeout = opts.TurnTimeout
		o.Logger = opts.Logger
	})

	return &Mesh{opts: opts, registry: registry, bus: b, runner: r}, nil
}

// Runner returns the chat service, e.g. for server.New.
func (m *Mesh) Runner() *runner.Runner { return m.runner }

// Registry returns the agent roster.
func (m *Mesh) Registry() *agent.Registry { return m.registry }

// Chat handles one user message end to end.
func (m *Mesh) Chat(ctx context.Context, req runner.ChatRequest, auth map[string]string) (emitter.ChatResponse, error) {
	return m.runner.Chat(ctx, req, auth)
}

// ChatStream is like Chat but hands every text fragment to onText.
func (m *Mesh) ChatStream(ctx context.Context, req runner.ChatRequest, auth map[string]string, onText func(string)) (emitter.ChatResponse, error) {
	return m.runner.ChatStream(ctx, req, auth, onText)
}

// Close stops every agent instance and releases the snapshot store.
func (m *Mesh) Close() error {
	return errors.Join(m.bus.Close(), m.opts.Store.Close())
}

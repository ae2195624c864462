package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/logging"
)

var (
	// ErrDuplicateTopic is returned when a topic is registered twice.
	ErrDuplicateTopic = errors.New("bus: topic already registered")
	// ErrMailboxFull is returned by Publish when the target instance's mailbox is full.
	ErrMailboxFull = errors.New("bus: mailbox full")
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("bus: closed")
)

// Handler processes one task at a time for a single (topic, session) pair.
//
// The context is the session's context: it is cancelled by CancelSession,
// EndSession or Close. out is the instance's delivery surface for handoffs
// and events.
type Handler interface {
	Handle(ctx context.Context, task core.UserTask, out core.Outbox) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task core.UserTask, out core.Outbox) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, task core.UserTask, out core.Outbox) error {
	return f(ctx, task, out)
}

// Factory creates the handler backing a new instance of topic for sessionKey.
type Factory func(topic, sessionKey string) (Handler, error)

// Config defines tuning parameters for the Bus.
type Config struct {
	// MailboxSize bounds the number of pending tasks per instance.
	MailboxSize int

	// EventBufferSize sets the channel buffer of session listeners.
	EventBufferSize int
}

// DefaultConfig provides default configuration values.
var DefaultConfig = Config{
	MailboxSize:     16,
	EventBufferSize: 128,
}

// Options configures a Bus using the functional options pattern.
type Options struct {
	Config Config

	// Logger defaults to NoOp when nil.
	Logger logging.Logger
}

// Bus is the topic bus and subscription table of the router.
//
// Core Responsibilities:
//   - Subscription table: exactly one Factory per topic
//   - Instance resolution: (topic, session key) maps to one long-lived Instance,
//     created lazily, atomically and idempotently
//   - Delivery: Publish enqueues a task on the instance mailbox and returns
//     without waiting for the handler
//   - Session plumbing: one event listener and one cancellable context per
//     session key
//
// Concurrency Model:
//   - Each Instance drains its bounded mailbox on its own goroutine, so tasks
//     for the same (topic, session) never run concurrently
//   - Different sessions, and different topics of the same session, run
//     independently
//   - All public methods are safe for concurrent use
//
// Example:
//
//	b := bus.New(func(o *bus.Options) { o.Logger = logger })
//	_ = b.Register("orchestrator_agent", factory)
//
//	events, detach := b.Attach("session-1")
//	defer detach()
//
//	_ = b.Publish(ctx, "orchestrator_agent", "session-1", task)
//	for ev := range events {
//	    if ev.IsTerminal() {
//	        break
//	    }
//	}
type Bus struct {
	config Config
	logger logging.Logger

	// Subscription table - protected by mu
	factories map[string]Factory
	mu        sync.RWMutex

	// Live instances - protected by instMu
	instances map[instanceKey]*Instance
	instMu    sync.Mutex

	// Per-session listeners and contexts - protected by sessMu
	sessions map[string]*sessionState
	sessMu   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type instanceKey struct {
	topic      string
	sessionKey string
}

type sessionState struct {
	ctx      context.Context
	cancel   context.CancelFunc
	listener *listener
}

type listener struct {
	ch   chan core.Event
	done chan struct{}
	once sync.Once
}

func (l *listener) close() { l.once.Do(func() { close(l.done) }) }

// New creates a Bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Config.MailboxSize <= 0 {
		opts.Config.MailboxSize = DefaultConfig.MailboxSize
	}

	if opts.Config.EventBufferSize <= 0 {
		opts.Config.EventBufferSize = DefaultConfig.EventBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bus{
		config:    opts.Config,
		logger:    opts.Logger,
		factories: make(map[string]Factory),
		instances: make(map[instanceKey]*Instance),
		sessions:  make(map[string]*sessionState),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register installs factory for topic. Re-registering a topic is an error.
func (b *Bus) Register(topic string, factory Factory) error {
	if topic == "" || factory == nil {
		return fmt.Errorf("bus: register requires a topic and a factory")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.factories[topic]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTopic, topic)
	}

	b.factories[topic] = factory
	b.logger.Debug("bus.topic.registered", "topic", topic)

	return nil
}

// Topics returns the registered topics.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]string, 0, len(b.factories))
	for t := range b.factories {
		topics = append(topics, t)
	}

	return topics
}

// Publish delivers task to the instance for (topic, sessionKey), creating it
// on first use. It returns once the task is enqueued; the handler runs
// asynchronously. An unregistered topic yields a *core.RoutingError and a
// full mailbox yields ErrMailboxFull; in both cases nothing is delivered.
func (b *Bus) Publish(ctx context.Context, topic, sessionKey string, task core.UserTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	inst, err := b.Resolve(topic, sessionKey)
	if err != nil {
		return err
	}

	task.SessionKey = sessionKey

	if err := inst.enqueue(task); err != nil {
		b.logger.Warn("bus.publish.rejected", "topic", topic, "session_key", sessionKey, "error", err.Error())
		return err
	}

	b.logger.Debug("bus.publish", "topic", topic, "session_key", sessionKey, "instance_id", inst.ID, "origin", task.Origin)

	return nil
}

// Resolve returns the instance for (topic, sessionKey), creating and
// starting it if needed. Concurrent first calls create exactly one instance.
func (b *Bus) Resolve(topic, sessionKey string) (*Instance, error) {
	if b.ctx.Err() != nil {
		return nil, ErrClosed
	}

	b.mu.RLock()
	factory, ok := b.factories[topic]
	b.mu.RUnlock()

	if !ok {
		return nil, &core.RoutingError{Topic: topic}
	}

	key := instanceKey{topic: topic, sessionKey: sessionKey}

	b.instMu.Lock()
	defer b.instMu.Unlock()

	if inst, ok := b.instances[key]; ok {
		return inst, nil
	}

	if b.ctx.Err() != nil {
		return nil, ErrClosed
	}

	handler, err := factory(topic, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("bus: create instance for %q: %w", topic, err)
	}

	inst := newInstance(b, topic, sessionKey, handler, b.config.MailboxSize)
	b.instances[key] = inst

	b.wg.Add(1)

	go func() {
		defer b.wg.Done()
		inst.run()
	}()

	b.logger.Info("bus.instance.created", "topic", topic, "session_key", sessionKey, "instance_id", inst.ID)

	return inst, nil
}

// Instances returns the number of live instances.
func (b *Bus) Instances() int {
	b.instMu.Lock()
	defer b.instMu.Unlock()

	return len(b.instances)
}

// Attach registers the event listener of sessionKey and returns its channel
// plus a detach function. A later Attach replaces the previous listener.
// Events emitted while no listener is attached are dropped.
func (b *Bus) Attach(sessionKey string) (<-chan core.Event, func()) {
	l := &listener{
		ch:   make(chan core.Event, b.config.EventBufferSize),
		done: make(chan struct{}),
	}

	b.sessMu.Lock()
	st := b.sessionLocked(sessionKey)
	if st.listener != nil {
		st.listener.close()
	}
	st.listener = l
	b.sessMu.Unlock()

	detach := func() {
		l.close()

		b.sessMu.Lock()
		defer b.sessMu.Unlock()

		if st, ok := b.sessions[sessionKey]; ok && st.listener == l {
			st.listener = nil
		}
	}

	return l.ch, detach
}

// CancelSession cancels the in-flight work of sessionKey. Instances stay
// alive; the next task for the session runs under a fresh context.
func (b *Bus) CancelSession(sessionKey string) {
	b.sessMu.Lock()
	defer b.sessMu.Unlock()

	st, ok := b.sessions[sessionKey]
	if !ok {
		return
	}

	st.cancel()
	st.ctx, st.cancel = context.WithCancel(b.ctx)

	b.logger.Info("bus.session.cancelled", "session_key", sessionKey)
}

// EndSession cancels sessionKey, stops its instances and forgets its listener.
func (b *Bus) EndSession(sessionKey string) {
	b.sessMu.Lock()
	if st, ok := b.sessions[sessionKey]; ok {
		st.cancel()

		if st.listener != nil {
			st.listener.close()
		}

		delete(b.sessions, sessionKey)
	}
	b.sessMu.Unlock()

	b.instMu.Lock()
	for key, inst := range b.instances {
		if key.sessionKey == sessionKey {
			inst.stop()
			delete(b.instances, key)
		}
	}
	b.instMu.Unlock()

	b.logger.Info("bus.session.ended", "session_key", sessionKey)
}

// Close cancels every session and waits for all instances to stop.
func (b *Bus) Close() error {
	b.instMu.Lock()
	b.cancel()
	b.instMu.Unlock()

	b.wg.Wait()

	b.sessMu.Lock()
	for _, st := range b.sessions {
		if st.listener != nil {
			st.listener.close()
		}
	}
	b.sessMu.Unlock()

	return nil
}

// sessionContext returns the current context of sessionKey.
func (b *Bus) sessionContext(sessionKey string) context.Context {
	b.sessMu.Lock()
	defer b.sessMu.Unlock()

	return b.sessionLocked(sessionKey).ctx
}

func (b *Bus) sessionLocked(sessionKey string) *sessionState {
	st, ok := b.sessions[sessionKey]
	if !ok {
		ctx, cancel := context.WithCancel(b.ctx)
		st = &sessionState{ctx: ctx, cancel: cancel}
		b.sessions[sessionKey] = st
	}

	return st
}

// emit forwards ev to the session listener, waiting for buffer space unless
// ctx ends or the listener detaches.
func (b *Bus) emit(ctx context.Context, ev core.Event) error {
	b.sessMu.Lock()

	var l *listener
	if st, ok := b.sessions[ev.SessionKey]; ok {
		l = st.listener
	}

	b.sessMu.Unlock()

	if l == nil {
		b.logger.Debug("bus.event.dropped", "session_key", ev.SessionKey, "type", string(ev.Type))
		return nil
	}

	select {
	case l.ch <- ev:
		return nil
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

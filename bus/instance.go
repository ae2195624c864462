package bus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/hupe1980/vaxmesh/core"
)

// Instance is a live actor bound to one (topic, session key) pair. It holds
// no conversation state; everything mutable travels in the tasks.
type Instance struct {
	ID         string
	Topic      string
	SessionKey string

	bus      *Bus
	handler  Handler
	mailbox  chan core.UserTask
	quit     chan struct{}
	quitOnce sync.Once
}

func newInstance(b *Bus, topic, sessionKey string, h Handler, mailboxSize int) *Instance {
	return &Instance{
		ID:         core.NewID(),
		Topic:      topic,
		SessionKey: sessionKey,
		bus:        b,
		handler:    h,
		mailbox:    make(chan core.UserTask, mailboxSize),
		quit:       make(chan struct{}),
	}
}

func (i *Instance) enqueue(task core.UserTask) error {
	select {
	case <-i.quit:
		return ErrClosed
	default:
	}

	select {
	case i.mailbox <- task:
		return nil
	default:
		return fmt.Errorf("%w: topic %q", ErrMailboxFull, i.Topic)
	}
}

func (i *Instance) stop() { i.quitOnce.Do(func() { close(i.quit) }) }

func (i *Instance) run() {
	for {
		select {
		case <-i.bus.ctx.Done():
			return
		case <-i.quit:
			return
		case task := <-i.mailbox:
			i.handle(task)
		}
	}
}

func (i *Instance) handle(task core.UserTask) {
	ctx := i.bus.sessionContext(i.SessionKey)
	out := &instanceOutbox{bus: i.bus, inst: i}

	defer func() {
		if r := recover(); r != nil {
			i.bus.logger.Error("bus.handler.panic", "topic", i.Topic, "session_key", i.SessionKey, "recover", r, "stack", string(debug.Stack()))
			_ = out.Emit(ctx, core.NewFailureEvent(i.SessionKey, i.Topic, fmt.Errorf("handler panic: %v", r)))
		}
	}()

	if err := i.handler.Handle(ctx, task, out); err != nil {
		i.bus.logger.Warn("bus.handler.error", "topic", i.Topic, "session_key", i.SessionKey, "error", err.Error())
	}
}

// instanceOutbox implements core.Outbox for one instance.
type instanceOutbox struct {
	bus  *Bus
	inst *Instance
}

func (o *instanceOutbox) Publish(ctx context.Context, topic string, task core.UserTask) error {
	if task.Origin == "" {
		task.Origin = o.inst.Topic
	}

	return o.bus.Publish(ctx, topic, o.inst.SessionKey, task)
}

func (o *instanceOutbox) Emit(ctx context.Context, ev core.Event) error {
	ev.SessionKey = o.inst.SessionKey
	return o.bus.emit(ctx, ev)
}

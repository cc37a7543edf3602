package domain

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Catcher collects the events issued during one dispatch pass.
//
// Issued events stay pending until a unit of work drains them into the
// outbox and commits. Only committed events are handed back to the bus, so
// state that was rolled back never cascades.
type Catcher struct {
	mu        sync.Mutex
	pending   []Event
	committed []Event
	seen      map[uuid.UUID]struct{}
}

func NewCatcher() *Catcher {
	return &Catcher{seen: make(map[uuid.UUID]struct{})}
}

func (c *Catcher) Issue(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, evt)
}

// Drain removes and returns the pending events.
func (c *Catcher) Drain() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.pending
	c.pending = nil
	return events
}

// Commit marks drained events as durable. Duplicate ids are ignored.
func (c *Catcher) Commit(events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, evt := range events {
		if _, ok := c.seen[evt.MessageID()]; ok {
			continue
		}
		c.seen[evt.MessageID()] = struct{}{}
		c.committed = append(c.committed, evt)
	}
}

// Events returns the committed events in issue order.
func (c *Catcher) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.committed...)
}

type catcherKey struct{}

func WithCatcher(ctx context.Context, c *Catcher) context.Context {
	return context.WithValue(ctx, catcherKey{}, c)
}

// CatcherFrom returns the catcher of the current pass, or a detached one
// when ctx carries none.
func CatcherFrom(ctx context.Context) *Catcher {
	if c, ok := ctx.Value(catcherKey{}).(*Catcher); ok {
		return c
	}
	return NewCatcher()
}

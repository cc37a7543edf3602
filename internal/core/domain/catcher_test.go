package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatcher_OnlyCommittedEventsAreReturned(t *testing.T) {
	c := NewCatcher()
	kept := NewOutOfStock("sku1")
	dropped := NewOutOfStock("sku2")

	c.Issue(kept)
	c.Commit(c.Drain())
	c.Issue(dropped)
	c.Drain()

	assert.Equal(t, []Event{kept}, c.Events())
}

func TestCatcher_DeduplicatesByID(t *testing.T) {
	c := NewCatcher()
	evt := NewOutOfStock("sku1")

	c.Commit([]Event{evt})
	c.Commit([]Event{evt})

	assert.Len(t, c.Events(), 1)
}

func TestCatcherFrom(t *testing.T) {
	c := NewCatcher()
	ctx := WithCatcher(context.Background(), c)

	assert.Same(t, c, CatcherFrom(ctx))
	assert.NotNil(t, CatcherFrom(context.Background()))
	assert.NotSame(t, c, CatcherFrom(context.Background()))
}

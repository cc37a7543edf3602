// Package bus routes commands and events to their handlers and cascades the
// events issued while handling them.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/allocation/internal/core/domain"
)

const tracerName = "github.com/rl1809/allocation/internal/core/bus"

// Handler is a named handler for messages of type M.
type Handler[M domain.Message] struct {
	Name   string
	Handle func(context.Context, M) error
}

func HandlerFunc[M domain.Message](name string, fn func(context.Context, M) error) Handler[M] {
	return Handler[M]{Name: name, Handle: fn}
}

// Hooks are optional callbacks around every handler invocation.
type Hooks struct {
	Pre       func(ctx context.Context, msg domain.Message, handler string)
	Post      func(ctx context.Context, msg domain.Message, handler string)
	Exception func(ctx context.Context, msg domain.Message, handler string, err error)
}

type Option func(*Bus)

func WithHooks(h Hooks) Option {
	return func(b *Bus) { b.hooks = h }
}

// WithMaxConcurrency bounds how many handlers or cascade children one fan-out
// runs at the same time. Zero means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(b *Bus) { b.limit = n }
}

func WithTracer(t trace.Tracer) Option {
	return func(b *Bus) { b.tracer = t }
}

type entry struct {
	name   string
	handle func(context.Context, domain.Message) error
}

type Bus struct {
	mu       sync.RWMutex
	commands map[string]entry
	events   map[string][]entry
	hooks    Hooks
	limit    int
	tracer   trace.Tracer
}

func New(opts ...Option) *Bus {
	b := &Bus{
		commands: make(map[string]entry),
		events:   make(map[string][]entry),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterCommandHandler binds the single handler of command type C.
func RegisterCommandHandler[C domain.Command](b *Bus, h Handler[C]) error {
	var zero C
	key := zero.MessageType()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.commands[key]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerAlreadyRegistered, key)
	}
	b.commands[key] = wrap(h)
	return nil
}

// RegisterEventHandlers binds the handlers of event type E. Registering an
// empty list declares E as a known event without handlers.
func RegisterEventHandlers[E domain.Event](b *Bus, hs ...Handler[E]) error {
	var zero E
	key := zero.MessageType()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.events[key]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerAlreadyRegistered, key)
	}
	entries := make([]entry, 0, len(hs))
	for _, h := range hs {
		entries = append(entries, wrap(h))
	}
	b.events[key] = entries
	return nil
}

func wrap[M domain.Message](h Handler[M]) entry {
	return entry{
		name: h.Name,
		handle: func(ctx context.Context, msg domain.Message) error {
			m, ok := msg.(M)
			if !ok {
				return fmt.Errorf("unexpected message %T for %s", msg, h.Name)
			}
			return h.Handle(ctx, m)
		},
	}
}

// Dispatch handles msg and every event cascading from it before returning.
// Only the root message's failure and unregistered cascade events are
// reported; event handler failures go to the exception hook.
func (b *Bus) Dispatch(ctx context.Context, msg domain.Message) error {
	cascade, err := b.DispatchAsync(ctx, msg)
	if err != nil {
		return err
	}
	return cascade.Wait()
}

// DispatchAsync handles msg and returns once its own pass is done, leaving
// the cascade of issued events running behind the returned handle.
func (b *Bus) DispatchAsync(ctx context.Context, msg domain.Message) (*Cascade, error) {
	issued, err := b.handleOnce(ctx, msg)
	if err != nil {
		return nil, err
	}

	c := &Cascade{done: make(chan struct{})}
	if len(issued) == 0 {
		close(c.done)
		return c, nil
	}

	go func() {
		defer close(c.done)
		c.err = fanOut(b.limit, issued, func(evt domain.Event) error {
			return b.Dispatch(ctx, evt)
		})
	}()
	return c, nil
}

func (b *Bus) handleOnce(ctx context.Context, msg domain.Message) (_ []domain.Event, err error) {
	ctx, span := b.tracer.Start(ctx, "bus.dispatch", trace.WithAttributes(
		attribute.String("message.type", msg.MessageType()),
		attribute.String("message.id", msg.MessageID().String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	pass := domain.NewCatcher()

	b.mu.RLock()
	cmd, isCommand := b.commands[msg.MessageType()]
	evts, isEvent := b.events[msg.MessageType()]
	b.mu.RUnlock()

	switch msg.(type) {
	case domain.Command:
		if !isCommand {
			return nil, fmt.Errorf("%w: %s", ErrHandlerNotRegistered, msg.MessageType())
		}
		if err := b.run(ctx, pass, msg, cmd); err != nil {
			return nil, err
		}
	case domain.Event:
		if !isEvent {
			return nil, fmt.Errorf("%w: %s", ErrHandlerNotRegistered, msg.MessageType())
		}
		// Failures were already reported through the exception hook.
		_ = fanOut(b.limit, evts, func(e entry) error {
			return b.run(ctx, pass, msg, e)
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotRegistered, msg.MessageType())
	}

	return pass.Events(), nil
}

// run invokes one handler with its own catcher, then hands the events it
// committed to the pass.
func (b *Bus) run(ctx context.Context, pass *domain.Catcher, msg domain.Message, e entry) (err error) {
	local := domain.NewCatcher()
	ctx = domain.WithCatcher(ctx, local)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		pass.Commit(local.Events())
		if err == nil {
			return
		}
		err = &HandlerError{MessageType: msg.MessageType(), Handler: e.name, Err: err}
		if b.hooks.Exception != nil {
			b.hooks.Exception(ctx, msg, e.name, err)
		}
	}()

	if b.hooks.Pre != nil {
		b.hooks.Pre(ctx, msg, e.name)
	}
	if err := e.handle(ctx, msg); err != nil {
		return err
	}
	if b.hooks.Post != nil {
		b.hooks.Post(ctx, msg, e.name)
	}
	return nil
}

// Cascade is the in-flight dispatch of the events issued by a root message.
type Cascade struct {
	done chan struct{}
	err  error
}

// Wait blocks until the whole cascade has been handled.
func (c *Cascade) Wait() error {
	<-c.done
	return c.err
}

func (c *Cascade) Done() <-chan struct{} {
	return c.done
}

// fanOut runs fn over items concurrently. A failure never cancels siblings.
func fanOut[T any](limit int, items []T, fn func(T) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, item := range items {
		g.Go(func() error {
			if err := fn(item); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

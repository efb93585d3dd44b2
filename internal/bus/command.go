package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// Handler executes one command's payload and returns the value to resolve
// its future with, or an error.
type Handler func(ctx context.Context, payload map[string]any) (any, error)

// Future is the {ok, value|error} result of a submitted command, resolved
// exactly once by the executor goroutine.
type Future struct {
	ch chan model.CommandResult
}

// Wait blocks the caller (not the executor) until the command resolves or
// ctx is done.
func (f *Future) Wait(ctx context.Context) (model.CommandResult, error) {
	select {
	case r := <-f.ch:
		return r, nil
	case <-ctx.Done():
		return model.CommandResult{}, ctx.Err()
	}
}

type job struct {
	ctx context.Context
	cmd model.Command
	fut *Future
}

// CommandBus is C7's request/response half: Submit never blocks the
// caller, a single executor goroutine dispatches sequentially by name.
type CommandBus struct {
	mu       sync.Mutex
	handlers map[string]Handler
	queue    []job
	signal   chan struct{}
}

func NewCommandBus() *CommandBus {
	b := &CommandBus{handlers: map[string]Handler{}, signal: make(chan struct{}, 1)}
	go b.run()
	return b
}

// Register binds name to h. Registering the same name twice replaces the
// handler.
func (b *CommandBus) Register(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = h
}

// Submit enqueues cmd and returns immediately with a Future; it never
// blocks regardless of queue depth or handler runtime.
func (b *CommandBus) Submit(ctx context.Context, cmd model.Command) *Future {
	fut := &Future{ch: make(chan model.CommandResult, 1)}
	b.mu.Lock()
	b.queue = append(b.queue, job{ctx: ctx, cmd: cmd, fut: fut})
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
	return fut
}

func (b *CommandBus) run() {
	for range b.signal {
		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				b.mu.Unlock()
				break
			}
			j := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			b.execute(j)
		}
	}
}

func (b *CommandBus) execute(j job) {
	b.mu.Lock()
	h, ok := b.handlers[j.cmd.Name]
	b.mu.Unlock()
	if !ok {
		j.fut.ch <- model.CommandResult{Err: fmt.Errorf("bus: unknown command %q", j.cmd.Name)}
		return
	}
	v, err := h(j.ctx, j.cmd.Payload)
	j.fut.ch <- model.CommandResult{Value: v, Err: err}
}

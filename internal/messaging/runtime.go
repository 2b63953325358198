package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("message runtime closed")

// Handler answers one message. It runs on its own goroutine; the runtime
// keeps the reply channel open until it returns. The context it gets carries
// the caller's values but not its cancellation.
type Handler func(ctx context.Context, msg Message) Reply

type envelope struct {
	ctx   context.Context
	raw   []byte
	reply chan Reply
}

// Runtime is the background context's inbox. Every message is dispatched
// independently, so replies may complete out of order.
type Runtime struct {
	inbox   chan envelope
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	handler Handler
	wg      sync.WaitGroup
	logger  *zap.Logger
}

func NewRuntime(buffer int, logger *zap.Logger) *Runtime {
	return &Runtime{
		inbox:   make(chan envelope, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Listen installs the message handler.
func (r *Runtime) Listen(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

// Run dispatches messages until ctx is done or Close is called. In-flight
// handlers are waited for before Run returns. Run must be called once.
func (r *Runtime) Run(ctx context.Context) error {
	defer close(r.stopped)
	defer r.wg.Wait()
	defer r.drain()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return ctx.Err()
		case <-r.done:
			return nil
		case env := <-r.inbox:
			r.wg.Add(1)
			go r.dispatch(env)
		}
	}
}

// drain fails messages that were queued but never dispatched.
func (r *Runtime) drain() {
	for {
		select {
		case env := <-r.inbox:
			env.reply <- Failure(ErrClosed)
		default:
			return
		}
	}
}

func (r *Runtime) dispatch(env envelope) {
	defer r.wg.Done()

	var msg Message
	if err := json.Unmarshal(env.raw, &msg); err != nil {
		env.reply <- Failure(fmt.Errorf("invalid message: %w", err))
		return
	}

	r.mu.RLock()
	h := r.handler
	r.mu.RUnlock()
	if h == nil {
		env.reply <- Failure(fmt.Errorf("no listener for %s", msg.Action))
		return
	}

	// Dispatched requests are not cancellable; the caller may only stop waiting.
	env.reply <- h(context.WithoutCancel(env.ctx), msg)
}

// SendMessage delivers msg and waits for its single reply.
func (r *Runtime) SendMessage(ctx context.Context, msg Message) (Reply, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to encode message: %w", err)
	}

	select {
	case <-r.done:
		return Reply{}, ErrClosed
	default:
	}

	env := envelope{ctx: ctx, raw: raw, reply: make(chan Reply, 1)}
	select {
	case <-r.done:
		return Reply{}, ErrClosed
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case r.inbox <- env:
	}

	select {
	case reply := <-env.reply:
		return reply, nil
	case <-r.stopped:
		select {
		case reply := <-env.reply:
			return reply, nil
		default:
			return Reply{}, ErrClosed
		}
	case <-ctx.Done():
		r.logger.Warn("Caller stopped waiting for reply",
			zap.String("action", string(msg.Action)),
			zap.Error(ctx.Err()))
		return Reply{}, ctx.Err()
	}
}

// Close stops accepting messages. Handlers already dispatched still finish.
func (r *Runtime) Close() {
	r.once.Do(func() { close(r.done) })
}

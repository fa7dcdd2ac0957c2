package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"topomerge/internal/domain"
)

// EventReady is the only event the gate acts on
const EventReady = "ready"

// ErrSuperseded is returned by a Run that was replaced by a newer Run on the same gate
var ErrSuperseded = errors.New("gate run superseded")

// State of the gate's state machine
type State int

const (
	StateIdle State = iota
	StateWaiting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Event is one server-initiated notification
type Event struct {
	Name string
	Data string
}

// Stream is an open readiness channel
type Stream interface {
	// Next blocks until the next event arrives or the channel fails
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Dialer opens a readiness channel scoped by task name and auth token
type Dialer interface {
	Dial(ctx context.Context, task, token string) (Stream, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context, task, token string) (Stream, error)

func (f DialerFunc) Dial(ctx context.Context, task, token string) (Stream, error) {
	return f(ctx, task, token)
}

type run struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
	once   sync.Once
}

func (r *run) finish() {
	r.once.Do(func() { close(r.done) })
}

// Gate holds back a dependent call until the backend reports that the
// precomputation it needs is ready. One gate has at most one open channel.
type Gate struct {
	dialer Dialer

	mu      sync.Mutex
	state   State
	current *run
}

// New creates a gate that opens channels with d
func New(d Dialer) *Gate {
	return &Gate{dialer: d}
}

// State returns the current state
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Run opens a channel for task and blocks until it delivers "ready", at
// which point the channel is closed and onReady is called synchronously.
// Other event names are ignored. If ctx ends first, or a newer Run starts
// on this gate, the channel is closed and onReady is never called. A
// channel error returns an error wrapping domain.ErrChannelFailure.
func (g *Gate) Run(ctx context.Context, task, token string, onReady func()) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}

	g.mu.Lock()
	prev := g.current
	g.current = r
	g.state = StateWaiting
	g.mu.Unlock()

	if prev != nil {
		prev.cancel(ErrSuperseded)
		<-prev.done
	}

	defer func() {
		cancel(nil)
		g.mu.Lock()
		if g.current == r {
			g.current = nil
			g.state = StateIdle
		}
		g.mu.Unlock()
		r.finish()
	}()

	stream, err := g.dialer.Dial(runCtx, task, token)
	if err != nil {
		if cause := context.Cause(runCtx); cause != nil {
			return cause
		}
		return fmt.Errorf("%w: open %s: %v", domain.ErrChannelFailure, task, err)
	}

	var closeOnce sync.Once
	closeStream := func() {
		closeOnce.Do(func() {
			if err := stream.Close(); err != nil {
				log.Printf("gate: close channel for %s: %v", task, err)
			}
		})
	}
	defer closeStream()

	for {
		ev, err := stream.Next(runCtx)
		if cause := context.Cause(runCtx); cause != nil {
			return cause
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrChannelFailure, task, err)
		}
		if ev.Name != EventReady {
			continue
		}

		closeStream()
		g.mu.Lock()
		if g.current == r {
			g.state = StateReady
		}
		g.mu.Unlock()
		// release waiters so onReady may itself start another Run
		r.finish()

		onReady()
		return nil
	}
}

// Wait is Run without a callback: it returns nil once task is ready
func (g *Gate) Wait(ctx context.Context, task, token string) error {
	return g.Run(ctx, task, token, func() {})
}

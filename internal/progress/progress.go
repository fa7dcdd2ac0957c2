// Package progress drives a cosmetic completion signal from a time
// estimate. The signal never reaches 100 by itself; Stop forces it there.
package progress

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultIncrement is the signal advance per tick below the threshold
	DefaultIncrement = 0.1
	// Threshold is the point past which the advance slows asymptotically
	Threshold = 75.0
	// Complete is the value emitted by Stop
	Complete = 100.0

	minInterval = time.Millisecond
)

// Sink receives progress values in [0, 100]
type Sink func(float64)

// Next returns the value following current: a fixed step below the
// threshold, then a step shrinking with the remaining distance to 100.
func Next(current, increment float64) float64 {
	if current < Threshold {
		return current + increment
	}
	return current + increment*(Complete-current)/(Complete-Threshold)
}

// Interval is the tick period for an operation expected to take estimate
func Interval(estimate time.Duration, increment float64) time.Duration {
	d := time.Duration(float64(estimate) * increment / 100)
	if d < minInterval {
		return minInterval
	}
	return d
}

// Estimator owns one ticker and its current value
type Estimator struct {
	sink      Sink
	increment float64
	interval  time.Duration

	mu      sync.Mutex
	current float64
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an estimator for an operation expected to take estimate
func New(estimate time.Duration, sink Sink) *Estimator {
	if sink == nil {
		sink = func(float64) {}
	}
	return &Estimator{
		sink:      sink,
		increment: DefaultIncrement,
		interval:  Interval(estimate, DefaultIncrement),
	}
}

// Value returns the last computed value
func (e *Estimator) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Start begins ticking until Stop is called or ctx ends. Starting twice
// or after Stop does nothing.
func (e *Estimator) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running || e.stopped {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.running = true
	go e.loop(ctx, e.done)
}

func (e *Estimator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick emits the current value then advances it
func (e *Estimator) tick() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	v := e.current
	e.current = Next(e.current, e.increment)
	e.mu.Unlock()
	e.sink(v)
}

// Stop halts ticking, waits for the ticker goroutine to exit and emits
// 100. Later calls do nothing.
func (e *Estimator) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	cancel, done := e.cancel, e.done
	e.current = Complete
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	e.sink(Complete)
}

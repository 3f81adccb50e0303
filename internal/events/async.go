package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Async runs a Sink behind a bounded queue. Publish never blocks: when the
// queue is full the event is dropped and counted.
type Async struct {
	name   string
	sink   Sink
	logger *zap.Logger
	onDrop func(sink string)

	mu     sync.RWMutex
	queue  chan Event
	closed bool
	wg     sync.WaitGroup
}

func NewAsync(name string, sink Sink, size int, logger *zap.Logger, onDrop func(sink string)) *Async {
	if size <= 0 {
		size = 1
	}
	return &Async{
		name:   name,
		sink:   sink,
		logger: logger.With(zap.String("sink", name)),
		onDrop: onDrop,
		queue:  make(chan Event, size),
	}
}

func (a *Async) Name() string { return a.name }

func (a *Async) Publish(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- e:
	default:
		a.logger.Warn("Sink queue full, dropping event", zap.String("kind", string(e.Kind)))
		if a.onDrop != nil {
			a.onDrop(a.name)
		}
	}
}

// Start launches the worker. Events left in the queue at Stop are drained.
func (a *Async) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for e := range a.queue {
			if err := a.sink.Handle(ctx, e); err != nil {
				a.logger.Error("Sink failed to handle event",
					zap.String("kind", string(e.Kind)),
					zap.String("key", e.Key),
					zap.Error(err),
				)
			}
		}
	}()
}

// Stop closes the queue and waits for the worker to drain it.
func (a *Async) Stop() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

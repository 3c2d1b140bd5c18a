package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event represents a domain event emitted on a terminal lifecycle transition.
type Event struct {
	Name        string
	AggregateID string
	Payload     map[string]interface{}
	OccurredAt  time.Time
}

// Handler consumes a dispatched event.
type Handler func(context.Context, Event)

// Sink accepts domain events for asynchronous delivery.
type Sink interface {
	Publish(Event)
}

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Dispatcher is an in-process event fan-out backed by goroutines. Publishing
// never blocks the hot path; events are dropped with a warning when the
// buffer is full.
type Dispatcher struct {
	workers    int
	bufferSize int
	logger     *zap.Logger

	events  chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	handlers []Handler
}

// NewDispatcher builds a dispatcher with the provided configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Dispatcher{
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
		events:     make(chan Event, cfg.BufferSize),
	}
}

// Subscribe registers a handler. Must be called before Start.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || h == nil {
		return
	}
	d.handlers = append(d.handlers, h)
}

// Start begins worker consumption. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("event dispatcher started", "workers", d.workers)
}

// Stop cancels workers and waits for them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Sugar().Infow("event dispatcher stopped")
}

// Publish enqueues an event for delivery without blocking the caller.
func (d *Dispatcher) Publish(evt Event) {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	if !started {
		d.logger.Sugar().Warnw("event dropped, dispatcher not started", "event", evt.Name)
		return
	}

	select {
	case d.events <- evt:
	default:
		d.logger.Sugar().Warnw("event dropped, buffer full", "event", evt.Name, "aggregate_id", evt.AggregateID)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case evt := <-d.events:
			d.deliver(evt)
		}
	}
}

func (d *Dispatcher) deliver(evt Event) {
	d.logger.Sugar().Infow("domain event", "event", evt.Name, "aggregate_id", evt.AggregateID)
	for _, h := range d.handlers {
		h(d.ctx, evt)
	}
}

// NopSink discards events; useful for tests and wiring defaults.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(Event) {}

package exchange

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/yesno/pkg/app/core/orderbook"
)

// BookUpdate is the published view of one symbol's book, keyed by symbol
type BookUpdate struct {
	orderbook.Snapshot
	Timestamp int64 `json:"timestamp"` // unix millis
}

// Event is emitted once per successful command that changed a book. Events
// replayed from the dispatcher's trade backlog carry trades but no book.
type Event struct {
	Book   BookUpdate
	Trades []Trade
}

// HasBook reports whether ev carries a book snapshot
func (ev Event) HasBook() bool { return ev.Book.Symbol != "" }

// Notifier receives events from the command loop. Publish must not block.
type Notifier interface {
	Publish(ev Event)
}

// Sink consumes events off the command loop (websocket hub, kafka, trade journal)
type Sink interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}

// Dispatcher hands events from the engine to its sinks on a separate goroutine.
// Sinks see events in publish order. When the buffer is full the newest event's
// snapshot is dropped, since a later snapshot of the same symbol supersedes it.
// Its trades move to an unbounded backlog and still reach every sink.
type Dispatcher struct {
	events  chan Event
	sinks   []Sink
	logger  *zap.SugaredLogger
	dropped atomic.Int64
	done    chan struct{}

	mu      sync.Mutex
	backlog []Trade
	wake    chan struct{}
}

func NewDispatcher(buffer int, logger *zap.SugaredLogger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		events: make(chan Event, buffer),
		sinks:  sinks,
		logger: logger,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
}

// Publish enqueues ev without blocking
func (d *Dispatcher) Publish(ev Event) {
	select {
	case d.events <- ev:
	default:
		n := d.dropped.Add(1)
		d.logger.Warnw("event_dropped", "symbol", ev.Book.Symbol, "trades", len(ev.Trades), "dropped_total", n)
		if len(ev.Trades) == 0 {
			return
		}
		d.mu.Lock()
		d.backlog = append(d.backlog, ev.Trades...)
		d.mu.Unlock()
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
}

// Dropped returns how many snapshots were discarded because the buffer was full
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Run delivers events until ctx is cancelled, then flushes what is already queued
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case ev := <-d.events:
			d.deliver(ctx, ev)
		case <-d.wake:
			d.deliverBacklog(ctx)
		case <-ctx.Done():
			d.flush()
			return
		}
	}
}

// Done is closed when Run has returned
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-d.events:
			d.deliver(ctx, ev)
		default:
			d.deliverBacklog(ctx)
			return
		}
	}
}

func (d *Dispatcher) deliverBacklog(ctx context.Context) {
	d.mu.Lock()
	trades := d.backlog
	d.backlog = nil
	d.mu.Unlock()

	if len(trades) > 0 {
		d.deliver(ctx, Event{Trades: trades})
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, s := range d.sinks {
		if err := s.HandleEvent(ctx, ev); err != nil {
			d.logger.Warnw("sink_failed", "symbol", ev.Book.Symbol, "err", err)
		}
	}
}

// Package events implements an asynchronous publish/subscribe channel with a
// circuit breaker keyed by event name.
//
// Every subscription owns a FIFO queue drained by its own goroutine, so Emit
// never waits for handlers and events reach a given subscriber in emission
// order. Handler errors and panics count as failures of the event name; once
// the rolling count within the window reaches the threshold the circuit for
// that name opens and the event is suppressed for every subscriber until
// ResetCircuitBreaker is called.
package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"editguard/internal/logging"
)

// Well-known event names.
const (
	Wildcard         = "*"
	CircuitOpenEvent = "circuit.open"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultThreshold = 5
	DefaultWindow    = time.Minute
	DefaultQueueSize = 256
)

// Event is one notification.
type Event struct {
	Name      string
	Payload   any
	Seq       uint64
	Timestamp time.Time
}

// CircuitOpen is the payload of a circuit.open event.
type CircuitOpen struct {
	Event    string
	Failures int
	LastErr  string
}

// Handler consumes an event. A non-nil error or a panic is a failure.
type Handler func(Event) error

// Subscription identifies one registered handler.
type Subscription struct {
	ID   uint64
	Name string
}

// Options configures a Bus.
type Options struct {
	Threshold int
	Window    time.Duration
	QueueSize int
	Now       func() time.Time
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Emitted      uint64
	Delivered    uint64
	Failed       uint64
	Dropped      uint64
	Suppressed   uint64
	Subscribers  int
	OpenCircuits []string
}

type subscriber struct {
	Subscription
	handler Handler
	queue   chan Event
	stopped atomic.Bool
}

type breaker struct {
	failures []time.Time
	open     bool
}

// Bus is safe for concurrent use.
type Bus struct {
	logger    *zap.Logger
	window    time.Duration
	queueSize int
	now       func() time.Time
	threshold atomic.Int64

	mu     sync.RWMutex
	subs   map[string][]*subscriber
	nextID uint64
	closed bool

	breakerMu sync.Mutex
	breakers  map[string]*breaker

	workers sync.WaitGroup
	pending pending

	sequence   atomic.Uint64
	delivered  atomic.Uint64
	failed     atomic.Uint64
	dropped    atomic.Uint64
	suppressed atomic.Uint64

	closeOnce sync.Once
}

// New creates a bus. A nil logger is allowed.
func New(opts Options, l *zap.Logger) *Bus {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b := &Bus{
		logger:    logging.For(l, logging.CategoryEvents),
		window:    opts.Window,
		queueSize: opts.QueueSize,
		now:       opts.Now,
		subs:      make(map[string][]*subscriber),
		breakers:  make(map[string]*breaker),
	}
	b.threshold.Store(int64(opts.Threshold))
	return b
}

// On registers handler for name, or for every event when name is Wildcard.
// On a closed bus the returned subscription is inert.
func (b *Bus) On(name string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &subscriber{
		Subscription: Subscription{ID: b.nextID, Name: name},
		handler:      handler,
		queue:        make(chan Event, b.queueSize),
	}
	if b.closed {
		return s.Subscription
	}
	b.subs[name] = append(b.subs[name], s)
	b.workers.Add(1)
	go b.run(s)
	return s.Subscription
}

// Off removes a subscription. Events still queued for it are discarded.
func (b *Bus) Off(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.Name]
	for i, s := range list {
		if s.ID != sub.ID {
			continue
		}
		b.subs[sub.Name] = append(list[:i:i], list[i+1:]...)
		if len(b.subs[sub.Name]) == 0 {
			delete(b.subs, sub.Name)
		}
		s.stopped.Store(true)
		close(s.queue)
		return true
	}
	return false
}

// Emit queues an event for every matching subscriber and returns immediately.
// Events of an open circuit are suppressed. Events queued before a circuit
// opens are still delivered.
func (b *Bus) Emit(name string, payload any) {
	if b.IsOpen(name) {
		b.suppressed.Add(1)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	e := Event{
		Name:      name,
		Payload:   payload,
		Seq:       b.sequence.Add(1),
		Timestamp: b.now(),
	}
	targets := b.subs[name]
	if name != Wildcard {
		targets = append(targets[:len(targets):len(targets)], b.subs[Wildcard]...)
	}
	for _, s := range targets {
		b.pending.add()
		select {
		case s.queue <- e:
		default:
			b.pending.done()
			b.dropped.Add(1)
			b.logger.Debug("queue full, event dropped", zap.String("event", name), zap.Uint64("subscription", s.ID))
		}
	}
}

func (b *Bus) run(s *subscriber) {
	defer b.workers.Done()
	for e := range s.queue {
		b.deliver(s, e)
		b.pending.done()
	}
}

func (b *Bus) deliver(s *subscriber, e Event) {
	if s.stopped.Load() {
		return
	}
	if err := call(s.handler, e); err != nil {
		b.failed.Add(1)
		b.logger.Debug("handler failed", zap.String("event", e.Name), zap.Uint64("subscription", s.ID), zap.Error(err))
		b.recordFailure(e.Name, err)
		return
	}
	b.delivered.Add(1)
}

func call(h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(e)
}

func (b *Bus) recordFailure(name string, cause error) {
	now := b.now()
	threshold := int(b.threshold.Load())

	b.breakerMu.Lock()
	br := b.breakers[name]
	if br == nil {
		br = &breaker{}
		b.breakers[name] = br
	}
	cutoff := now.Add(-b.window)
	kept := br.failures[:0]
	for _, t := range br.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	br.failures = append(kept, now)
	count := len(br.failures)
	tripped := !br.open && count >= threshold
	if tripped {
		br.open = true
	}
	b.breakerMu.Unlock()

	if !tripped {
		return
	}
	b.logger.Warn("circuit opened", zap.String("event", name), zap.Int("failures", count))
	if name != CircuitOpenEvent {
		b.Emit(CircuitOpenEvent, CircuitOpen{Event: name, Failures: count, LastErr: cause.Error()})
	}
}

// IsOpen reports whether the circuit for name is open.
func (b *Bus) IsOpen(name string) bool {
	b.breakerMu.Lock()
	defer b.breakerMu.Unlock()
	br := b.breakers[name]
	return br != nil && br.open
}

// ResetCircuitBreaker clears the failure count and open state for name.
func (b *Bus) ResetCircuitBreaker(name string) {
	b.breakerMu.Lock()
	_, existed := b.breakers[name]
	delete(b.breakers, name)
	b.breakerMu.Unlock()
	if existed {
		b.logger.Info("circuit reset", zap.String("event", name))
	}
}

// SetCircuitBreakerThreshold changes the failure threshold. Values below one
// are ignored. Circuits already open stay open.
func (b *Bus) SetCircuitBreakerThreshold(n int) {
	if n < 1 {
		return
	}
	b.threshold.Store(int64(n))
}

// Flush waits until every queued event has been handled or ctx is done.
func (b *Bus) Flush(ctx context.Context) error {
	select {
	case <-b.pending.idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, drains every queue and waits for workers.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		for _, list := range b.subs {
			for _, s := range list {
				close(s.queue)
			}
		}
		b.subs = make(map[string][]*subscriber)
		b.mu.Unlock()
		b.workers.Wait()
	})
}

// Stats returns current counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := 0
	for _, list := range b.subs {
		n += len(list)
	}
	b.mu.RUnlock()

	b.breakerMu.Lock()
	var open []string
	for name, br := range b.breakers {
		if br.open {
			open = append(open, name)
		}
	}
	b.breakerMu.Unlock()
	sort.Strings(open)

	return Stats{
		Emitted:      b.sequence.Load(),
		Delivered:    b.delivered.Load(),
		Failed:       b.failed.Load(),
		Dropped:      b.dropped.Load(),
		Suppressed:   b.suppressed.Load(),
		Subscribers:  n,
		OpenCircuits: open,
	}
}

// pending counts queued but unhandled events.
type pending struct {
	mu   sync.Mutex
	n    int
	zero chan struct{}
}

func (p *pending) add() {
	p.mu.Lock()
	if p.n == 0 {
		p.zero = make(chan struct{})
	}
	p.n++
	p.mu.Unlock()
}

func (p *pending) done() {
	p.mu.Lock()
	p.n--
	if p.n == 0 {
		close(p.zero)
	}
	p.mu.Unlock()
}

func (p *pending) idle() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.n == 0 {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.zero
}

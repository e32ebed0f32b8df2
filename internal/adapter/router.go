package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"editguard/internal/constraint"
	"editguard/internal/events"
	"editguard/internal/faults"
	"editguard/internal/logging"
)

// Router events.
const (
	EventAttempt   = "router.attempt"
	EventFailure   = "router.failure"
	EventSuccess   = "router.success"
	EventExhausted = "router.exhausted"
	EventHealth    = "router.health"
)

// defaultJobTimeout applies when a job carries none.
const defaultJobTimeout = 30 * time.Second

var (
	ErrDuplicateAdapter = errors.New("adapter already registered")
	ErrUnknownAdapter   = errors.New("unknown adapter")
	ErrNoCandidates     = errors.New("no compatible adapter")
	ErrAdapterTimeout   = errors.New("adapter timed out")
	ErrAdapterRejected  = errors.New("adapter reported failure")
)

// Attempt records one try of one adapter.
type Attempt struct {
	Adapter  string        `json:"adapter"`
	Success  bool          `json:"success"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Dispatch is the outcome of a successful dispatch.
type Dispatch struct {
	Adapter  string     `json:"adapter"`
	Result   *JobResult `json:"result"`
	Attempts []Attempt  `json:"attempts"`
}

// DispatchError reports that every candidate failed.
type DispatchError struct {
	JobID    string
	Attempts []Attempt
	Last     error
}

func (e *DispatchError) Error() string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Adapter
	}
	return fmt.Sprintf("job %s: all %d adapters failed [%s]: %v", e.JobID, len(e.Attempts), strings.Join(names, ", "), e.Last)
}

func (e *DispatchError) Unwrap() error { return e.Last }

// AttemptEvent is the payload of router attempt, failure and success events.
type AttemptEvent struct {
	JobID    string        `json:"job_id"`
	Adapter  string        `json:"adapter"`
	Attempt  int           `json:"attempt"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// HealthEvent is the payload of router.health, sent on health transitions.
type HealthEvent struct {
	Adapter string `json:"adapter"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Options configures a Router.
type Options struct {
	Strategy       string
	HealthInterval time.Duration
	Now            func() time.Time
}

type entry struct {
	adapter Adapter
	caps    Capabilities

	mu      sync.Mutex
	metrics AdapterMetrics
	status  Status

	cancel context.CancelFunc
	done   chan struct{}
}

// Router is safe for concurrent dispatch.
type Router struct {
	logger   *zap.Logger
	bus      *events.Bus
	strategy Strategy
	interval time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRouter creates a router. bus and l may be nil.
func NewRouter(opts Options, bus *events.Bus, l *zap.Logger) (*Router, error) {
	strategy, err := NewStrategy(opts.Strategy)
	if err != nil {
		return nil, faults.Wrap(err, faults.CategoryInvalidInput, "unknown_strategy", "use priority, round_robin or load_balanced", false)
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		logger:   logging.For(l, logging.CategoryRouter),
		bus:      bus,
		strategy: strategy,
		interval: opts.HealthInterval,
		now:      opts.Now,
		entries:  make(map[string]*entry),
	}, nil
}

// Strategy returns the name of the active strategy.
func (r *Router) Strategy() string { return r.strategy.Name() }

// Register initializes a and starts its health monitor.
func (r *Router) Register(ctx context.Context, a Adapter, priority int, settings json.RawMessage) error {
	name := a.Name()
	r.mu.RLock()
	_, dup := r.entries[name]
	r.mu.RUnlock()
	if dup {
		return fmt.Errorf("%w: %s", ErrDuplicateAdapter, name)
	}
	if err := a.Initialize(ctx, settings); err != nil {
		return faults.Wrap(fmt.Errorf("initialize %s: %w", name, err), faults.CategoryBackendFailure, "initialize_failed", "", false)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		// Lost a race with a concurrent Register of the same name.
		_ = a.Cleanup(ctx)
		return fmt.Errorf("%w: %s", ErrDuplicateAdapter, name)
	}

	monCtx, cancel := context.WithCancel(context.Background())
	e := &entry{
		adapter: a,
		caps:    a.Capabilities(),
		metrics: AdapterMetrics{Priority: priority},
		status:  Status{Healthy: true, Ready: true, CheckedAt: r.now()},
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	r.entries[name] = e
	go r.monitor(monCtx, e)

	r.logger.Info("adapter registered", zap.String("adapter", name), zap.Int("priority", priority))
	return nil
}

// Deregister stops the health monitor of name and cleans the adapter up.
func (r *Router) Deregister(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAdapter, name)
	}
	e.cancel()
	<-e.done
	r.logger.Info("adapter deregistered", zap.String("adapter", name))
	return e.adapter.Cleanup(ctx)
}

// Close deregisters every adapter.
func (r *Router) Close(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		if err := r.Deregister(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Names returns the registered adapter names, sorted.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Metrics returns a snapshot of the router-side metrics of name.
func (r *Router) Metrics(name string) (AdapterMetrics, bool) {
	e := r.entry(name)
	if e == nil {
		return AdapterMetrics{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics, true
}

// ResetMetrics clears the counters of name, keeping its priority.
func (r *Router) ResetMetrics(name string) bool {
	e := r.entry(name)
	if e == nil {
		return false
	}
	e.mu.Lock()
	e.metrics = AdapterMetrics{Priority: e.metrics.Priority, CurrentLoad: e.metrics.CurrentLoad}
	e.mu.Unlock()
	r.logger.Info("metrics reset", zap.String("adapter", name))
	return true
}

func (r *Router) entry(name string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// Candidates returns the compatible, healthy adapters for job in attempt order.
func (r *Router) Candidates(job *Job) []Candidate {
	r.mu.RLock()
	var cands []Candidate
	for name, e := range r.entries {
		e.mu.Lock()
		healthy := e.status.Healthy
		m := e.metrics
		e.mu.Unlock()
		if !healthy {
			r.logger.Debug("skipping unhealthy adapter", zap.String("adapter", name))
			continue
		}
		if ok, why := e.caps.Supports(job); !ok {
			r.logger.Debug("adapter incompatible", zap.String("adapter", name), zap.String("reason", why))
			continue
		}
		cands = append(cands, Candidate{Name: name, Metrics: m, caps: e.caps})
	}
	r.mu.RUnlock()

	cands = r.strategy.Order(job, cands, r.now())
	return preferFirst(cands, job.Preferred)
}

// preferFirst moves preferred candidates to the front in the given order.
func preferFirst(cands []Candidate, preferred []string) []Candidate {
	if len(preferred) == 0 {
		return cands
	}
	out := make([]Candidate, 0, len(cands))
	used := make(map[string]bool)
	for _, p := range preferred {
		for _, c := range cands {
			if c.Name == p && !used[p] {
				out = append(out, c)
				used[p] = true
			}
		}
	}
	for _, c := range cands {
		if !used[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// Dispatch tries candidates in order until one succeeds.
func (r *Router) Dispatch(ctx context.Context, job *Job) (*Dispatch, error) {
	cands := r.Candidates(job)
	if len(cands) == 0 {
		r.emit(EventExhausted, AttemptEvent{JobID: job.ID, Error: ErrNoCandidates.Error()})
		return nil, faults.Wrap(&DispatchError{JobID: job.ID, Last: ErrNoCandidates}, faults.CategoryExhausted,
			"no_candidates", "register an adapter whose capabilities cover the job", false)
	}
	if job.MaxAttempts > 0 && len(cands) > job.MaxAttempts {
		cands = cands[:job.MaxAttempts]
	}
	if job.FallbackPolicy == constraint.FallbackNone {
		cands = cands[:1]
	}

	var attempts []Attempt
	var last error
	for i, c := range cands {
		if err := ctx.Err(); err != nil {
			last = err
			break
		}
		e := r.entry(c.Name)
		if e == nil {
			continue // deregistered mid-dispatch
		}
		r.emit(EventAttempt, AttemptEvent{JobID: job.ID, Adapter: c.Name, Attempt: i + 1})

		res, att, err := r.try(ctx, e, job)
		attempts = append(attempts, att)
		if err == nil {
			r.emit(EventSuccess, AttemptEvent{JobID: job.ID, Adapter: c.Name, Attempt: i + 1, Duration: att.Duration})
			r.logger.Debug("dispatch succeeded", zap.String("job", job.ID), zap.String("adapter", c.Name), zap.Int("attempt", i+1))
			return &Dispatch{Adapter: c.Name, Result: res, Attempts: attempts}, nil
		}
		last = err
		r.emit(EventFailure, AttemptEvent{JobID: job.ID, Adapter: c.Name, Attempt: i + 1, Duration: att.Duration, Error: err.Error()})
		r.logger.Warn("adapter attempt failed", zap.String("job", job.ID), zap.String("adapter", c.Name), zap.Error(err))
	}

	r.emit(EventExhausted, AttemptEvent{JobID: job.ID, Attempt: len(attempts), Error: errString(last)})
	derr := &DispatchError{JobID: job.ID, Attempts: attempts, Last: last}
	return nil, faults.Wrap(derr, faults.CategoryExhausted, "all_adapters_failed", "check adapter health and capacity", true)
}

type outcome struct {
	res *JobResult
	err error
}

// try runs one attempt raced against the job timeout. A late result from a
// timed-out attempt lands in the buffered channel and is discarded.
func (r *Router) try(ctx context.Context, e *entry, job *Job) (*JobResult, Attempt, error) {
	name := e.adapter.Name()
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.mu.Lock()
	e.metrics.CurrentLoad++
	e.mu.Unlock()

	start := r.now()
	ch := make(chan outcome, 1)
	go func() {
		res, err := e.adapter.Execute(tctx, job)
		ch <- outcome{res, err}
	}()

	var res *JobResult
	var err error
	timedOut := false
	select {
	case o := <-ch:
		res, err = o.res, o.err
		if err == nil && (res == nil || !res.Success) {
			err = rejection(res)
		}
	case <-tctx.Done():
		err = tctx.Err()
	}
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		timedOut = true
		err = fmt.Errorf("%w after %v", ErrAdapterTimeout, timeout)
	}
	d := r.now().Sub(start)

	e.mu.Lock()
	e.metrics.CurrentLoad--
	e.metrics.record(d, err == nil, timedOut, r.now())
	e.mu.Unlock()

	att := Attempt{Adapter: name, Success: err == nil, TimedOut: timedOut, Duration: d, Error: errString(err)}
	if err != nil {
		return nil, att, err
	}
	if res.Adapter == "" {
		res.Adapter = name
	}
	if res.Duration == 0 {
		res.Duration = d
	}
	return res, att, nil
}

func rejection(res *JobResult) error {
	if res == nil || len(res.Errors) == 0 {
		return ErrAdapterRejected
	}
	return fmt.Errorf("%w: %s", ErrAdapterRejected, strings.Join(res.Errors, "; "))
}

func (r *Router) emit(name string, payload any) {
	if r.bus != nil {
		r.bus.Emit(name, payload)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

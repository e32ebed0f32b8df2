package adapter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// monitor polls the adapter until ctx is cancelled by Deregister.
func (r *Router) monitor(ctx context.Context, e *entry) {
	defer close(e.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx, e)
		}
	}
}

// poll refreshes the status of e and announces health transitions.
func (r *Router) poll(ctx context.Context, e *entry) Status {
	pctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()
	st := e.adapter.Status(pctx)
	if st.CheckedAt.IsZero() {
		st.CheckedAt = r.now()
	}

	e.mu.Lock()
	changed := e.status.Healthy != st.Healthy
	e.status = st
	e.mu.Unlock()

	if changed {
		name := e.adapter.Name()
		if st.Healthy {
			r.logger.Info("adapter healthy again", zap.String("adapter", name))
		} else {
			r.logger.Warn("adapter unhealthy", zap.String("adapter", name), zap.String("error", st.Error))
		}
		r.emit(EventHealth, HealthEvent{Adapter: name, Healthy: st.Healthy, Error: st.Error})
	}
	return st
}

// CheckHealth polls every adapter concurrently and returns their statuses.
func (r *Router) CheckHealth(ctx context.Context) (map[string]Status, error) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var mu sync.Mutex
	out := make(map[string]Status, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			st := r.poll(gctx, e)
			mu.Lock()
			out[e.adapter.Name()] = st
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// Status returns the last known status of name.
func (r *Router) Status(name string) (Status, bool) {
	e := r.entry(name)
	if e == nil {
		return Status{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, true
}

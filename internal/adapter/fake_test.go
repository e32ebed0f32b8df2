package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
)

// fakeAdapter is a scriptable Adapter for router tests.
type fakeAdapter struct {
	name    string
	caps    Capabilities
	fail    atomic.Bool
	hang    atomic.Bool
	healthy atomic.Bool

	// initGate, when set, blocks Initialize until closed.
	initGate chan struct{}

	mu       sync.Mutex
	calls    int
	settings json.RawMessage
	cleaned  bool
}

func newFake(name string) *fakeAdapter {
	f := &fakeAdapter{name: name}
	f.healthy.Store(true)
	return f
}

func (f *fakeAdapter) Name() string               { return f.name }
func (f *fakeAdapter) Capabilities() Capabilities { return f.caps }

func (f *fakeAdapter) Initialize(_ context.Context, settings json.RawMessage) error {
	if f.initGate != nil {
		<-f.initGate
	}
	f.mu.Lock()
	f.settings = settings
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) Execute(ctx context.Context, job *Job) (*JobResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.hang.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.fail.Load() {
		return nil, errors.New(f.name + " unavailable")
	}
	return &JobResult{JobID: job.ID, Success: true, Output: job.Text, Applied: job.Changes}, nil
}

func (f *fakeAdapter) Status(context.Context) Status {
	ok := f.healthy.Load()
	st := Status{Healthy: ok, Ready: ok}
	if !ok {
		st.Error = "down"
	}
	return st
}

func (f *fakeAdapter) Metrics() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]float64{"calls": float64(f.calls)}
}

func (f *fakeAdapter) Cleanup(context.Context) error {
	f.mu.Lock()
	f.cleaned = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

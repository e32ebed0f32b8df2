// Package backends holds the built-in execution adapters.
package backends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"editguard/internal/adapter"
	"editguard/internal/diff"
	"editguard/internal/logging"
)

// MemorySettings configure the memory backend.
type MemorySettings struct {
	MaxTextLength int `json:"max_text_length,omitempty"`
}

// Memory applies changes to the job text in process.
type Memory struct {
	name   string
	logger *zap.Logger

	mu       sync.RWMutex
	settings MemorySettings
	ready    bool

	jobs     atomic.Int64
	applied  atomic.Int64
	rejected atomic.Int64
}

// NewMemory returns an uninitialized memory backend.
func NewMemory(name string, l *zap.Logger) *Memory {
	if name == "" {
		name = "memory"
	}
	return &Memory{name: name, logger: logging.For(l, logging.CategoryBackend).With(zap.String("adapter", name))}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Capabilities() adapter.Capabilities {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return adapter.Capabilities{Operations: adapter.AllOperations, MaxTextLength: m.settings.MaxTextLength}
}

func (m *Memory) Initialize(_ context.Context, raw json.RawMessage) error {
	var s MemorySettings
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("memory settings: %w", err)
		}
	}
	if s.MaxTextLength < 0 {
		return errors.New("memory settings: max_text_length must not be negative")
	}
	m.mu.Lock()
	m.settings = s
	m.ready = true
	m.mu.Unlock()
	return nil
}

// Execute applies every change or none. A change whose removed text does not
// match the job text rejects the whole job.
func (m *Memory) Execute(ctx context.Context, job *adapter.Job) (*adapter.JobResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	m.jobs.Add(1)

	out, err := diff.ApplyChanges(job.Text, job.Changes)
	res := &adapter.JobResult{JobID: job.ID, Adapter: m.name}
	if err != nil {
		m.rejected.Add(int64(len(job.Changes)))
		m.logger.Debug("job rejected", zap.String("job", job.ID), zap.Error(err))
		res.Rejected = job.Changes
		res.Errors = []string{err.Error()}
		res.Duration = time.Since(start)
		return res, nil
	}
	m.applied.Add(int64(len(job.Changes)))
	res.Success = true
	res.Output = out
	res.Applied = job.Changes
	res.Duration = time.Since(start)
	return res, nil
}

func (m *Memory) Status(context.Context) adapter.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := adapter.Status{Healthy: m.ready, Ready: m.ready, CheckedAt: time.Now()}
	if !m.ready {
		st.Error = "not initialized"
	}
	return st
}

func (m *Memory) Metrics() map[string]float64 {
	return map[string]float64{
		"jobs":     float64(m.jobs.Load()),
		"applied":  float64(m.applied.Load()),
		"rejected": float64(m.rejected.Load()),
	}
}

func (m *Memory) Cleanup(context.Context) error {
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
	return nil
}

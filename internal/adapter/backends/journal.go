package backends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"editguard/internal/adapter"
	"editguard/internal/diff"
	"editguard/internal/logging"
	"editguard/internal/store"
)

// Journal records every job in the store and returns the edited text.
type Journal struct {
	name   string
	store  *store.Store
	logger *zap.Logger

	ready    atomic.Bool
	recorded atomic.Int64
	failed   atomic.Int64
}

// NewJournal returns a journal backend writing to st.
func NewJournal(name string, st *store.Store, l *zap.Logger) *Journal {
	if name == "" {
		name = "journal"
	}
	return &Journal{name: name, store: st, logger: logging.For(l, logging.CategoryBackend).With(zap.String("adapter", name))}
}

func (j *Journal) Name() string { return j.name }

func (j *Journal) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{Operations: adapter.AllOperations}
}

func (j *Journal) Initialize(ctx context.Context, _ json.RawMessage) error {
	if j.store == nil {
		return errors.New("journal backend needs a store")
	}
	if err := j.store.Ping(ctx); err != nil {
		return fmt.Errorf("journal store: %w", err)
	}
	j.ready.Store(true)
	return nil
}

func (j *Journal) Execute(ctx context.Context, job *adapter.Job) (*adapter.JobResult, error) {
	start := time.Now()
	out, err := diff.ApplyChanges(job.Text, job.Changes)
	if err != nil {
		j.failed.Add(1)
		return &adapter.JobResult{JobID: job.ID, Adapter: j.name, Rejected: job.Changes, Errors: []string{err.Error()}}, nil
	}
	changes, err := json.Marshal(job.Changes)
	if err != nil {
		return nil, fmt.Errorf("encode changes: %w", err)
	}
	seq, err := j.store.AppendJournal(ctx, store.JournalEntry{JobID: job.ID, Adapter: j.name, Text: job.Text, Changes: changes})
	if err != nil {
		j.failed.Add(1)
		return nil, err
	}
	j.recorded.Add(1)
	j.logger.Debug("job recorded", zap.String("job", job.ID), zap.Int64("seq", seq))
	return &adapter.JobResult{
		JobID:    job.ID,
		Adapter:  j.name,
		Success:  true,
		Output:   out,
		Applied:  job.Changes,
		Duration: time.Since(start),
	}, nil
}

func (j *Journal) Status(ctx context.Context) adapter.Status {
	st := adapter.Status{CheckedAt: time.Now()}
	if !j.ready.Load() {
		st.Error = "not initialized"
		return st
	}
	if err := j.store.Ping(ctx); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Healthy, st.Ready = true, true
	return st
}

func (j *Journal) Metrics() map[string]float64 {
	return map[string]float64{
		"recorded": float64(j.recorded.Load()),
		"failed":   float64(j.failed.Load()),
	}
}

func (j *Journal) Cleanup(context.Context) error {
	j.ready.Store(false)
	return nil
}

package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"editguard/internal/adapter"
	"editguard/internal/adapter/backends"
	"editguard/internal/constraint"
	"editguard/internal/diff"
	"editguard/internal/events"
	"editguard/internal/faults"
	"editguard/internal/intake"
	"editguard/internal/mode"
	"editguard/internal/store"
	"editguard/internal/validate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// capitalize upper-cases the first letter, like a minimal grammar fixer.
var capitalize = CorrectorFunc(func(_ context.Context, text string, _ *constraint.Ruleset) (string, error) {
	if text == "" {
		return text, nil
	}
	return strings.ToUpper(text[:1]) + text[1:], nil
})

type harness struct {
	proc   *Processor
	router *adapter.Router
	bus    *events.Bus
	store  *store.Store
}

type harnessOpt func(*Deps, *Options)

func newHarness(t *testing.T, corrector Corrector, opts ...harnessOpt) *harness {
	t.Helper()
	ctx := context.Background()

	bus := events.New(events.Options{}, nil)
	t.Cleanup(bus.Close)

	router, err := adapter.NewRouter(adapter.Options{HealthInterval: time.Hour}, bus, nil)
	require.NoError(t, err)
	t.Cleanup(func() { router.Close(ctx) })
	require.NoError(t, router.Register(ctx, backends.NewMemory("memory", nil), 50, nil))

	modes := mode.NewRegistry(nil)
	require.NoError(t, modes.Register(mode.Mode{
		ID: "grammar",
		Rules: mode.Rules{
			Allowed:    []string{"Fix grammar and spelling"},
			Boundaries: []string{"Change no more than 10% of the text"},
		},
	}))

	deps := Deps{
		Modes:     modes,
		Compiler:  constraint.NewCompiler(nil),
		Validator: validate.New(nil),
		Engine:    diff.NewEngine(diff.DefaultOptions()),
		Router:    router,
		Corrector: corrector,
		Bus:       bus,
	}
	o := Options{
		Limits:  intake.Limits{DefaultMode: "grammar"},
		Compile: constraint.Options{Timeout: time.Second, FallbackPolicy: constraint.FallbackSequential},
	}
	for _, opt := range opts {
		opt(&deps, &o)
	}
	p, err := New(deps, o, nil)
	require.NoError(t, err)
	return &harness{proc: p, router: router, bus: bus, store: deps.Store}
}

func request(text string) intake.Request {
	return intake.Request{Instructions: "fix my grammar", SourceText: text}
}

func stageNames(res *Result) []string {
	var out []string
	for _, s := range res.Provenance {
		out = append(out, s.Name)
	}
	return out
}

func TestProcess_WorkedExample(t *testing.T) {
	h := newHarness(t, capitalize)
	res, err := h.proc.Process(context.Background(), request("i went to the store yesterday."))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Nil(t, res.Error)
	assert.Equal(t, "I went to the store yesterday.", res.Output)
	require.Len(t, res.Changes, 1)
	c := res.Changes[0]
	assert.Equal(t, diff.ChangeReplace, c.Kind)
	assert.Equal(t, 0, c.Start)
	assert.Equal(t, 1, c.End)
	assert.Equal(t, "0.0000", res.Metadata["change_ratio"])
	assert.Equal(t, "grammar", res.Metadata["mode_id"])
	assert.NotEmpty(t, res.Metadata["ruleset_digest"])
	assert.NotEmpty(t, res.IntakeID)

	assert.Equal(t, 1, res.Summary.TotalChanges)
	assert.Equal(t, map[diff.ChangeKind]int{diff.ChangeReplace: 1}, res.Summary.ByKind)
	assert.InDelta(t, 0.99, res.Summary.MeanConfidence, 1e-9)
	assert.Empty(t, res.Summary.Warnings)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, []string{StageIntake, StageMode, StageCompile, StagePreCheck, StageCorrect, StageDiff, StagePostCheck, StageDispatch}, stageNames(res))
	assert.Equal(t, "memory", res.Provenance[7].Backend)
}

func TestProcess_RatioExceededIsFatal(t *testing.T) {
	h := newHarness(t, CorrectorFunc(func(_ context.Context, text string, _ *constraint.Ruleset) (string, error) {
		return text + " And then a great deal more was added.", nil
	}))
	res, err := h.proc.Process(context.Background(), request("Short text."))
	require.Error(t, err)

	assert.False(t, res.Success)
	assert.Nil(t, res.Changes)
	assert.Empty(t, res.Output)
	require.NotNil(t, res.Error)
	assert.Equal(t, StagePostCheck, res.Error.Stage)
	assert.Equal(t, faults.CategoryConstraintViolation, res.Error.Category)
	assert.Equal(t, constraint.PredMaxChangeRatio, res.Error.Code)
	m, _ := h.router.Metrics("memory")
	assert.Zero(t, m.TotalRequests)
}

func TestProcess_FatalStages(t *testing.T) {
	h := newHarness(t, capitalize)
	tests := []struct {
		name     string
		req      intake.Request
		stage    string
		category faults.Category
	}{
		{"empty instructions", intake.Request{Instructions: " ", SourceText: "x"}, StageIntake, faults.CategoryInvalidInput},
		{"empty text", intake.Request{Instructions: "fix", SourceText: ""}, StageIntake, faults.CategoryInvalidInput},
		{"unknown mode", intake.Request{Instructions: "fix", SourceText: "x", ModeID: "haiku"}, StageMode, faults.CategoryUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.proc.Process(context.Background(), tt.req)
			require.Error(t, err)
			require.NotNil(t, res)
			assert.False(t, res.Success)
			assert.Empty(t, res.Changes)
			assert.Equal(t, tt.stage, res.Error.Stage)
			assert.Equal(t, tt.category, res.Error.Category)
			assert.True(t, faults.IsFatal(err))
		})
	}
}

func TestProcess_CorrectorFailure(t *testing.T) {
	h := newHarness(t, CorrectorFunc(func(context.Context, string, *constraint.Ruleset) (string, error) {
		return "", errors.New("model offline")
	}))
	res, err := h.proc.Process(context.Background(), request("some text"))
	require.Error(t, err)
	assert.Equal(t, StageCorrect, res.Error.Stage)
	assert.Equal(t, faults.CategoryBackendFailure, res.Error.Category)
	assert.True(t, res.Error.Retryable)
}

func TestProcess_DispatchExhausted(t *testing.T) {
	h := newHarness(t, capitalize)
	require.NoError(t, h.router.Deregister(context.Background(), "memory"))
	require.NoError(t, h.router.Register(context.Background(), backends.NewMemory("tiny", nil), 10,
		json.RawMessage(`{"max_text_length": 1}`)))

	res, err := h.proc.Process(context.Background(), request("i went home."))
	require.Error(t, err)
	assert.Equal(t, StageDispatch, res.Error.Stage)
	assert.Equal(t, faults.CategoryExhausted, res.Error.Category)
	assert.ErrorIs(t, err, adapter.ErrNoCandidates)
}

func TestProcess_NoChangesSkipsDispatch(t *testing.T) {
	h := newHarness(t, capitalize)
	res, err := h.proc.Process(context.Background(), request("Already fine."))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Changes)
	assert.Equal(t, "Already fine.", res.Output)
	assert.Equal(t, "no changes", res.Provenance[len(res.Provenance)-1].Note)
}

func TestProcess_SlowAndPersisted(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	var mu sync.Mutex
	clock := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	h := newHarness(t, capitalize, func(d *Deps, o *Options) {
		d.Store = st
		o.Persist = true
		o.SlowThreshold = time.Second
		o.Now = tick
	})

	var slow sync.WaitGroup
	slow.Add(1)
	h.bus.On(EventSlow, func(events.Event) error { slow.Done(); return nil })

	res, err := h.proc.Process(context.Background(), request("i went home."))
	require.NoError(t, err)
	require.NotEmpty(t, res.Summary.Warnings)
	assert.Contains(t, res.Summary.Warnings[len(res.Summary.Warnings)-1], "processing took")
	slow.Wait()

	rec, err := st.GetResult(context.Background(), res.ID)
	require.NoError(t, err)
	assert.True(t, rec.Success)
	assert.Equal(t, 1, rec.ChangeCount)
	assert.Equal(t, "grammar", rec.ModeID)

	var stored Result
	require.NoError(t, json.Unmarshal(rec.Payload, &stored))
	assert.Equal(t, res.Output, stored.Output)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{}, nil)
	assert.Error(t, err)
}

func TestProcess_EventsCarryCopies(t *testing.T) {
	h := newHarness(t, capitalize)

	got := make(chan *Result, 1)
	h.bus.On(EventDone, func(e events.Event) error {
		got <- e.Payload.(*Result)
		return nil
	})

	res, err := h.proc.Process(context.Background(), request("i went to the store yesterday."))
	require.NoError(t, err)
	sent := <-got

	assert.NotSame(t, res, sent)
	assert.Equal(t, res.ID, sent.ID)

	res.Changes[0].Inserted = "X"
	res.Metadata["mode_id"] = "changed"
	res.Summary.Warnings = append(res.Summary.Warnings, "late")
	res.Provenance[0].Note = "changed"

	assert.Equal(t, "I", sent.Changes[0].Inserted)
	assert.Equal(t, "grammar", sent.Metadata["mode_id"])
	assert.Empty(t, sent.Summary.Warnings)
	assert.Empty(t, sent.Provenance[0].Note)
}

func TestResult_Clone(t *testing.T) {
	r := &Result{
		ID:        "r1",
		Conflicts: []Conflict{{Code: "c", Constraints: []string{"a", "b"}}},
		Summary:   Summary{ByKind: map[diff.ChangeKind]int{diff.ChangeInsert: 2}},
		Error:     &ErrorInfo{Stage: StageDispatch, Attempts: []adapter.Attempt{{Adapter: "memory"}}},
	}
	c := r.Clone()
	require.Equal(t, r, c)

	c.Conflicts[0].Constraints[0] = "z"
	c.Summary.ByKind[diff.ChangeInsert] = 9
	c.Error.Attempts[0].Adapter = "other"

	assert.Equal(t, "a", r.Conflicts[0].Constraints[0])
	assert.Equal(t, 2, r.Summary.ByKind[diff.ChangeInsert])
	assert.Equal(t, "memory", r.Error.Attempts[0].Adapter)
}

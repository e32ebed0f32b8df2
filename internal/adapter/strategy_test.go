package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editguard/internal/constraint"
	"editguard/internal/diff"
)

func names(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	return out
}

func TestPriorityStrategy(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job := &Job{Constraints: []constraint.Constraint{{Kind: constraint.KindGrammarOnly}, {Kind: constraint.KindLengthLimit}}}

	cands := []Candidate{
		{Name: "flaky", Metrics: AdapterMetrics{Priority: 50, TotalRequests: 10, Successes: 5}},
		{Name: "steady", Metrics: AdapterMetrics{Priority: 20, TotalRequests: 10, Successes: 10}},
		{Name: "busy", Metrics: AdapterMetrics{Priority: 40, CurrentLoad: 3}},
		{Name: "fit", Metrics: AdapterMetrics{Priority: 10, LastUsed: now.Add(-time.Minute)},
			caps: Capabilities{Constraints: []constraint.Kind{constraint.KindGrammarOnly, constraint.KindLengthLimit}}},
	}
	out := priorityStrategy{}.Order(job, cands, now)

	// fit: 10+100+5+10, steady: 120, busy: 40+100-30, flaky: 50+50
	assert.Equal(t, []string{"fit", "steady", "busy", "flaky"}, names(out))
	assert.InDelta(t, 125.0, out[0].Score, 1e-9)
}

func TestPriorityStrategy_LatencyPenaltyCapped(t *testing.T) {
	cands := []Candidate{
		{Name: "slow", Metrics: AdapterMetrics{Priority: 60, AvgLatency: time.Hour}},
		{Name: "quick", Metrics: AdapterMetrics{Priority: 0, AvgLatency: time.Second}},
	}
	out := priorityStrategy{}.Order(&Job{}, cands, time.Now())
	require.Len(t, out, 2)
	assert.InDelta(t, 110.0, out[0].Score, 1e-9) // 60 + 100 - 50
	assert.Equal(t, "slow", out[0].Name)
	assert.InDelta(t, 90.0, out[1].Score, 1e-9)
}

func TestLoadBalancedStrategy(t *testing.T) {
	cands := []Candidate{
		{Name: "loaded", Metrics: AdapterMetrics{Priority: 99, CurrentLoad: 2}},
		{Name: "idle", Metrics: AdapterMetrics{Priority: 1}},
	}
	out := loadBalancedStrategy{}.Order(&Job{}, cands, time.Now())
	assert.Equal(t, []string{"idle", "loaded"}, names(out))
}

func TestRoundRobinStrategy(t *testing.T) {
	s := &roundRobinStrategy{}
	mk := func() []Candidate { return []Candidate{{Name: "c"}, {Name: "a"}, {Name: "b"}} }

	assert.Equal(t, []string{"a", "b", "c"}, names(s.Order(nil, mk(), time.Time{})))
	assert.Equal(t, []string{"b", "c", "a"}, names(s.Order(nil, mk(), time.Time{})))
	assert.Equal(t, []string{"c", "a", "b"}, names(s.Order(nil, mk(), time.Time{})))
	assert.Equal(t, []string{"a", "b", "c"}, names(s.Order(nil, mk(), time.Time{})))
	assert.Empty(t, s.Order(nil, nil, time.Time{}))
}

func TestNewStrategy(t *testing.T) {
	for _, name := range []string{"", StrategyPriority, StrategyRoundRobin, StrategyLoadBalanced} {
		s, err := NewStrategy(name)
		require.NoError(t, err)
		if name != "" {
			assert.Equal(t, name, s.Name())
		}
	}
	_, err := NewStrategy("weighted")
	assert.Error(t, err)
}

func TestCapabilitiesSupports(t *testing.T) {
	job := &Job{
		Text:        "héllo",
		Changes:     []diff.Change{{Kind: diff.ChangeInsert}},
		Constraints: []constraint.Constraint{{Kind: constraint.KindLengthLimit, Priority: 95}},
		Timeout:     10 * time.Second,
	}
	tests := []struct {
		name string
		caps Capabilities
		ok   bool
	}{
		{"unrestricted", Capabilities{}, true},
		{"operation missing", Capabilities{Operations: []diff.ChangeKind{diff.ChangeReplace}}, false},
		{"operation present", Capabilities{Operations: AllOperations}, true},
		{"length in runes", Capabilities{MaxTextLength: 5}, true},
		{"too long", Capabilities{MaxTextLength: 4}, false},
		{"high priority unsupported", Capabilities{Constraints: []constraint.Kind{constraint.KindGrammarOnly}}, false},
		{"high priority supported", Capabilities{Constraints: []constraint.Kind{constraint.KindLengthLimit}}, true},
		{"timeout ceiling", Capabilities{MaxTimeout: 5 * time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, why := tt.caps.Supports(job)
			assert.Equal(t, tt.ok, ok, why)
		})
	}
}

func TestMetricsRecord(t *testing.T) {
	var m AdapterMetrics
	assert.Equal(t, 1.0, m.SuccessRate())
	at := time.Now()
	m.record(100*time.Millisecond, true, false, at)
	m.record(300*time.Millisecond, false, true, at)
	assert.EqualValues(t, 2, m.TotalRequests)
	assert.EqualValues(t, 1, m.Timeouts)
	assert.Equal(t, 200*time.Millisecond, m.AvgLatency)
	assert.Equal(t, 0.5, m.SuccessRate())
}

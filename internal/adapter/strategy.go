package adapter

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"
)

// Strategy names.
const (
	StrategyPriority     = "priority"
	StrategyRoundRobin   = "round_robin"
	StrategyLoadBalanced = "load_balanced"
)

// Scoring weights for the priority and load-balanced strategies.
const (
	successWeight      = 100.0
	latencyPenaltyPer  = 100 * time.Millisecond
	maxLatencyPenalty  = 50.0
	loadPenaltyPerJob  = 10.0
	recencyWindow      = 5 * time.Minute
	recencyBonus       = 5.0
	compatibilityBonus = 10.0
)

// Candidate is a compatible adapter with its strategy score.
type Candidate struct {
	Name    string         `json:"name"`
	Score   float64        `json:"score"`
	Metrics AdapterMetrics `json:"metrics"`

	caps Capabilities
}

// Strategy orders compatible candidates for a job.
type Strategy interface {
	Name() string
	Order(job *Job, cands []Candidate, now time.Time) []Candidate
}

// NewStrategy returns the strategy called name.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "", StrategyPriority:
		return priorityStrategy{}, nil
	case StrategyRoundRobin:
		return &roundRobinStrategy{}, nil
	case StrategyLoadBalanced:
		return loadBalancedStrategy{}, nil
	}
	return nil, fmt.Errorf("unknown routing strategy %q", name)
}

func latencyPenalty(m AdapterMetrics) float64 {
	return math.Min(float64(m.AvgLatency)/float64(latencyPenaltyPer), maxLatencyPenalty)
}

func loadPenalty(m AdapterMetrics) float64 {
	return float64(m.CurrentLoad) * loadPenaltyPerJob
}

// byScore sorts descending by score, then by name for determinism.
func byScore(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Name < cands[j].Name
	})
}

type priorityStrategy struct{}

func (priorityStrategy) Name() string { return StrategyPriority }

func (priorityStrategy) Order(job *Job, cands []Candidate, now time.Time) []Candidate {
	for i := range cands {
		m := cands[i].Metrics
		score := float64(m.Priority) + m.SuccessRate()*successWeight - latencyPenalty(m) - loadPenalty(m)
		if !m.LastUsed.IsZero() && now.Sub(m.LastUsed) <= recencyWindow {
			score += recencyBonus
		}
		score += cands[i].caps.compatibility(job) * compatibilityBonus
		cands[i].Score = score
	}
	byScore(cands)
	return cands
}

type loadBalancedStrategy struct{}

func (loadBalancedStrategy) Name() string { return StrategyLoadBalanced }

func (loadBalancedStrategy) Order(_ *Job, cands []Candidate, _ time.Time) []Candidate {
	for i := range cands {
		m := cands[i].Metrics
		cands[i].Score = m.SuccessRate()*successWeight - loadPenalty(m) - latencyPenalty(m)
	}
	byScore(cands)
	return cands
}

// roundRobinStrategy rotates a cursor over the candidates sorted by name.
type roundRobinStrategy struct {
	cursor atomic.Uint64
}

func (*roundRobinStrategy) Name() string { return StrategyRoundRobin }

func (s *roundRobinStrategy) Order(_ *Job, cands []Candidate, _ time.Time) []Candidate {
	if len(cands) == 0 {
		return cands
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].Name < cands[j].Name })
	start := int((s.cursor.Add(1) - 1) % uint64(len(cands)))
	out := make([]Candidate, 0, len(cands))
	out = append(out, cands[start:]...)
	out = append(out, cands[:start]...)
	for i := range out {
		out[i].Score = float64(len(out) - i)
	}
	return out
}

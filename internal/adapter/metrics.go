package adapter

import "time"

// AdapterMetrics are rolling counters kept by the router per adapter.
type AdapterMetrics struct {
	TotalRequests int64         `json:"total_requests"`
	Successes     int64         `json:"successes"`
	Failures      int64         `json:"failures"`
	Timeouts      int64         `json:"timeouts"`
	AvgLatency    time.Duration `json:"avg_latency"`
	CurrentLoad   int           `json:"current_load"`
	LastUsed      time.Time     `json:"last_used"`
	Priority      int           `json:"priority"`
}

// SuccessRate is successes over requests, or 1 before the first request.
func (m AdapterMetrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 1
	}
	return float64(m.Successes) / float64(m.TotalRequests)
}

// record folds one finished attempt into m. Callers hold the entry lock.
func (m *AdapterMetrics) record(d time.Duration, ok, timedOut bool, at time.Time) {
	m.TotalRequests++
	if ok {
		m.Successes++
	} else {
		m.Failures++
	}
	if timedOut {
		m.Timeouts++
	}
	m.AvgLatency += (d - m.AvgLatency) / time.Duration(m.TotalRequests)
	m.LastUsed = at
}

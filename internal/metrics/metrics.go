package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects in-process totals for the run report
type Metrics struct {
	StepsCreated atomic.Int64
	StepsReused  atomic.Int64
	StepsSkipped atomic.Int64
	StepsFailed  atomic.Int64

	GatewaysSucceeded atomic.Int64
	GatewaysFailed    atomic.Int64

	mu        sync.Mutex
	byStep    map[string]*StepCounts
	startTime time.Time
}

// StepCounts tracks outcomes of a single step name
type StepCounts struct {
	Created int64 `json:"created" yaml:"created"`
	Reused  int64 `json:"reused" yaml:"reused"`
	Skipped int64 `json:"skipped" yaml:"skipped"`
	Failed  int64 `json:"failed" yaml:"failed"`
}

// Global metrics instance
var global = newMetrics()

func newMetrics() *Metrics {
	return &Metrics{byStep: make(map[string]*StepCounts), startTime: time.Now()}
}

// Global returns the global metrics instance
func Global() *Metrics {
	return global
}

// Reset discards all collected totals.
func Reset() {
	global = newMetrics()
}

// RecordStep records one step outcome in both the in-process totals and Prometheus.
// outcome is one of created, reused, skipped or failed.
func RecordStep(step, outcome string) {
	global.recordStep(step, outcome)
	RecordPrometheusStep(step, outcome)
}

func (m *Metrics) recordStep(step, outcome string) {
	switch outcome {
	case "created":
		m.StepsCreated.Add(1)
	case "reused":
		m.StepsReused.Add(1)
	case "skipped":
		m.StepsSkipped.Add(1)
	case "failed":
		m.StepsFailed.Add(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.byStep[step]
	if !ok {
		sc = &StepCounts{}
		m.byStep[step] = sc
	}
	switch outcome {
	case "created":
		sc.Created++
	case "reused":
		sc.Reused++
	case "skipped":
		sc.Skipped++
	case "failed":
		sc.Failed++
	}
}

// RecordGateway records the final result of one gateway.
func RecordGateway(protocol, state string, d time.Duration, success bool) {
	if success {
		global.GatewaysSucceeded.Add(1)
	} else {
		global.GatewaysFailed.Add(1)
	}
	RecordPrometheusGateway(protocol, state, d.Milliseconds(), success)
}

// Snapshot is a point-in-time copy of the totals
type Snapshot struct {
	Created           int64                 `json:"created" yaml:"created"`
	Reused            int64                 `json:"reused" yaml:"reused"`
	Skipped           int64                 `json:"skipped" yaml:"skipped"`
	Failed            int64                 `json:"failed" yaml:"failed"`
	GatewaysSucceeded int64                 `json:"gateways_succeeded" yaml:"gateways_succeeded"`
	GatewaysFailed    int64                 `json:"gateways_failed" yaml:"gateways_failed"`
	Steps             map[string]StepCounts `json:"steps" yaml:"steps"`
	ElapsedMs         int64                 `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// Snapshot returns the current totals
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	steps := make(map[string]StepCounts, len(m.byStep))
	for k, v := range m.byStep {
		steps[k] = *v
	}
	m.mu.Unlock()

	return Snapshot{
		Created:           m.StepsCreated.Load(),
		Reused:            m.StepsReused.Load(),
		Skipped:           m.StepsSkipped.Load(),
		Failed:            m.StepsFailed.Load(),
		GatewaysSucceeded: m.GatewaysSucceeded.Load(),
		GatewaysFailed:    m.GatewaysFailed.Load(),
		Steps:             steps,
		ElapsedMs:         time.Since(m.startTime).Milliseconds(),
	}
}

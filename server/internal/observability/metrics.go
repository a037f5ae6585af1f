package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates counters for the turn pipeline.
type Metrics struct {
	mu sync.Mutex

	turnsTotal  atomic.Int64
	turnsFailed atomic.Int64

	// Per-stage metrics keyed by stage name.
	stageMetrics map[string]*StageMetrics
}

// StageMetrics represents metrics for a single pipeline stage.
type StageMetrics struct {
	count         atomic.Int64
	errorCount    atomic.Int64
	totalDuration atomic.Int64 // milliseconds
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		stageMetrics: make(map[string]*StageMetrics),
	}
}

// Global metrics instance.
var globalMetrics = NewMetrics()

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordTurn records a processed turn.
func (m *Metrics) RecordTurn() {
	m.turnsTotal.Add(1)
}

// RecordTurnFailure records a failed turn.
func (m *Metrics) RecordTurnFailure() {
	m.turnsFailed.Add(1)
}

// RecordStage records one stage execution.
func (m *Metrics) RecordStage(stage string, duration time.Duration, err error) {
	sm := m.getStageMetrics(stage)
	sm.count.Add(1)
	sm.totalDuration.Add(duration.Milliseconds())
	if err != nil {
		sm.errorCount.Add(1)
	}
}

// Snapshot is a point-in-time view of collected metrics.
type Snapshot struct {
	TurnsTotal  int64                    `json:"turns_total"`
	TurnsFailed int64                    `json:"turns_failed"`
	Stages      map[string]StageSnapshot `json:"stages"`
}

// StageSnapshot is a point-in-time view of one stage's metrics.
type StageSnapshot struct {
	Count         int64 `json:"count"`
	Errors        int64 `json:"errors"`
	AvgDurationMs int64 `json:"avg_duration_ms"`
}

// Snapshot returns a copy of the current metric values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		TurnsTotal:  m.turnsTotal.Load(),
		TurnsFailed: m.turnsFailed.Load(),
		Stages:      make(map[string]StageSnapshot, len(m.stageMetrics)),
	}
	for name, sm := range m.stageMetrics {
		count := sm.count.Load()
		var avg int64
		if count > 0 {
			avg = sm.totalDuration.Load() / count
		}
		snap.Stages[name] = StageSnapshot{
			Count:         count,
			Errors:        sm.errorCount.Load(),
			AvgDurationMs: avg,
		}
	}
	return snap
}

func (m *Metrics) getStageMetrics(stage string) *StageMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	sm, ok := m.stageMetrics[stage]
	if !ok {
		sm = &StageMetrics{}
		m.stageMetrics[stage] = sm
	}
	return sm
}

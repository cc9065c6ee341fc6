package paginate

import "time"

// sampleEvery is how often (in batches) a rolling timing sample is kept,
// per spec.md §4.6 ("one point every 10 batches").
const sampleEvery = 10

// Recorder is an optional sink that mirrors every recorded batch duration,
// used by the telemetry package to feed a Prometheus histogram without
// PerformanceTracker depending on Prometheus directly.
type Recorder interface {
	RecordBatch(entityName string, strategy Strategy, d time.Duration)
}

// PerformanceTracker implements spec.md §4.8's per-entity rolling counter:
// count/sum/first/last plus a coarse trend classification over samples
// taken every tenth batch.
type PerformanceTracker struct {
	entityName string
	recorder   Recorder

	count   uint64
	sumMs   float64
	firstMs float64
	lastMs  float64
	samples []float64
}

// NewPerformanceTracker creates a tracker for one entity ("Nodes" or
// "Relationships"). recorder may be nil.
func NewPerformanceTracker(entityName string, recorder Recorder) *PerformanceTracker {
	return &PerformanceTracker{entityName: entityName, recorder: recorder}
}

// RecordBatch updates count/sum/first/last and, every tenth batch, pushes a
// rolling sample for trend detection.
func (t *PerformanceTracker) RecordBatch(strategy Strategy, d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	if t.count == 0 {
		t.firstMs = ms
	}
	t.lastMs = ms
	t.sumMs += ms
	t.count++
	if t.count%sampleEvery == 0 {
		t.samples = append(t.samples, ms)
	}
	if t.recorder != nil {
		t.recorder.RecordBatch(t.entityName, strategy, d)
	}
}

// Metrics is the inlined "pagination_performance" shape from spec.md §4.9.
type Metrics struct {
	EntityName   string   `json:"entity_name"`
	Strategy     Strategy `json:"strategy"`
	BatchCount   uint64   `json:"batch_count"`
	AvgMsPerBatch float64 `json:"avg_ms_per_batch"`
	Trend        string   `json:"trend"`
}

// GetMetrics computes the average ms/batch and a coarse trend
// ("constant"/"linear"/"exponential") from first/middle/last samples, per
// spec.md §4.8.
func (t *PerformanceTracker) GetMetrics(strategy Strategy) Metrics {
	m := Metrics{EntityName: t.entityName, Strategy: strategy, BatchCount: t.count}
	if t.count > 0 {
		m.AvgMsPerBatch = t.sumMs / float64(t.count)
	}
	m.Trend = t.trend()
	return m
}

func (t *PerformanceTracker) trend() string {
	n := len(t.samples)
	if n < 3 {
		return "constant"
	}
	first := t.samples[0]
	middle := t.samples[n/2]
	last := t.samples[n-1]

	within20Pct := func(a, b float64) bool {
		if a == 0 {
			return b == 0
		}
		ratio := b / a
		return ratio >= 0.8 && ratio <= 1.2
	}
	if within20Pct(first, middle) && within20Pct(middle, last) {
		return "constant"
	}

	ratio := func(a, b float64) float64 {
		if a == 0 {
			return 0
		}
		return b / a
	}
	if ratio(first, middle) > 1.3 && ratio(middle, last) > 1.3 {
		return "exponential"
	}
	return "linear"
}

package etl

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics accumulates the counters of one run. All methods are safe for
// concurrent use.
type Metrics struct {
	recordsRead        atomic.Int64
	recordsTransformed atomic.Int64
	recordsRejected    atomic.Int64
	recordsLoaded      atomic.Int64
	recordsQuarantined atomic.Int64
	qualityScoreSum    atomic.Int64
	batchesAttempted   atomic.Int64
	batchesRetried     atomic.Int64
	batchesQuarantined atomic.Int64

	mu    sync.Mutex
	start time.Time
	end   time.Time
	now   func() time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{now: time.Now}
}

// Start stamps the run start time.
func (m *Metrics) Start() {
	m.mu.Lock()
	m.start = m.now()
	m.mu.Unlock()
}

// Finish stamps the run end time.
func (m *Metrics) Finish() {
	m.mu.Lock()
	m.end = m.now()
	m.mu.Unlock()
}

func (m *Metrics) RecordRead() { m.recordsRead.Add(1) }

// RecordTransformed counts an accepted record and its quality score.
func (m *Metrics) RecordTransformed(score int) {
	m.recordsTransformed.Add(1)
	m.qualityScoreSum.Add(int64(score))
}

func (m *Metrics) RecordRejected() { m.recordsRejected.Add(1) }

func (m *Metrics) BatchAttempted() { m.batchesAttempted.Add(1) }

func (m *Metrics) BatchRetried() { m.batchesRetried.Add(1) }

// BatchCommitted counts the records of a committed batch as loaded.
func (m *Metrics) BatchCommitted(records int) { m.recordsLoaded.Add(int64(records)) }

// BatchQuarantined counts a quarantined batch and its records.
func (m *Metrics) BatchQuarantined(records int) {
	m.batchesQuarantined.Add(1)
	m.recordsQuarantined.Add(int64(records))
}

// Snapshot returns an immutable copy of the counters at call time.
func (m *Metrics) Snapshot() RunMetrics {
	m.mu.Lock()
	start, end := m.start, m.end
	m.mu.Unlock()

	return RunMetrics{
		RecordsRead:        m.recordsRead.Load(),
		RecordsTransformed: m.recordsTransformed.Load(),
		RecordsRejected:    m.recordsRejected.Load(),
		RecordsLoaded:      m.recordsLoaded.Load(),
		RecordsQuarantined: m.recordsQuarantined.Load(),
		TotalQualityScore:  m.qualityScoreSum.Load(),
		BatchesAttempted:   m.batchesAttempted.Load(),
		BatchesRetried:     m.batchesRetried.Load(),
		BatchesQuarantined: m.batchesQuarantined.Load(),
		StartTime:          start,
		EndTime:            end,
		SnapshotAt:         m.now(),
	}
}

// RunMetrics is a point-in-time copy of a run's counters.
type RunMetrics struct {
	RecordsRead        int64     `json:"records_read"`
	RecordsTransformed int64     `json:"records_transformed"`
	RecordsRejected    int64     `json:"records_rejected"`
	RecordsLoaded      int64     `json:"records_loaded"`
	RecordsQuarantined int64     `json:"records_quarantined"`
	TotalQualityScore  int64     `json:"total_quality_score_sum"`
	BatchesAttempted   int64     `json:"batches_attempted"`
	BatchesRetried     int64     `json:"batches_retried"`
	BatchesQuarantined int64     `json:"batches_quarantined"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time,omitzero"`
	SnapshotAt         time.Time `json:"snapshot_at"`
}

// Elapsed is the run duration, measured to the snapshot time while running.
func (r RunMetrics) Elapsed() time.Duration {
	if r.StartTime.IsZero() {
		return 0
	}
	if !r.EndTime.IsZero() {
		return r.EndTime.Sub(r.StartTime)
	}
	return r.SnapshotAt.Sub(r.StartTime)
}

// Throughput is records loaded per elapsed second.
func (r RunMetrics) Throughput() float64 {
	secs := r.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.RecordsLoaded) / secs
}

// AverageQuality is the mean quality score of transformed records, or 0.
func (r RunMetrics) AverageQuality() float64 {
	if r.RecordsTransformed == 0 {
		return 0
	}
	return float64(r.TotalQualityScore) / float64(r.RecordsTransformed)
}

// LogValue implements slog.LogValuer for structured logging.
func (r RunMetrics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("read", r.RecordsRead),
		slog.Int64("transformed", r.RecordsTransformed),
		slog.Int64("rejected", r.RecordsRejected),
		slog.Int64("loaded", r.RecordsLoaded),
		slog.Int64("quarantined", r.RecordsQuarantined),
		slog.Int64("batches", r.BatchesAttempted),
		slog.Int64("batches_retried", r.BatchesRetried),
		slog.Int64("batches_quarantined", r.BatchesQuarantined),
		slog.Float64("avg_quality", r.AverageQuality()),
		slog.Float64("throughput", r.Throughput()),
	)
}

package etl

import (
	"slices"
	"sync"
)

// State is a pipeline lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateTransforming State = "transforming"
	StateLoading      State = "loading"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

func (s State) rank() int {
	switch s {
	case StateIdle:
		return 0
	case StateExtracting:
		return 1
	case StateTransforming:
		return 2
	case StateLoading:
		return 3
	default:
		return 4
	}
}

// QuarantinedBatch is a batch that could not be committed, kept in full for
// inspection.
type QuarantinedBatch struct {
	Seq      int64                `json:"seq"`
	Reason   string               `json:"reason"`
	Attempts int                  `json:"attempts"`
	Records  []*TransformedRecord `json:"records"`
}

// QuarantineLog collects quarantined batches from concurrent loaders.
type QuarantineLog struct {
	mu      sync.Mutex
	batches []QuarantinedBatch
}

func (q *QuarantineLog) Add(b QuarantinedBatch) {
	q.mu.Lock()
	q.batches = append(q.batches, b)
	q.mu.Unlock()
}

// List returns the quarantined batches ordered by sequence number.
func (q *QuarantineLog) List() []QuarantinedBatch {
	q.mu.Lock()
	out := slices.Clone(q.batches)
	q.mu.Unlock()
	slices.SortFunc(out, func(a, b QuarantinedBatch) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return out
}

// RejectionLog collects rejected records in arrival order, keeping at most
// limit of them and counting the rest.
type RejectionLog struct {
	mu      sync.Mutex
	limit   int
	records []RejectedRecord
	dropped int64
}

func NewRejectionLog(limit int) *RejectionLog {
	return &RejectionLog{limit: limit}
}

func (l *RejectionLog) Add(r RejectedRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) >= l.limit {
		l.dropped++
		return
	}
	l.records = append(l.records, r)
}

// List returns the retained rejections and how many were left out.
func (l *RejectionLog) List() ([]RejectedRecord, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.records), l.dropped
}

// Report is produced when a run reaches a terminal state.
type Report struct {
	RunID             string             `json:"run_id"`
	State             State              `json:"state"`
	Error             string             `json:"error,omitempty"`
	Metrics           RunMetrics         `json:"metrics"`
	Throughput        float64            `json:"throughput_records_per_sec"`
	AverageQuality    float64            `json:"average_quality_score"`
	Quarantined       []QuarantinedBatch `json:"quarantined_batches"`
	Rejected          []RejectedRecord   `json:"rejected_records"`
	RejectedTruncated int64              `json:"rejected_truncated,omitempty"`
}

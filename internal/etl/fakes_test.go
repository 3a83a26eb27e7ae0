package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/config"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
)

var runAt = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return runAt }

func customerRaw(id int, name, email, signup, revenue, segment string) RawRecord {
	return RawRecord{
		models.FieldCustomerID:    strconv.Itoa(id),
		models.FieldName:          name,
		models.FieldEmail:         email,
		models.FieldRegion:        "EU",
		models.FieldSegment:       segment,
		models.FieldStatus:        "active",
		models.FieldSignupDate:    signup,
		models.FieldAnnualRevenue: revenue,
	}
}

func validRaw(id int) RawRecord {
	return customerRaw(id, fmt.Sprintf("Customer %d", id), fmt.Sprintf("c%d@example.com", id), "2023-01-01", "1000", "SMB")
}

func testPipelineConfig() *config.Pipeline {
	cfg := config.DefaultPipeline()
	cfg.BackoffBaseMs = 1
	cfg.BackoffMaxMs = 5
	cfg.SinkTimeoutMs = 1000
	return cfg
}

// sliceSource replays records. failAt >= 0 makes the read at that position
// fail once with failErr; onRead runs after every successful read.
type sliceSource struct {
	records []RawRecord
	openErr error
	failAt  int
	failErr error
	onRead  func(n int)
	block   bool
}

func newSliceSource(records ...RawRecord) *sliceSource {
	return &sliceSource{records: records, failAt: -1}
}

func (s *sliceSource) Open(context.Context) (RecordStream, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &sliceStream{src: s}, nil
}

type sliceStream struct {
	src    *sliceSource
	pos    int
	failed bool
}

func (s *sliceStream) Next(ctx context.Context) (RawRecord, error) {
	if s.src.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.pos == s.src.failAt && !s.failed {
		s.failed = true
		return nil, s.src.failErr
	}
	if s.pos >= len(s.src.records) {
		return nil, io.EOF
	}
	rec := s.src.records[s.pos]
	s.pos++
	if s.src.onRead != nil {
		s.src.onRead(s.pos)
	}
	return rec, nil
}

func (s *sliceStream) Close() error { return nil }

// memSink keeps committed batches in memory. fail decides the outcome of
// each write attempt; attempt counts from 1 per batch.
type memSink struct {
	beginErr  error
	mu        sync.Mutex
	committed map[int64][]int64
	attempts  map[int64]int
	rollbacks int
	fail      func(batch *Batch, attempt int) error
	writeHook func(ctx context.Context) error
}

func newMemSink() *memSink {
	return &memSink{committed: map[int64][]int64{}, attempts: map[int64]int{}}
}

type memTx struct {
	batch *Batch
}

func (m *memSink) Begin(context.Context) (Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return &memTx{}, nil
}

func (m *memSink) WriteBatch(ctx context.Context, tx Tx, batch *Batch) error {
	m.mu.Lock()
	m.attempts[batch.Seq]++
	attempt := m.attempts[batch.Seq]
	m.mu.Unlock()

	if m.writeHook != nil {
		if err := m.writeHook(ctx); err != nil {
			return err
		}
	}
	if m.fail != nil {
		if err := m.fail(batch, attempt); err != nil {
			return err
		}
	}
	tx.(*memTx).batch = batch
	return nil
}

func (m *memSink) Commit(_ context.Context, tx Tx) error {
	b := tx.(*memTx).batch
	if b == nil {
		return Terminal(errors.New("commit without write"))
	}
	ids := make([]int64, b.Len())
	for i, r := range b.Records {
		ids[i] = r.CustomerID
	}
	m.mu.Lock()
	m.committed[b.Seq] = ids
	m.mu.Unlock()
	return nil
}

func (m *memSink) Rollback(context.Context, Tx) error {
	m.mu.Lock()
	m.rollbacks++
	m.mu.Unlock()
	return nil
}

func (m *memSink) seqs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.committed))
	for seq := range m.committed {
		out = append(out, seq)
	}
	slices.Sort(out)
	return out
}

func (m *memSink) loadedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for _, ids := range m.committed {
		out = append(out, ids...)
	}
	slices.Sort(out)
	return out
}

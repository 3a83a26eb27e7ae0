package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/config"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
)

// ErrRunCancelled is wrapped by the error Run returns when a run was cut
// short by cancellation, a run timeout or a mid-stream source failure.
var ErrRunCancelled = errors.New("etl: run cancelled")

// Pipeline orchestrates a single run: Source -> Transformer -> Batcher -> Loader.
// Create a new Pipeline for every run; all run state lives in it.
type Pipeline struct {
	source Source
	sink   Sink
	cfg    *config.Pipeline

	runID   string
	now     func() time.Time
	jitter  func(time.Duration) time.Duration
	started atomic.Bool

	mu    sync.Mutex
	state State

	cancelRun context.CancelCauseFunc

	metrics    *Metrics
	quarantine *QuarantineLog
	rejections *RejectionLog
}

func NewPipeline(source Source, sink Sink, cfg *config.Pipeline) *Pipeline {
	return &Pipeline{
		source:     source,
		sink:       sink,
		cfg:        cfg,
		runID:      uuid.NewString(),
		now:        time.Now,
		state:      StateIdle,
		metrics:    NewMetrics(),
		quarantine: &QuarantineLog{},
	}
}

// WithClock sets the clock that provides the run timestamp and processed_at.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	p.metrics.now = now
	return p
}

// WithJitter replaces the retry jitter function (FullJitter by default).
func (p *Pipeline) WithJitter(jitter func(time.Duration) time.Duration) *Pipeline {
	p.jitter = jitter
	return p
}

// RunID identifies this run in logs and reports.
func (p *Pipeline) RunID() string { return p.runID }

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Metrics returns a snapshot of the run counters.
func (p *Pipeline) Metrics() RunMetrics { return p.metrics.Snapshot() }

// transition moves the state forward. Backward moves and moves out of a
// terminal state are ignored.
func (p *Pipeline) transition(to State) {
	p.mu.Lock()
	from := p.state
	if from.Terminal() || (!to.Terminal() && to.rank() <= from.rank()) {
		p.mu.Unlock()
		return
	}
	p.state = to
	p.mu.Unlock()

	logger.With("run_id", p.runID).Info("pipeline state changed", "from", string(from), "to", string(to))
}

// StartRun executes one run with a fresh pipeline, so repeated triggers never
// share run state.
func StartRun(ctx context.Context, cfg *config.Pipeline, source Source, sink Sink) (*Report, error) {
	return NewPipeline(source, sink, cfg).Run(ctx)
}

// Run executes the pipeline and returns the final report. The report is
// returned for every terminal state; the error is nil only on Completed.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, errors.New("etl: pipeline already run")
	}
	p.metrics.Start()

	if p.cfg == nil {
		return p.fail(&config.ValidationError{Field: "config", Reason: "missing"})
	}
	if err := p.cfg.Validate(); err != nil {
		return p.fail(fmt.Errorf("configuration: %w", err))
	}
	p.rejections = NewRejectionLog(p.cfg.MaxReportRejections)

	logger.Infof("Starting pipeline run %s. Batch Size: %d, Concurrency: %d, Transform Workers: %d",
		p.runID, p.cfg.BatchSize, p.cfg.Concurrency, p.cfg.Workers())

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	p.cancelRun = cancelRun
	if timeout := p.cfg.RunTimeout(); timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeoutCause(runCtx, timeout,
			fmt.Errorf("run timeout of %s exceeded", timeout))
		defer cancelTimeout()
	}

	p.transition(StateExtracting)
	stream, err := p.source.Open(runCtx)
	if err != nil {
		if cause := context.Cause(runCtx); cause != nil {
			return p.finish(StateCancelled, fmt.Errorf("%w: %w", ErrRunCancelled, cause))
		}
		return p.fail(fmt.Errorf("open source: %w", err))
	}
	defer stream.Close()

	interrupted, err := p.execute(runCtx, stream)
	if err != nil {
		return p.fail(err)
	}

	if cause := context.Cause(runCtx); cause != nil || interrupted != nil {
		if interrupted != nil {
			cause = interrupted
		}
		return p.finish(StateCancelled, fmt.Errorf("%w: %w", ErrRunCancelled, cause))
	}
	return p.finish(StateCompleted, nil)
}

// execute runs the stages concurrently. runCtx only gates extraction: once
// it is done no new raw records are pulled, while everything already read
// drains through transform, batch and load under a context that ignores the
// caller's cancellation.
func (p *Pipeline) execute(runCtx context.Context, stream RecordStream) (interrupted error, err error) {
	drainCtx := context.WithoutCancel(runCtx)
	group, groupCtx := errgroup.WithContext(drainCtx)

	workers := p.cfg.Workers()
	rawCh := make(chan RawRecord, workers)
	recCh := make(chan *TransformedRecord, workers)
	batchCh := make(chan *Batch, p.cfg.Concurrency)

	group.Go(func() error {
		var err error
		interrupted, err = p.runExtract(runCtx, groupCtx, stream, rawCh)
		return err
	})

	group.Go(func() error {
		return p.runTransform(groupCtx, rawCh, recCh)
	})

	group.Go(func() error {
		return p.runBatch(groupCtx, recCh, batchCh)
	})

	group.Go(func() error {
		return p.runLoad(drainCtx, batchCh)
	})

	err = group.Wait()
	return interrupted, err
}

// runExtract pulls raw records until the stream ends or runCtx is done.
// A read failure before the first record is fatal; later failures only
// interrupt the run.
func (p *Pipeline) runExtract(runCtx, drainCtx context.Context, stream RecordStream, out chan<- RawRecord) (interrupted error, err error) {
	defer close(out)

	for {
		if runCtx.Err() != nil {
			return nil, nil
		}

		raw, err := stream.Next(runCtx)
		if errors.Is(err, io.EOF) {
			logger.Infof("Source exhausted after %d records", p.metrics.recordsRead.Load())
			return nil, nil
		}
		var malformed *MalformedRecordError
		if errors.As(err, &malformed) {
			p.metrics.RecordRead()
			p.rejectMalformed(malformed)
			continue
		}
		if err != nil {
			if runCtx.Err() != nil {
				return nil, nil
			}
			if p.metrics.recordsRead.Load() == 0 {
				return nil, fmt.Errorf("extract: %w", err)
			}
			logger.Errorf("Extraction interrupted after %d records: %v", p.metrics.recordsRead.Load(), err)
			return fmt.Errorf("extract: %w", err), nil
		}

		p.metrics.RecordRead()

		select {
		case out <- raw:
		case <-drainCtx.Done():
			return nil, drainCtx.Err()
		}
	}
}

func (p *Pipeline) runTransform(ctx context.Context, in <-chan RawRecord, out chan<- *TransformedRecord) error {
	defer close(out)

	transformer := NewTransformer(p.cfg, p.now(), NewIDSet()).WithClock(p.now)

	var transformGroup errgroup.Group
	for range p.cfg.Workers() {
		transformGroup.Go(func() error {
			for raw := range in {
				p.transition(StateTransforming)

				res := transformer.Transform(raw)
				if !res.Accepted() {
					p.metrics.RecordRejected()
					p.rejections.Add(*res.Rejected)
					logger.Debugf("Rejected record %q: %s", raw[models.FieldCustomerID], res.Rejected.Reason)
					continue
				}

				p.metrics.RecordTransformed(res.Record.DataQualityScore)
				select {
				case out <- res.Record:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	return transformGroup.Wait()
}

func (p *Pipeline) runBatch(ctx context.Context, in <-chan *TransformedRecord, out chan<- *Batch) error {
	defer close(out)

	batcher := NewBatcher(p.cfg.BatchSize)
	emit := func(b *Batch) error {
		select {
		case out <- b:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for rec := range in {
		if b, ok := batcher.Add(rec); ok {
			if err := emit(b); err != nil {
				return err
			}
		}
	}

	if b, ok := batcher.Flush(); ok {
		return emit(b)
	}
	return nil
}

func (p *Pipeline) runLoad(ctx context.Context, in <-chan *Batch) error {
	policy := RetryPolicy{
		MaxRetries: p.cfg.RetryAttempts,
		BaseDelay:  p.cfg.BackoffBase(),
		MaxDelay:   p.cfg.BackoffMax(),
		Jitter:     p.jitter,
	}
	loader := NewLoader(p.sink, policy, p.cfg.SinkTimeout(), p.metrics, p.quarantine).
		WithUnreachable(func(err error) {
			// Stop extraction; batches already queued still drain.
			p.cancelRun(fmt.Errorf("sink unreachable: %w", err))
		})

	var loadGroup errgroup.Group
	for range p.cfg.Concurrency {
		loadGroup.Go(func() error {
			for batch := range in {
				p.transition(StateLoading)

				outcome := loader.Load(ctx, batch)

				snap := p.metrics.Snapshot()
				logger.Infof("Batch %d %s. Loaded: %d. Rate: %.2f records/sec",
					outcome.Seq, outcome.Status, snap.RecordsLoaded, snap.Throughput())
			}
			return nil
		})
	}

	return loadGroup.Wait()
}

// rejectMalformed records a source record that failed to parse as a
// rejection with a single parse violation.
func (p *Pipeline) rejectMalformed(m *MalformedRecordError) {
	reason := "parse: " + m.Err.Error()
	p.metrics.RecordRejected()
	p.rejections.Add(RejectedRecord{
		Raw:        m.Raw.Clone(),
		Violations: []string{"parse"},
		Reason:     reason,
	})
	logger.Warnf("Rejected unparseable record: %s", reason)
}

func (p *Pipeline) fail(err error) (*Report, error) {
	logger.Errorf("Pipeline run %s failed: %v", p.runID, err)
	return p.finish(StateFailed, err)
}

func (p *Pipeline) finish(state State, err error) (*Report, error) {
	p.metrics.Finish()
	p.transition(state)

	snap := p.metrics.Snapshot()
	report := &Report{
		RunID:          p.runID,
		State:          state,
		Metrics:        snap,
		Throughput:     snap.Throughput(),
		AverageQuality: snap.AverageQuality(),
		Quarantined:    p.quarantine.List(),
	}
	if p.rejections != nil {
		report.Rejected, report.RejectedTruncated = p.rejections.List()
	}
	if err != nil {
		report.Error = err.Error()
	}

	logger.With("run_id", p.runID, "state", string(state), "metrics", snap).Info("pipeline finished")
	return report, err
}

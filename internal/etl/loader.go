package etl

import (
	"context"
	"errors"
	"time"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
)

// LoadStatus is the final state of one batch.
type LoadStatus string

const (
	StatusCommitted   LoadStatus = "committed"
	StatusQuarantined LoadStatus = "quarantined"
)

// LoadOutcome describes how a batch left the loader.
type LoadOutcome struct {
	Seq      int64
	Status   LoadStatus
	Attempts int
	Err      error
}

// Loader writes batches to a sink in single transactions, retrying transient
// failures and quarantining the rest.
type Loader struct {
	sink       Sink
	policy     RetryPolicy
	opTimeout  time.Duration
	metrics    *Metrics
	quarantine *QuarantineLog

	onUnreachable func(error)
}

// NewLoader builds a loader. opTimeout bounds each transaction attempt;
// zero disables the bound.
func NewLoader(sink Sink, policy RetryPolicy, opTimeout time.Duration, metrics *Metrics, quarantine *QuarantineLog) *Loader {
	return &Loader{
		sink:       sink,
		policy:     policy,
		opTimeout:  opTimeout,
		metrics:    metrics,
		quarantine: quarantine,
	}
}

// WithUnreachable sets a callback invoked with the final error of every batch
// quarantined because the sink could not be reached.
func (l *Loader) WithUnreachable(fn func(error)) *Loader {
	l.onUnreachable = fn
	return l
}

// Load commits batch or quarantines it. It never returns an error: every
// failure ends up in the quarantine log.
func (l *Loader) Load(ctx context.Context, batch *Batch) LoadOutcome {
	l.metrics.BatchAttempted()

	retried := false
	attempts, err := l.policy.Do(ctx, IsRetryable, func(attempt int) error {
		if attempt > 0 {
			if !retried {
				retried = true
				l.metrics.BatchRetried()
			}
			logger.Warnf("Retrying batch %d (attempt %d of %d)", batch.Seq, attempt+1, l.policy.MaxRetries+1)
		}
		return l.attempt(ctx, batch)
	})

	if err == nil {
		l.metrics.BatchCommitted(batch.Len())
		logger.Debugf("Batch %d committed: %d records in %d attempt(s)", batch.Seq, batch.Len(), attempts)
		return LoadOutcome{Seq: batch.Seq, Status: StatusCommitted, Attempts: attempts}
	}

	l.metrics.BatchQuarantined(batch.Len())
	l.quarantine.Add(QuarantinedBatch{
		Seq:      batch.Seq,
		Reason:   err.Error(),
		Attempts: attempts,
		Records:  batch.Records,
	})

	ids := make([]int64, batch.Len())
	for i, r := range batch.Records {
		ids[i] = r.CustomerID
	}
	logger.With("seq", batch.Seq, "attempts", attempts, "customer_ids", ids).
		Error("batch quarantined", "reason", err.Error())

	if IsConnectivity(err) && l.onUnreachable != nil {
		l.onUnreachable(err)
	}

	return LoadOutcome{Seq: batch.Seq, Status: StatusQuarantined, Attempts: attempts, Err: err}
}

// attempt runs one Begin/WriteBatch/Commit cycle under the operation timeout.
func (l *Loader) attempt(ctx context.Context, batch *Batch) error {
	opCtx, cancel := l.withTimeout(ctx)
	defer cancel()

	err := l.write(opCtx, batch)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !IsRetryable(err) {
		return Retryable(err)
	}
	return err
}

func (l *Loader) write(ctx context.Context, batch *Batch) error {
	tx, err := l.sink.Begin(ctx)
	if err != nil {
		return err
	}

	if err := l.sink.WriteBatch(ctx, tx, batch); err != nil {
		l.rollback(ctx, tx, batch.Seq)
		return err
	}

	if err := l.sink.Commit(ctx, tx); err != nil {
		l.rollback(ctx, tx, batch.Seq)
		return err
	}
	return nil
}

func (l *Loader) rollback(ctx context.Context, tx Tx, seq int64) {
	rbCtx, cancel := l.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := l.sink.Rollback(rbCtx, tx); err != nil {
		logger.Warnf("Rollback of batch %d failed: %v", seq, err)
	}
}

func (l *Loader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opTimeout > 0 {
		return context.WithTimeout(ctx, l.opTimeout)
	}
	return context.WithCancel(ctx)
}

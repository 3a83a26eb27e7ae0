package etl

import "context"

// Source opens a fresh, finite stream of raw records. Opening again restarts
// the sequence from the beginning.
type Source interface {
	Open(ctx context.Context) (RecordStream, error)
}

// RecordStream yields raw records one at a time. Next returns io.EOF once
// the stream is exhausted and a *ConnectivityError when the underlying store
// cannot be read.
type RecordStream interface {
	Next(ctx context.Context) (RawRecord, error)
	Close() error
}

// Tx is an opaque sink transaction handle.
type Tx interface{}

// Sink writes batches atomically. WriteBatch and Commit classify their
// failures with Retryable or Terminal.
type Sink interface {
	Begin(ctx context.Context) (Tx, error)
	WriteBatch(ctx context.Context, tx Tx, batch *Batch) error
	Commit(ctx context.Context, tx Tx) error
	Rollback(ctx context.Context, tx Tx) error
}

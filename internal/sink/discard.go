package sink

import (
	"context"
	"sync/atomic"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
)

// DiscardSink accepts every batch without writing anything. Used for dry runs.
type DiscardSink struct {
	records atomic.Int64
}

type discardTx struct{}

func (d *DiscardSink) Begin(context.Context) (etl.Tx, error) { return discardTx{}, nil }

func (d *DiscardSink) WriteBatch(_ context.Context, _ etl.Tx, batch *etl.Batch) error {
	d.records.Add(int64(batch.Len()))
	logger.Infof("[DRY RUN] Would load batch %d with %d records", batch.Seq, batch.Len())
	return nil
}

func (d *DiscardSink) Commit(context.Context, etl.Tx) error { return nil }

func (d *DiscardSink) Rollback(context.Context, etl.Tx) error { return nil }

// Records returns how many records were accepted.
func (d *DiscardSink) Records() int64 { return d.records.Load() }

package etl

// Batcher accumulates transformed records into fixed-size batches and
// numbers them from 1 in the order they are sealed. It is not safe for
// concurrent use; the pipeline drives it from a single goroutine.
type Batcher struct {
	size    int
	seq     int64
	pending []*TransformedRecord
}

func NewBatcher(size int) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{size: size}
}

// Add appends rec and returns the sealed batch once the threshold is reached.
func (b *Batcher) Add(rec *TransformedRecord) (*Batch, bool) {
	if b.pending == nil {
		b.pending = make([]*TransformedRecord, 0, b.size)
	}
	b.pending = append(b.pending, rec)
	if len(b.pending) < b.size {
		return nil, false
	}
	return b.seal(), true
}

// Flush seals whatever is pending. It returns false when nothing is pending,
// so no empty batch is ever produced.
func (b *Batcher) Flush() (*Batch, bool) {
	if len(b.pending) == 0 {
		return nil, false
	}
	return b.seal(), true
}

// Sealed returns the number of batches sealed so far.
func (b *Batcher) Sealed() int64 { return b.seq }

func (b *Batcher) seal() *Batch {
	b.seq++
	batch := &Batch{Seq: b.seq, Records: b.pending}
	b.pending = nil
	return batch
}

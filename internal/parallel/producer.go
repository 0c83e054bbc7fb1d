package parallel

import (
	"context"
	"sync"
)

type Producer interface {
	Produce(ctx context.Context, work chan<- WorkUnit, wg *sync.WaitGroup)
}

// RangeProducer cuts [0, total) into consecutive units of chunk items
type RangeProducer struct {
	total int
	chunk int
}

func NewRangeProducer(total, chunk int) *RangeProducer {
	return &RangeProducer{total: total, chunk: chunk}
}

// Submits the units to the work channel, stopping early when the context is done.
// Closes the channel when all work is submitted.
func (p *RangeProducer) Produce(ctx context.Context, work chan<- WorkUnit, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(work)

	for start := 0; start < p.total; start += p.chunk {
		end := start + p.chunk
		if end > p.total {
			end = p.total
		}
		select {
		case <-ctx.Done():
			return
		case work <- WorkUnit{Start: start, End: end}:
		}
	}
}

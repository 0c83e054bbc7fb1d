package parallel

import (
	"context"
	"sync"
)

type Consumer interface {
	Consume(ctx context.Context, work <-chan WorkUnit, errchan chan<- error, wg *sync.WaitGroup)
}

// FuncConsumer applies a function to every unit it receives
type FuncConsumer struct {
	fn     func(unit WorkUnit) error
	cancel context.CancelFunc
}

func NewFuncConsumer(fn func(unit WorkUnit) error, cancel context.CancelFunc) *FuncConsumer {
	return &FuncConsumer{fn: fn, cancel: cancel}
}

// Continually consumes WorkUnits until the work channel is closed. On error the error is
// submitted to the error channel, the shared context is cancelled and the remaining units
// are drained without being processed so the producer never blocks.
func (c *FuncConsumer) Consume(ctx context.Context, work <-chan WorkUnit, errchan chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()

	failed := false
	for unit := range work {
		if failed || ctx.Err() != nil {
			continue
		}
		if err := c.fn(unit); err != nil {
			errchan <- err
			c.cancel()
			failed = true
		}
	}
}

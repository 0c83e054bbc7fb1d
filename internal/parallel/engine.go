// Package parallel splits bulk raster and point work into units consumed by a capped
// pool of workers.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// DefaultMaxFraction is the share of the available cores claimed when no explicit
// worker count is configured
const DefaultMaxFraction = 0.8

// Engine configures the parallelism of a stage. The zero value uses DefaultMaxFraction.
type Engine struct {
	Workers     int     // explicit number of consumers, 0 derives it from MaxFraction
	MaxFraction float64 // in (0, 1], share of runtime.NumCPU() to use when Workers is 0
}

func DefaultEngine() Engine {
	return Engine{MaxFraction: DefaultMaxFraction}
}

func (e Engine) Validate() error {
	if e.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", e.Workers)
	}
	if e.MaxFraction < 0 || e.MaxFraction > 1 {
		return fmt.Errorf("max fraction must be in (0, 1], got %g", e.MaxFraction)
	}
	return nil
}

// NumWorkers returns the number of consumers the engine starts, always at least one
func (e Engine) NumWorkers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	fraction := e.MaxFraction
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultMaxFraction
	}
	n := int(fraction * float64(runtime.NumCPU()))
	if n < 1 {
		return 1
	}
	return n
}

// ForEach calls fn over [0, total) split in units of at most chunk items. Units are handed
// out by a producer goroutine to NumWorkers consumers. The first failure cancels the
// remaining units; every consumer error is returned joined.
func (e Engine) ForEach(ctx context.Context, total, chunk int, fn func(unit WorkUnit) error) error {
	if total <= 0 {
		return ctx.Err()
	}
	if chunk <= 0 {
		chunk = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	numConsumers := e.NumWorkers()
	if units := (total + chunk - 1) / chunk; units < numConsumers {
		numConsumers = units
	}

	workChannel := make(chan WorkUnit, numConsumers*5)
	errorChannel := make(chan error, numConsumers)

	var waitGroup sync.WaitGroup
	waitGroup.Add(1)
	go NewRangeProducer(total, chunk).Produce(ctx, workChannel, &waitGroup)

	for i := 0; i < numConsumers; i++ {
		waitGroup.Add(1)
		go NewFuncConsumer(fn, cancel).Consume(ctx, workChannel, errorChannel, &waitGroup)
	}

	waitGroup.Wait()
	close(errorChannel)

	var errs []error
	for err := range errorChannel {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	// producer stopped early on a parent cancellation
	return context.Cause(ctx)
}

// ForEachRow runs fn once per row band of a grid with the given number of rows
func (e Engine) ForEachRow(ctx context.Context, rows int, fn func(unit WorkUnit) error) error {
	return e.ForEach(ctx, rows, RowBandSize(rows, e.NumWorkers()), fn)
}

// RowBandSize picks a band height giving each worker several units to balance uneven rows
func RowBandSize(rows, workers int) int {
	if workers < 1 {
		workers = 1
	}
	size := rows / (workers * 8)
	if size < 1 {
		return 1
	}
	return size
}

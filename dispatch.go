package xval

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"
)

//////
// Const, vars, types.
//////

// Dispatcher runs n independent tasks and blocks until all of them finish.
//
// Tasks store their output at their own index, so results come back in
// input order whatever the execution order. Implementations must return the
// first task error unmodified and must not return before every started task
// has finished.
type Dispatcher interface {
	Map(ctx context.Context, n int, task func(ctx context.Context, i int) error) error
}

// Sequential runs tasks one after the other on the calling goroutine,
// stopping at the first error.
type Sequential struct{}

// Pool runs tasks on a bounded pool of goroutines and cancels the remaining
// tasks' context on the first error.
type Pool struct {
	// MaxGoroutines bounds concurrency. Zero or less means one goroutine
	// per task.
	MaxGoroutines int
}

// Group runs tasks through an errgroup, cancelling the shared context on the
// first error.
type Group struct {
	// Limit bounds concurrency. Zero or less means no limit.
	Limit int
}

//////
// Methods.
//////

// Map implements Dispatcher.
func (Sequential) Map(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := task(ctx, i); err != nil {
			return err
		}
	}

	return nil
}

// Map implements Dispatcher.
func (d Pool) Map(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	workers := d.MaxGoroutines
	if workers <= 0 || workers > n {
		workers = n
	}

	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for i := 0; i < n; i++ {
		p.Go(func(ctx context.Context) error {
			return task(ctx, i)
		})
	}

	return p.Wait()
}

// Map implements Dispatcher.
func (d Group) Map(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	g, gCtx := errgroup.WithContext(ctx)
	if d.Limit > 0 {
		g.SetLimit(d.Limit)
	}

	for i := 0; i < n; i++ {
		g.Go(func() error {
			return task(gCtx, i)
		})
	}

	return g.Wait()
}

//////
// Helper functions.
//////

// mapTasks applies fn to every input through d and returns the outputs in
// input order.
func mapTasks[I, O any](ctx context.Context, d Dispatcher, inputs []I, fn func(ctx context.Context, in I) (O, error)) ([]O, error) {
	out := make([]O, len(inputs))

	err := d.Map(ctx, len(inputs), func(ctx context.Context, i int) error {
		o, err := fn(ctx, inputs[i])
		if err != nil {
			return err
		}

		out[i] = o

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

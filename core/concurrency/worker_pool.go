package concurrency

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrWorkerPanic is wrapped by the error a panicking worker is turned into.
var ErrWorkerPanic = errors.New("worker panicked")

// WorkerFunc is the body of a worker. worker is its index in [0, Size).
type WorkerFunc func(ctx context.Context, worker int) error

// WorkerPool runs a fixed number of identical workers and waits for all of
// them. The first worker error cancels the context handed to the others.
// A panicking worker is converted into an error wrapping ErrWorkerPanic.
type WorkerPool struct {
	size int
}

// NewWorkerPool creates a pool of size workers, or one per CPU when size is
// not positive.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &WorkerPool{size: size}
}

// Size returns the number of workers started by Run.
func (p *WorkerPool) Size() int {
	return p.size
}

// Run starts Size workers running fn and blocks until all have returned.
// It returns the first error, which cancels the context of the others.
func (p *WorkerPool) Run(ctx context.Context, fn WorkerFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for i := 0; i < p.size; i++ {
		worker := i
		g.Go(func() (err error) {
			defer recoverWorker(worker, &err)
			return fn(gctx, worker)
		})
	}
	return g.Wait()
}

func recoverWorker(worker int, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: worker %d: %v\n%s", ErrWorkerPanic, worker, r, panicStack())
	}
}

func panicStack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

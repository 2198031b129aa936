// Package worker is the message boundary around the unusual-case engine: one
// request in, exactly one success or error response out.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"peerscan/adapters/stats/unusual"
	"peerscan/domain/anomaly"
	"peerscan/internal"

	"golang.org/x/sync/errgroup"
)

// Runner produces the report for one request.
type Runner interface {
	Run(ctx context.Context, req *anomaly.Request) (*anomaly.Result, error)
}

// Worker converts every outcome of a Runner, panics included, into a Response.
type Worker struct {
	runner  Runner
	maxRows int
	logger  *internal.Logger
}

// New creates a worker around runner. maxRows <= 0 disables the row limit.
func New(runner Runner, maxRows int, logger *internal.Logger) *Worker {
	return &Worker{
		runner:  runner,
		maxRows: maxRows,
		logger:  logger.WithComponent("worker"),
	}
}

// NewDefault creates a worker around the stock engine.
func NewDefault(maxRows int, logger *internal.Logger) *Worker {
	return New(unusual.NewEngine(nil, logger), maxRows, logger)
}

// Handle processes a single request.
func (w *Worker) Handle(ctx context.Context, req *anomaly.Request) (resp anomaly.Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic while analyzing: %v\n%s", r, debug.Stack())
			resp = anomaly.Failure(fmt.Errorf("internal error: %v", r))
		}
	}()

	if req == nil {
		return anomaly.Failure(&anomaly.InvalidInputError{Field: "request", Reason: "empty message"})
	}
	if w.maxRows > 0 && len(req.Data) > w.maxRows {
		return anomaly.Failure(&anomaly.InvalidInputError{
			Field:  "data",
			Reason: fmt.Sprintf("%d rows exceed the limit of %d", len(req.Data), w.maxRows),
		})
	}

	result, err := w.runner.Run(ctx, req)
	if err != nil {
		w.logger.Debug("run failed after %s: %v", time.Since(start), err)
		return anomaly.Failure(err)
	}
	w.logger.Debug("run finished in %s", time.Since(start))
	return anomaly.Success(result)
}

// Pool runs independent requests concurrently with a bounded number in flight.
type Pool struct {
	worker *Worker
	limit  int
}

// NewPool creates a pool. limit < 1 is treated as 1.
func NewPool(worker *Worker, limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{worker: worker, limit: limit}
}

// HandleAll processes every request and returns responses aligned with reqs.
// A failing request does not affect the others.
func (p *Pool) HandleAll(ctx context.Context, reqs []*anomaly.Request) []anomaly.Response {
	responses := make([]anomaly.Response, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			responses[i] = p.worker.Handle(gctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return responses
}

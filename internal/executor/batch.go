package executor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmagro/novax/internal/codec"
)

// BatchQuery is one query of a QueryAll batch.
type BatchQuery struct {
	Request *QueryRequest
	Shape   codec.Type
}

// Result is the outcome of one batched query.
type Result struct {
	Index int
	Value any
	Err   error
}

// QueryAll runs the queries concurrently and collects their results in
// input order, not completion order. It does not fail fast: a failing query
// only sets its own Err. Cancelling ctx still stops the queries in flight.
func QueryAll(ctx context.Context, exec QueryExecutor, queries []BatchQuery) []Result {
	results := make([]Result, len(queries))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			val, err := exec.ExecuteQuery(gctx, q.Request, q.Shape)
			mu.Lock()
			results[i] = Result{Index: i, Value: val, Err: err}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

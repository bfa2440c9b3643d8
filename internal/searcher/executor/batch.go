package executor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/parser"
)

// RunFunc executes one query. Executor.Run satisfies it, as does a cached
// wrapper around it.
type RunFunc func(ctx context.Context, q parser.Query) (*SearchResult, error)

// RunBatch runs the queries on at most workers goroutines and returns
// results in query order. The first failure cancels the queries not yet
// started and is returned once every running query stops.
func (e *Executor) RunBatch(ctx context.Context, queries []parser.Query, workers int, run RunFunc) ([]*SearchResult, error) {
	if run == nil {
		run = e.Run
	}
	if workers <= 0 {
		workers = 1
	}
	out := make([]*SearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range queries {
		i := i
		q := queries[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := run(gctx, q)
			if err != nil {
				e.logger.Error("query failed", "query", q.Name, "error", err)
				return fmt.Errorf("query %q: %w", q.Name, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

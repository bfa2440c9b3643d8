package executor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/metrics"
)

// SearchResult is the full ranked hit list of one query. No cap is applied.
// Latency and Cached describe this execution and are not cached.
type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Hits      []ranker.ScoredDoc `json:"hits"`
	Latency   time.Duration      `json:"-"`
	Cached    bool               `json:"-"`
}

// Execute evaluates q against ix. Candidates are the documents matching any
// SHOULD or MUST clause. A candidate is dropped if MUST clauses exist and it
// matches none of them, or if it matches any MUST_NOT clause. Survivors are
// scored on the SHOULD and MUST terms and ordered by descending score, then
// ascending document id. A query without SHOULD or MUST clauses returns no
// hits.
func Execute(q parser.Query, ix *index.Index, model ranker.Model) []ranker.ScoredDoc {
	if ix == nil || q.IsEmpty() {
		return []ranker.ScoredDoc{}
	}

	candidates := make(map[int]struct{})
	mustHits := make(map[int]int)
	excluded := make(map[int]struct{})
	mustClauses := 0

	for _, c := range q.Clauses {
		postings := ix.Lookup(c.Field, c.Term)
		switch c.Occur {
		case parser.Should:
			for _, p := range postings {
				candidates[p.DocID] = struct{}{}
			}
		case parser.Must:
			mustClauses++
			for _, p := range postings {
				candidates[p.DocID] = struct{}{}
				mustHits[p.DocID]++
			}
		case parser.MustNot:
			for _, p := range postings {
				excluded[p.DocID] = struct{}{}
			}
		}
	}

	survivors := make([]int, 0, len(candidates))
	for docID := range candidates {
		if mustClauses > 0 && mustHits[docID] == 0 {
			continue
		}
		if _, ok := excluded[docID]; ok {
			continue
		}
		survivors = append(survivors, docID)
	}
	sort.Ints(survivors)

	return ranker.Rank(model, ranker.QueryTerms(q.Positive()), survivors, ix)
}

// Executor runs queries against one built index and model, recording
// latency and hit counts.
type Executor struct {
	ix      *index.Index
	model   ranker.Model
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Executor. m may be nil.
func New(ix *index.Index, model ranker.Model, m *metrics.Metrics) *Executor {
	return &Executor{
		ix:      ix,
		model:   model,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Model() ranker.Model {
	return e.model
}

// Run executes q. It fails only when ctx is already done.
func (e *Executor) Run(ctx context.Context, q parser.Query) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	hits := Execute(q, e.ix, e.model)
	elapsed := time.Since(start)

	if e.metrics != nil {
		resultType := "hit"
		if len(hits) == 0 {
			resultType = "zero_result"
		}
		e.metrics.QueriesTotal.WithLabelValues(e.model.Kind().String(), resultType).Inc()
		e.metrics.QueryLatency.WithLabelValues(e.model.Kind().String()).Observe(elapsed.Seconds())
		e.metrics.QueryResultsCount.Observe(float64(len(hits)))
	}
	logger.ForRun(ctx, e.logger).Debug("query executed",
		"query", q.Name,
		"model", e.model.Kind().String(),
		"clauses", len(q.Clauses),
		"results", len(hits),
		"latency", elapsed,
	)
	return &SearchResult{
		Query:     parser.Describe(q),
		TotalHits: len(hits),
		Hits:      hits,
		Latency:   elapsed,
	}, nil
}

package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/ranker"
)

func benchQuery(b *testing.B) parser.Query {
	b.Helper()
	return parser.Parse(parser.Input{
		Name: "human-motion",
		Include: map[index.Field][]string{
			index.FieldTitle:    {"human", "motion", "gesture"},
			index.FieldAbstract: {"interactive", "sensors"},
		},
		Exclude: map[index.Field][]string{index.FieldTitle: {"robot"}},
	}, buildOptions().Pipeline)
}

func BenchmarkQueryParse(b *testing.B) {
	p := buildOptions().Pipeline
	in := parser.Input{
		Include: map[index.Field][]string{
			index.FieldTitle:    {"human", "interface", "motion"},
			index.FieldAbstract: {"human", "interaction", "motion"},
		},
		Require: map[index.Field][]string{index.FieldQuery: {"human motion"}},
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		q := parser.Parse(in, p)
		_ = q
	}
}

func BenchmarkRanking(b *testing.B) {
	ix, err := index.Build(syntheticRecords(10000), buildOptions())
	if err != nil {
		b.Fatal(err)
	}
	q := benchQuery(b)
	for _, kind := range []ranker.Kind{ranker.KindVSM, ranker.KindBM25, ranker.KindLMDirichlet} {
		model := ranker.New(kind)
		b.Run(kind.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				hits := executor.Execute(q, ix, model)
				_ = hits
			}
		})
	}
}

func BenchmarkRunBatch(b *testing.B) {
	ix, err := index.Build(syntheticRecords(10000), buildOptions())
	if err != nil {
		b.Fatal(err)
	}
	queries := make([]parser.Query, 16)
	for i := range queries {
		queries[i] = benchQuery(b)
	}
	exec := executor.New(ix, ranker.New(ranker.KindBM25), nil)
	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := exec.RunBatch(context.Background(), queries, workers, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEvaluate(b *testing.B) {
	ix, err := index.Build(syntheticRecords(10000), buildOptions())
	if err != nil {
		b.Fatal(err)
	}
	hits := executor.Execute(benchQuery(b), ix, ranker.New(ranker.KindBM25))
	judge := evaluation.IndexJudge(ix, 1)
	total := ix.RelevantCount()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := evaluation.Evaluate(hits, judge, total)
		_ = r.InterpolatedCurve()
		_ = r.PrecisionSeries([]int{10, 20, 30, 40})
	}
}

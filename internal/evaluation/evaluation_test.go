package evaluation

import (
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
)

func approxEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// judged builds a hit list whose document ids equal their rank-1 and a judge
// that marks the given ranks (1-based) relevant.
func judged(n int, relevantRanks ...int) ([]ranker.ScoredDoc, Judge) {
	hits := make([]ranker.ScoredDoc, n)
	for i := range hits {
		hits[i] = ranker.ScoredDoc{DocID: i, Score: float64(n - i)}
	}
	rel := make(map[int]bool)
	for _, r := range relevantRanks {
		rel[r-1] = true
	}
	return hits, func(docID int) bool { return rel[docID] }
}

func TestRelevantAtRankThreeOfFive(t *testing.T) {
	hits, judge := judged(5, 3)
	r := Evaluate(hits, judge, 1)

	tests := []struct {
		k    int
		want float64
	}{
		{1, 0}, {3, 1.0 / 3}, {5, 1.0 / 5},
	}
	for _, tt := range tests {
		got, ok := r.PrecisionAt(tt.k)
		if !ok || !approxEqual(got, tt.want, 1e-12) {
			t.Errorf("PrecisionAt(%d) = %v, %v; want %v", tt.k, got, ok, tt.want)
		}
	}
	if _, ok := r.PrecisionAt(6); ok {
		t.Error("PrecisionAt(6) should be undefined with 5 hits")
	}
	if _, ok := r.PrecisionAt(0); ok {
		t.Error("PrecisionAt(0) should be undefined")
	}

	curve := r.InterpolatedCurve()
	for level, p := range curve {
		if !approxEqual(p, 1.0/3, 1e-12) {
			t.Errorf("curve[%.1f] = %v, want 1/3", RecallLevel(level), p)
		}
	}
}

func TestInterpolationCarriesMaximumBackward(t *testing.T) {
	// R=4; relevant at ranks 2, 3, 6, 10.
	hits, judge := judged(10, 2, 3, 6, 10)
	r := Evaluate(hits, judge, 4)
	curve := r.InterpolatedCurve()

	want := Curve{
		// levels 0.0-0.5: rank 3 reaches recall 0.5 at precision 2/3
		2.0 / 3, 2.0 / 3, 2.0 / 3, 2.0 / 3, 2.0 / 3, 2.0 / 3,
		// levels 0.6-0.7: rank 6 reaches 0.75 at 3/6
		0.5, 0.5,
		// levels 0.8-1.0: only rank 10 reaches 1.0, at 4/10
		0.4, 0.4, 0.4,
	}
	for i := range want {
		if !approxEqual(curve[i], want[i], 1e-12) {
			t.Errorf("curve[%.1f] = %v, want %v", RecallLevel(i), curve[i], want[i])
		}
	}
}

func TestFullRecallUsesPrecisionAtFinalRelevant(t *testing.T) {
	// R=2; relevant, non-relevant, relevant. The rank-1 precision of 1 must
	// not leak into levels above the 0.5 recall it reached.
	hits, judge := judged(3, 1, 3)
	curve := Evaluate(hits, judge, 2).InterpolatedCurve()
	for i := 0; i <= 5; i++ {
		if curve[i] != 1 {
			t.Errorf("curve[%.1f] = %v, want 1", RecallLevel(i), curve[i])
		}
	}
	for i := 6; i < Levels; i++ {
		if !approxEqual(curve[i], 2.0/3, 1e-12) {
			t.Errorf("curve[%.1f] = %v, want 2/3", RecallLevel(i), curve[i])
		}
	}
}

func TestUnreachedLevelsAreZero(t *testing.T) {
	// R=4 but only one relevant document is retrieved: recall tops out at 0.25.
	hits, judge := judged(4, 1)
	curve := Evaluate(hits, judge, 4).InterpolatedCurve()
	for i := 0; i <= 2; i++ {
		if curve[i] != 1 {
			t.Errorf("curve[%.1f] = %v, want 1", RecallLevel(i), curve[i])
		}
	}
	for i := 3; i < Levels; i++ {
		if curve[i] != 0 {
			t.Errorf("curve[%.1f] = %v, want 0", RecallLevel(i), curve[i])
		}
	}
}

func TestZeroRelevantDocuments(t *testing.T) {
	hits, judge := judged(3)
	r := Evaluate(hits, judge, 0)
	if !r.RecallUndefined() {
		t.Fatal("RecallUndefined = false")
	}
	for k := 0; k <= 4; k++ {
		got, err := r.RecallAt(k)
		if got != 0 || !errors.Is(err, apperrors.ErrUndefinedRecall) {
			t.Errorf("RecallAt(%d) = %v, %v", k, got, err)
		}
	}
	if c := r.InterpolatedCurve(); c != (Curve{}) {
		t.Errorf("curve = %v, want zeros", c)
	}
	if r.AveragePrecision() != 0 {
		t.Errorf("AveragePrecision = %v", r.AveragePrecision())
	}
	for _, p := range r.Series() {
		if p.Recall != 0 {
			t.Errorf("series recall = %v", p.Recall)
		}
	}
}

func TestEmptyHitList(t *testing.T) {
	r := Evaluate(nil, func(int) bool { return true }, 2)
	if r.Hits() != 0 || len(r.Series()) != 0 {
		t.Errorf("hits = %d", r.Hits())
	}
	if got, err := r.RecallAt(10); got != 0 || err != nil {
		t.Errorf("RecallAt = %v, %v", got, err)
	}
	if c := r.InterpolatedCurve(); c != (Curve{}) {
		t.Errorf("curve = %v", c)
	}
	if got := r.PrecisionSeries([]int{10, 20}); len(got) != 0 {
		t.Errorf("PrecisionSeries = %v", got)
	}
}

func TestPrecisionSeriesOmitsUndefinedCutoffs(t *testing.T) {
	hits, judge := judged(25, 1, 2, 20)
	got := Evaluate(hits, judge, 3).PrecisionSeries([]int{10, 20, 30, 40})
	if len(got) != 2 {
		t.Fatalf("PrecisionSeries = %v", got)
	}
	if got[0].K != 10 || !approxEqual(got[0].Precision, 0.2, 1e-12) {
		t.Errorf("P@10 = %+v", got[0])
	}
	if got[1].K != 20 || !approxEqual(got[1].Precision, 0.15, 1e-12) {
		t.Errorf("P@20 = %+v", got[1])
	}
}

func TestRankMetrics(t *testing.T) {
	hits, judge := judged(4, 2, 4)
	r := Evaluate(hits, judge, 2)
	if got := r.ReciprocalRank(); got != 0.5 {
		t.Errorf("ReciprocalRank = %v", got)
	}
	if got := r.AveragePrecision(); !approxEqual(got, 0.5, 1e-12) {
		t.Errorf("AveragePrecision = %v, want 0.5", got)
	}
	if got, _ := r.RecallAt(3); got != 0.5 {
		t.Errorf("RecallAt(3) = %v", got)
	}
	if r.RelevantRetrieved() != 2 {
		t.Errorf("RelevantRetrieved = %d", r.RelevantRetrieved())
	}
}

func TestAverageCurves(t *testing.T) {
	a := Curve{1, 1, 1, 1, 1, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	b := Curve{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.1}

	if got := AverageCurves([]Curve{a}); got != a {
		t.Errorf("single curve changed: %v", got)
	}
	if got := AverageCurves(nil); got != (Curve{}) {
		t.Errorf("empty average = %v", got)
	}
	got := AverageCurves([]Curve{a, b})
	if !approxEqual(got[0], 0.75, 1e-12) || !approxEqual(got[10], 0.3, 1e-12) {
		t.Errorf("average = %v", got)
	}
	if again := AverageCurves([]Curve{got}); again != got {
		t.Errorf("re-averaging changed curve: %v", again)
	}
}

func TestCurveString(t *testing.T) {
	var c Curve
	c[0] = 1
	s := c.String()
	if s[:10] != "0.0:1.0000" {
		t.Errorf("String = %q", s)
	}
	if len(c.Points()) != Levels || c.Points()[10].Recall != 1 {
		t.Errorf("Points = %v", c.Points())
	}
}

func TestPetsScenario(t *testing.T) {
	records := []collection.DocumentRecord{
		{Title: "cats and dogs", SearchTask: 1, Query: "pets", Relevant: true},
		{Title: "car engines", SearchTask: 1, Query: "pets", Relevant: false},
	}
	pipeline := tokenizer.New(tokenizer.Options{RemoveStopwords: true, Stem: true})
	ix, err := index.Build(records, index.BuildOptions{Pipeline: pipeline, TargetTask: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	q := parser.Parse(parser.Input{Include: map[index.Field][]string{index.FieldTitle: {"cats"}}}, pipeline)
	hits := executor.Execute(q, ix, ranker.New(ranker.KindBM25))
	if len(hits) != 1 || hits[0].DocID != 0 {
		t.Fatalf("hits = %+v, want [doc0]", hits)
	}

	r := Evaluate(hits, IndexJudge(ix, 1), ix.RelevantCount())
	if p, ok := r.PrecisionAt(1); !ok || p != 1 {
		t.Errorf("PrecisionAt(1) = %v, %v", p, ok)
	}
	if rec, err := r.RecallAt(1); err != nil || rec != 1 {
		t.Errorf("RecallAt(1) = %v, %v", rec, err)
	}
}

func TestIndexJudgeRequiresTask(t *testing.T) {
	ix, err := index.Build([]collection.DocumentRecord{
		{Title: "a", SearchTask: 2, Relevant: true},
	}, index.BuildOptions{TargetTask: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !IndexJudge(ix, 2)(0) {
		t.Error("relevant doc of task 2 should be judged relevant")
	}
	if IndexJudge(ix, 1)(0) {
		t.Error("doc of another task should not be relevant")
	}
	if IndexJudge(ix, 2)(5) {
		t.Error("missing doc should not be relevant")
	}
}

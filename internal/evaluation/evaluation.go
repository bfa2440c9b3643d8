// Package evaluation scores a ranked hit list against relevance judgments:
// precision and recall at a cutoff, the per-rank (recall, precision) series,
// the 11-point interpolated precision-recall curve, and averages of those
// curves across queries.
package evaluation

import (
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
)

// Judge reports whether a document is relevant to the query being evaluated.
type Judge func(docID int) bool

// IndexJudge judges a hit relevant when its stored record is marked relevant
// and belongs to task.
func IndexJudge(ix *index.Index, task int) Judge {
	return func(docID int) bool {
		doc, ok := ix.Document(docID)
		if !ok {
			return false
		}
		return doc.Record.Relevant && doc.Record.SearchTask == task
	}
}

// Point is the (recall, precision) pair after the first Rank hits.
type Point struct {
	Rank      int     `json:"rank"`
	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
}

// Result holds the judged hit list of one query. Build it with Evaluate.
type Result struct {
	// TotalRelevant is R, the number of relevant documents for the task.
	TotalRelevant int
	relevant      []bool
	// cumulative[i] counts relevant hits among the first i hits.
	cumulative []int
}

// Evaluate judges every hit once. totalRelevant is R.
func Evaluate(hits []ranker.ScoredDoc, judge Judge, totalRelevant int) *Result {
	r := &Result{
		TotalRelevant: totalRelevant,
		relevant:      make([]bool, len(hits)),
		cumulative:    make([]int, len(hits)+1),
	}
	for i, h := range hits {
		r.relevant[i] = judge(h.DocID)
		r.cumulative[i+1] = r.cumulative[i]
		if r.relevant[i] {
			r.cumulative[i+1]++
		}
	}
	return r
}

// Hits returns the length of the ranked list.
func (r *Result) Hits() int {
	return len(r.relevant)
}

// RelevantRetrieved counts relevant documents anywhere in the list.
func (r *Result) RelevantRetrieved() int {
	return r.cumulative[len(r.relevant)]
}

// RecallUndefined reports R = 0.
func (r *Result) RecallUndefined() bool {
	return r.TotalRelevant <= 0
}

// PrecisionAt is the share of relevant documents among the top k hits. ok is
// false, and the cutoff should be skipped, when k is zero or exceeds the
// number of hits.
func (r *Result) PrecisionAt(k int) (p float64, ok bool) {
	if k <= 0 || k > r.Hits() {
		return 0, false
	}
	return float64(r.cumulative[k]) / float64(k), true
}

// RecallAt is the share of the R relevant documents found in the top k hits.
// k beyond the list counts the whole list. When R = 0 it returns 0 with an
// error wrapping ErrUndefinedRecall.
func (r *Result) RecallAt(k int) (float64, error) {
	if r.RecallUndefined() {
		return 0, apperrors.ErrUndefinedRecall
	}
	if k <= 0 {
		return 0, nil
	}
	if k > r.Hits() {
		k = r.Hits()
	}
	return float64(r.cumulative[k]) / float64(r.TotalRelevant), nil
}

// Series returns one Point per rank. Recall is 0 throughout when R = 0.
func (r *Result) Series() []Point {
	points := make([]Point, r.Hits())
	for i := range points {
		rank := i + 1
		recall, _ := r.RecallAt(rank)
		points[i] = Point{
			Rank:      rank,
			Recall:    recall,
			Precision: float64(r.cumulative[rank]) / float64(rank),
		}
	}
	return points
}

// CutoffPrecision is precision at one configured cutoff.
type CutoffPrecision struct {
	K         int     `json:"k"`
	Precision float64 `json:"precision"`
}

// PrecisionSeries evaluates each cutoff in order, omitting the undefined ones.
func (r *Result) PrecisionSeries(cutoffs []int) []CutoffPrecision {
	out := make([]CutoffPrecision, 0, len(cutoffs))
	for _, k := range cutoffs {
		if p, ok := r.PrecisionAt(k); ok {
			out = append(out, CutoffPrecision{K: k, Precision: p})
		}
	}
	return out
}

// AveragePrecision sums precision at each relevant rank and divides by R.
// It is 0 when R = 0.
func (r *Result) AveragePrecision() float64 {
	if r.RecallUndefined() {
		return 0
	}
	var sum float64
	for i, rel := range r.relevant {
		if rel {
			sum += float64(r.cumulative[i+1]) / float64(i+1)
		}
	}
	return sum / float64(r.TotalRelevant)
}

// ReciprocalRank is 1/rank of the first relevant hit, or 0.
func (r *Result) ReciprocalRank() float64 {
	for i, rel := range r.relevant {
		if rel {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

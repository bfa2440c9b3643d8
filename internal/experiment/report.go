package experiment

import (
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/executor"
)

// reportWriter prints the human-readable run report. The first write error
// is kept and later writes are skipped.
type reportWriter struct {
	w   io.Writer
	err error
}

func newReportWriter(w io.Writer) *reportWriter {
	if w == nil {
		w = io.Discard
	}
	return &reportWriter{w: w}
}

func (rw *reportWriter) printf(format string, args ...any) {
	if rw.err != nil {
		return
	}
	_, rw.err = fmt.Fprintf(rw.w, format, args...)
}

func (rw *reportWriter) configuration(name string, docs int) {
	rw.printf("== %s (%d documents) ==\n", name, docs)
}

// query echoes the query, lists its hits by title and prints the precision
// at each defined cutoff followed by the interpolated curve.
func (rw *reportWriter) query(name string, ix *index.Index, res *executor.SearchResult, ev *evaluation.Result, cutoffs []int) {
	rw.printf("query %s: %s\n", name, res.Query)
	if len(res.Hits) == 0 {
		rw.printf(" no results\n")
	}
	for i, hit := range res.Hits {
		title := ""
		if doc, ok := ix.Document(hit.DocID); ok {
			title = doc.Record.Title
		}
		rw.printf(" %d. %s\n", i+1, title)
	}
	for _, cp := range ev.PrecisionSeries(cutoffs) {
		rw.printf("P@%d = %.4f\n", cp.K, cp.Precision)
	}
	if ev.RecallUndefined() {
		rw.printf("recall undefined: no relevant documents for the target task\n")
	}
	rw.printf("curve: %s\n", ev.InterpolatedCurve())
}

func (rw *reportWriter) average(name string, queries int, curve evaluation.Curve) {
	rw.printf("average %s over %d queries: %s\n", name, queries, curve)
}

// Package analytics turns per-query evaluation results into events and
// per-configuration summaries for the run store, the event stream and the
// /summary endpoint.
package analytics

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/evaluation"
)

// ConfigurationSummary averages the query events of one configuration.
type ConfigurationSummary struct {
	Configuration          string                       `json:"configuration"`
	Queries                int                          `json:"queries"`
	ZeroResultQueries      int                          `json:"zero_result_queries"`
	RecallUndefinedQueries int                          `json:"recall_undefined_queries"`
	CacheHits              int                          `json:"cache_hits"`
	MeanAveragePrecision   float64                      `json:"mean_average_precision"`
	MeanReciprocalRank     float64                      `json:"mean_reciprocal_rank"`
	MeanPrecision          []evaluation.CutoffPrecision `json:"mean_precision"`
	AverageCurve           evaluation.Curve             `json:"average_curve"`
	AvgLatencyMs           float64                      `json:"avg_latency_ms"`
	P95LatencyMs           int64                        `json:"p95_latency_ms"`
}

type accumulator struct {
	events    int
	zero      int
	undefined int
	cacheHits int
	apSum     float64
	rrSum     float64
	precSum   map[int]float64
	precCount map[int]int
	curves    []evaluation.Curve
	latencies []int64
}

// Aggregator collects QueryEvents and summarises them per configuration,
// in the order configurations were first seen.
type Aggregator struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*accumulator
	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byName: make(map[string]*accumulator),
		logger: slog.Default().With("component", "analytics-aggregator"),
	}
}

// Record adds one query event.
func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.byName[event.Configuration]
	if !ok {
		acc = &accumulator{precSum: make(map[int]float64), precCount: make(map[int]int)}
		a.byName[event.Configuration] = acc
		a.order = append(a.order, event.Configuration)
	}
	acc.events++
	if event.Hits == 0 {
		acc.zero++
	}
	if event.RecallUndefined {
		acc.undefined++
	}
	if event.CacheHit {
		acc.cacheHits++
	}
	acc.apSum += event.AveragePrecision
	acc.rrSum += event.ReciprocalRank
	for _, cp := range event.Precision {
		acc.precSum[cp.K] += cp.Precision
		acc.precCount[cp.K]++
	}
	acc.curves = append(acc.curves, event.Curve)
	acc.latencies = append(acc.latencies, event.LatencyMs)
}

// Summary returns the summary for one configuration.
func (a *Aggregator) Summary(configuration string) (ConfigurationSummary, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.byName[configuration]
	if !ok {
		return ConfigurationSummary{}, false
	}
	return acc.summarise(configuration), true
}

// Summaries returns every configuration's summary.
func (a *Aggregator) Summaries() []ConfigurationSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ConfigurationSummary, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.byName[name].summarise(name))
	}
	return out
}

// Reset forgets everything recorded so far.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.order = nil
	a.byName = make(map[string]*accumulator)
	a.logger.Debug("aggregator reset")
}

func (acc *accumulator) summarise(name string) ConfigurationSummary {
	s := ConfigurationSummary{
		Configuration:          name,
		Queries:                acc.events,
		ZeroResultQueries:      acc.zero,
		RecallUndefinedQueries: acc.undefined,
		CacheHits:              acc.cacheHits,
		AverageCurve:           evaluation.AverageCurves(acc.curves),
	}
	if acc.events == 0 {
		return s
	}
	n := float64(acc.events)
	s.MeanAveragePrecision = acc.apSum / n
	s.MeanReciprocalRank = acc.rrSum / n

	cutoffs := make([]int, 0, len(acc.precSum))
	for k := range acc.precSum {
		cutoffs = append(cutoffs, k)
	}
	sort.Ints(cutoffs)
	for _, k := range cutoffs {
		s.MeanPrecision = append(s.MeanPrecision, evaluation.CutoffPrecision{
			K:         k,
			Precision: acc.precSum[k] / float64(acc.precCount[k]),
		})
	}

	sorted := make([]int64, len(acc.latencies))
	copy(sorted, acc.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var sum int64
	for _, l := range sorted {
		sum += l
	}
	s.AvgLatencyMs = float64(sum) / float64(len(sorted))
	s.P95LatencyMs = percentile(sorted, 95)
	return s
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

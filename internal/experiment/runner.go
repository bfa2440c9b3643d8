// Package experiment runs the evaluation matrix: for every configured
// ranking model and text pipeline it rebuilds the index, executes the query
// set, evaluates the hit lists and reports per-query and averaged curves.
package experiment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/tracing"
)

// EventTracker receives evaluation events. collector.BatchCollector
// implements it.
type EventTracker interface {
	Track(key string, value any)
	Flush(ctx context.Context) error
}

// RunSaver persists a finished run. store.Store implements it.
type RunSaver interface {
	SaveRun(ctx context.Context, run store.Run) error
}

// Options wires the optional collaborators of a Runner. Nil fields are
// skipped.
type Options struct {
	Cache      *cache.ResultCache
	Events     EventTracker
	Store      RunSaver
	Aggregator *analytics.Aggregator
	Metrics    *metrics.Metrics
	Report     io.Writer
	Tracing    bool
	// SaveTimeout bounds the final event flush and the run-store save.
	SaveTimeout time.Duration
}

type Runner struct {
	cfg    config.ExperimentConfig
	engine *indexer.Engine
	opts   Options
	logger *slog.Logger
}

func NewRunner(cfg config.ExperimentConfig, engine *indexer.Engine, opts Options) *Runner {
	if opts.Aggregator == nil {
		opts.Aggregator = analytics.NewAggregator()
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 30 * time.Second
	}
	return &Runner{
		cfg:    cfg,
		engine: engine,
		opts:   opts,
		logger: slog.Default().With("component", "experiment"),
	}
}

// QueryOutcome is one evaluated query under one configuration.
type QueryOutcome struct {
	Query  parser.Query
	Result *executor.SearchResult
	Eval   *evaluation.Result
	Event  analytics.QueryEvent
}

type ConfigurationOutcome struct {
	Settings  indexer.Settings
	Documents int
	// Reused is set when a persisted segment was loaded instead of rebuilt.
	Reused    bool
	Queries   []QueryOutcome
	Average   evaluation.Curve
	Summary   analytics.ConfigurationSummary
}

// Outcome is everything one Run produced, in configuration order.
type Outcome struct {
	RunID          string
	Corpus         string
	Task           int
	Configurations []ConfigurationOutcome
}

// NewRunID names a run after its start time and feed fingerprint.
func NewRunID(corpus string, now time.Time) string {
	return fmt.Sprintf("run-%s-%s", now.UTC().Format("20060102T150405Z"), corpus)
}

// Run evaluates every configuration in order. Each configuration rebuilds
// the index from records, or reloads a segment built from the same records
// and settings when the engine reuses segments, so configurations never
// observe each other's index. An index build failure aborts the run; event publishing and run
// persistence failures are logged and do not.
func (r *Runner) Run(ctx context.Context, records []collection.DocumentRecord) (*Outcome, error) {
	corpus := collection.Fingerprint(records)
	out := &Outcome{
		RunID:  NewRunID(corpus, time.Now()),
		Corpus: corpus,
		Task:   r.cfg.TargetTask,
	}
	ctx = logger.WithRun(ctx, out.RunID)
	log := logger.ForRun(ctx, r.logger)
	ctx, root := tracing.StartSpan(ctx, "experiment", out.RunID)
	root.SetAttr("records", len(records))
	root.SetAttr("configurations", len(r.cfg.Configurations))

	log.Info("run starting",
		"corpus", corpus,
		"records", len(records),
		"task", r.cfg.TargetTask,
		"relevant", collection.CountRelevant(records, r.cfg.TargetTask),
		"configurations", len(r.cfg.Configurations),
		"queries", len(r.cfg.Queries),
	)

	r.opts.Aggregator.Reset()
	report := newReportWriter(r.opts.Report)
	for _, rc := range r.cfg.Configurations {
		co, err := r.runConfiguration(ctx, records, out, rc, report)
		if err != nil {
			root.End()
			return nil, err
		}
		out.Configurations = append(out.Configurations, *co)
	}
	root.End()
	if report.err != nil {
		log.Warn("report output failed", "error", report.err)
	}
	if r.opts.Tracing {
		root.Log(log)
	}

	r.finish(ctx, log, out)
	log.Info("run complete", "duration", root.Duration)
	return out, nil
}

func (r *Runner) runConfiguration(
	ctx context.Context,
	records []collection.DocumentRecord,
	out *Outcome,
	rc config.RunConfig,
	report *reportWriter,
) (*ConfigurationOutcome, error) {
	settings := indexer.SettingsFrom(rc, r.cfg.TargetTask)
	name := settings.Name()
	ctx, span := tracing.StartChildSpan(ctx, "configuration")
	span.SetAttr("configuration", name)
	defer span.End()

	buildCtx, buildSpan := tracing.StartChildSpan(ctx, "build")
	ix, reused, err := r.engine.Prepare(buildCtx, records, settings)
	buildSpan.End()
	if err != nil {
		return nil, fmt.Errorf("configuration %s: %w", name, err)
	}
	buildSpan.SetAttr("documents", ix.DocumentCount())
	buildSpan.SetAttr("reused", reused)
	if path := r.engine.SegmentPath(); path != "" {
		buildSpan.SetAttr("segment", path)
	}
	report.configuration(name, ix.DocumentCount())

	pipeline := settings.Pipeline()
	queries := make([]parser.Query, 0, len(r.cfg.Queries))
	for _, qc := range r.cfg.Queries {
		queries = append(queries, parser.Parse(parser.FromConfig(qc), pipeline))
	}

	exec := executor.New(ix, r.engine.Model(), r.opts.Metrics)
	run := func(ctx context.Context, q parser.Query) (*executor.SearchResult, error) {
		start := time.Now()
		if r.opts.Cache == nil {
			return exec.Run(ctx, q)
		}
		key := cache.Key{
			Corpus:        out.Corpus,
			Configuration: name,
			Task:          settings.TargetTask,
			Query:         parser.Describe(q),
		}
		res, cached, err := r.opts.Cache.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) {
			return exec.Run(ctx, q)
		})
		if err != nil {
			return nil, err
		}
		// singleflight callers share res
		own := *res
		own.Cached = cached
		own.Latency = time.Since(start)
		return &own, nil
	}

	queryCtx, querySpan := tracing.StartChildSpan(ctx, "query")
	results, err := exec.RunBatch(queryCtx, queries, r.cfg.Workers, run)
	querySpan.SetAttr("queries", len(queries))
	querySpan.End()
	if err != nil {
		return nil, fmt.Errorf("configuration %s: %w", name, err)
	}

	_, evalSpan := tracing.StartChildSpan(ctx, "evaluate")
	defer evalSpan.End()
	judge := evaluation.IndexJudge(ix, settings.TargetTask)
	totalRelevant := ix.RelevantCount()
	if totalRelevant == 0 {
		logger.ForRun(ctx, r.logger).Warn("no relevant documents for target task, recall reported as 0",
			"configuration", name,
			"task", settings.TargetTask,
		)
	}

	co := &ConfigurationOutcome{Settings: settings, Documents: ix.DocumentCount(), Reused: reused}
	curves := make([]evaluation.Curve, 0, len(queries))
	for i, q := range queries {
		res := results[i]
		ev := evaluation.Evaluate(res.Hits, judge, totalRelevant)
		curve := ev.InterpolatedCurve()
		curves = append(curves, curve)

		event := analytics.QueryEvent{
			Type:              analytics.EventQueryEvaluated,
			RunID:             out.RunID,
			Configuration:     name,
			Task:              settings.TargetTask,
			Query:             q.Name,
			Clauses:           res.Query,
			Hits:              ev.Hits(),
			TotalRelevant:     totalRelevant,
			RelevantRetrieved: ev.RelevantRetrieved(),
			RecallUndefined:   ev.RecallUndefined(),
			Precision:         ev.PrecisionSeries(r.cfg.Cutoffs),
			AveragePrecision:  ev.AveragePrecision(),
			ReciprocalRank:    ev.ReciprocalRank(),
			Curve:             curve,
			CacheHit:          res.Cached,
			LatencyMs:         res.Latency.Milliseconds(),
			Timestamp:         time.Now().UTC(),
		}
		r.opts.Aggregator.Record(event)
		if r.opts.Events != nil {
			r.opts.Events.Track(out.RunID, event)
		}
		if r.opts.Metrics != nil {
			for _, cp := range event.Precision {
				r.opts.Metrics.PrecisionAtK.WithLabelValues(name, q.Name, strconv.Itoa(cp.K)).Set(cp.Precision)
			}
		}
		report.query(q.Name, ix, res, ev, r.cfg.Cutoffs)
		co.Queries = append(co.Queries, QueryOutcome{Query: q, Result: res, Eval: ev, Event: event})
	}

	co.Average = evaluation.AverageCurves(curves)
	co.Summary, _ = r.opts.Aggregator.Summary(name)
	if r.opts.Metrics != nil {
		for i, p := range co.Average {
			r.opts.Metrics.InterpolatedAverage.WithLabelValues(name, fmt.Sprintf("%.1f", evaluation.RecallLevel(i))).Set(p)
		}
	}
	if r.opts.Events != nil {
		r.opts.Events.Track(out.RunID, analytics.ConfigurationEvent{
			Type:      analytics.EventConfigurationEvaluated,
			RunID:     out.RunID,
			Task:      settings.TargetTask,
			Summary:   co.Summary,
			Timestamp: time.Now().UTC(),
		})
	}
	report.average(name, len(queries), co.Average)
	evalSpan.SetAttr("mean_average_precision", co.Summary.MeanAveragePrecision)
	return co, nil
}

// finish flushes pending events and persists the run.
func (r *Runner) finish(ctx context.Context, log *slog.Logger, out *Outcome) {
	if r.opts.Events != nil {
		err := resilience.WithTimeout(ctx, r.opts.SaveTimeout, "flush-events", r.opts.Events.Flush)
		if err != nil {
			log.Error("publishing evaluation events failed", "error", err)
		}
	}
	if r.opts.Store == nil {
		return
	}
	run := store.Run{
		ID:         out.RunID,
		Corpus:     out.Corpus,
		Task:       out.Task,
		CapturedAt: time.Now().UTC(),
	}
	for _, co := range out.Configurations {
		run.Summaries = append(run.Summaries, co.Summary)
		for _, q := range co.Queries {
			run.Queries = append(run.Queries, q.Event)
		}
	}
	err := resilience.WithTimeout(ctx, r.opts.SaveTimeout, "save-run", func(ctx context.Context) error {
		return r.opts.Store.SaveRun(ctx, run)
	})
	if err != nil {
		log.Error("saving run failed", "error", err)
	}
}

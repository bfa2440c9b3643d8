package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/experiment"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/redis"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	feedPath := flag.String("feed", "", "path to the XML collection feed (overrides experiment.feedPath)")
	hold := flag.Bool("hold", false, "keep serving metrics and /summary after the run until interrupted")
	fresh := flag.Bool("fresh", false, "drop cached results before running")
	reuse := flag.Bool("reuse", false, "load a persisted segment built from the same feed and settings instead of rebuilding")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return apperrors.ExitConfig
	}
	if *feedPath != "" {
		cfg.Experiment.FeedPath = *feedPath
	}
	if *reuse {
		cfg.Indexer.Reuse = true
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
			return apperrors.ExitConfig
		}
	}

	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("harness")
	if cfg.Experiment.FeedPath == "" {
		log.Error("no feed given: set -feed or experiment.feedPath")
		return apperrors.ExitConfig
	}
	log.Info("starting evaluation harness",
		"feed", cfg.Experiment.FeedPath,
		"task", cfg.Experiment.TargetTask,
		"configurations", len(cfg.Experiment.Configurations),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := collection.ParseFile(cfg.Experiment.FeedPath)
	if err != nil {
		log.Error("failed to read feed", "error", err)
		return apperrors.ExitCode(err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
	}
	engine := indexer.NewEngine(cfg.Indexer, m)
	aggregator := analytics.NewAggregator()
	opts := experiment.Options{
		Aggregator: aggregator,
		Metrics:    m,
		Report:     os.Stdout,
		Tracing:    cfg.Tracing.Enabled,
	}

	checker := health.NewChecker()
	checker.Register("index_engine", engine.HealthCheck)

	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts.Cache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			if *fresh {
				if err := opts.Cache.Invalidate(ctx); err != nil {
					log.Warn("cache invalidation failed", "error", err)
				}
			}
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			log.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var runs *store.Store
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			log.Warn("postgres unavailable, runs will not be stored", "error", err)
		} else {
			defer db.Close()
			s := store.NewStore(db, m)
			if err := s.EnsureSchema(ctx); err != nil {
				log.Warn("run store schema unavailable, runs will not be stored", "error", err)
			} else {
				runs = s
				opts.Store = runs
				checker.Register("postgres", health.PingCheck(db.Ping, true))
				log.Info("run store enabled", "database", cfg.Postgres.Database)
			}
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EvaluationEvents)
		defer producer.Close()
		events := collector.NewBatchCollector(producer, collector.Config{}, m)
		collectCtx, cancelCollect := context.WithCancel(ctx)
		events.Start(collectCtx)
		defer func() {
			cancelCollect()
			events.Close()
		}()
		opts.Events = events
		log.Info("evaluation events enabled", "topic", cfg.Kafka.Topics.EvaluationEvents)
	}

	if cfg.Metrics.Enabled {
		mux := metrics.NewMux(checker)
		mux.HandleFunc("GET /summary", analytics.NewHandler(aggregator).Summary)
		if runs != nil {
			mux.HandleFunc("GET /runs", store.NewHandler(runs).Runs)
		}
		handler := middleware.Chain(mux, middleware.Metrics(m), middleware.Timeout(10*time.Second))
		shutdown := metrics.StartServer(cfg.Metrics.Port, handler)
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	previous := previousRuns(ctx, runs, cfg.Experiment.Configurations)

	runner := experiment.NewRunner(cfg.Experiment, engine, opts)
	outcome, err := runner.Run(ctx, records)
	if err != nil {
		log.Error("evaluation run failed", "error", err)
		return apperrors.ExitCode(err)
	}
	for _, co := range outcome.Configurations {
		name := co.Settings.Name()
		attrs := []any{
			"run_id", outcome.RunID,
			"configuration", name,
			"map", co.Summary.MeanAveragePrecision,
			"reused_segment", co.Reused,
			"zero_result_queries", co.Summary.ZeroResultQueries,
		}
		if prev, ok := previous[name]; ok {
			attrs = append(attrs,
				"previous_run_id", prev.RunID,
				"map_delta", co.Summary.MeanAveragePrecision-prev.Summary.MeanAveragePrecision,
			)
		}
		log.Info("configuration evaluated", attrs...)
	}

	if opts.Cache != nil {
		hits, misses := opts.Cache.Stats()
		log.Info("result cache", "hits", hits, "misses", misses)
	}

	if *hold && cfg.Metrics.Enabled {
		log.Info("run complete, serving metrics until interrupted", "port", cfg.Metrics.Port)
		<-ctx.Done()
	}
	log.Info("evaluation harness stopped", "run_id", outcome.RunID)
	return apperrors.ExitOK
}

// previousRuns loads the last stored summary of each configuration so the
// new run can be compared against it. Lookup failures only lose the
// comparison.
func previousRuns(ctx context.Context, runs *store.Store, configurations []config.RunConfig) map[string]store.StoredSummary {
	out := make(map[string]store.StoredSummary)
	if runs == nil {
		return out
	}
	for _, rc := range configurations {
		name := indexer.SettingsFrom(rc, 0).Name()
		prev, err := runs.LatestRun(ctx, name)
		if err != nil {
			slog.Warn("loading previous run failed", "configuration", name, "error", err)
			continue
		}
		if prev != nil {
			out[name] = *prev
		}
	}
	return out
}

// Package config loads and validates harness configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Experiment, Indexer, Postgres, Kafka, Redis, Logging, etc.).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Ranking model selectors accepted in configuration files.
const (
	ModelVSM         = "vsm"
	ModelBM25        = "bm25"
	ModelLMDirichlet = "lm_dirichlet"
)

// Config is the top-level harness configuration.
type Config struct {
	Experiment ExperimentConfig `yaml:"experiment"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ExperimentConfig describes one batch run: which feed to read, which task
// to evaluate, which index configurations to build and which queries to run
// against each of them.
type ExperimentConfig struct {
	FeedPath       string        `yaml:"feedPath"`
	TargetTask     int           `yaml:"targetTask"`
	Cutoffs        []int         `yaml:"cutoffs"`
	Configurations []RunConfig   `yaml:"configurations"`
	Queries        []QueryConfig `yaml:"queries"`
	// Workers bounds how many queries run at once against a built index.
	Workers        int           `yaml:"workers"`
}

// RunConfig selects one ranking model and one stopword/stemming combination.
type RunConfig struct {
	Model     string `yaml:"model"`
	Stopwords bool   `yaml:"stopwords"`
	Stemming  bool   `yaml:"stemming"`
}

// Name returns a stable human-readable label such as "bm25+stop-stem".
func (r RunConfig) Name() string {
	var b strings.Builder
	b.WriteString(r.Model)
	if r.Stopwords {
		b.WriteString("+stop")
	} else {
		b.WriteString("-stop")
	}
	if r.Stemming {
		b.WriteString("+stem")
	} else {
		b.WriteString("-stem")
	}
	return b.String()
}

// QueryConfig is one boolean query expressed per field. Include terms are
// OR-combined, Exclude terms eliminate documents, Require terms must match.
type QueryConfig struct {
	Name    string              `yaml:"name"`
	Include map[string][]string `yaml:"include"`
	Exclude map[string][]string `yaml:"exclude"`
	Require map[string][]string `yaml:"require"`
}

// IndexerConfig controls where the index is persisted between builds.
// With Reuse on, a persisted segment built from the same feed and settings
// is loaded instead of rebuilt.
type IndexerConfig struct {
	DataDir string `yaml:"dataDir"`
	Persist bool   `yaml:"persist"`
	Reuse   bool   `yaml:"reuse"`
}

// PostgresConfig holds PostgreSQL connection parameters for the run store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings for evaluation events.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	EvaluationEvents string `yaml:"evaluationEvents"`
}

// RedisConfig holds Redis connection and result-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles span logging for each configuration run.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalises model selectors and rejects settings no run can use.
// An unrecognised ranking model falls back to VSM with a warning.
func (c *Config) Validate() error {
	if len(c.Experiment.Configurations) == 0 {
		return fmt.Errorf("%w: experiment.configurations is empty", apperrors.ErrInvalidConfig)
	}
	for i := range c.Experiment.Configurations {
		rc := &c.Experiment.Configurations[i]
		model := strings.ToLower(strings.TrimSpace(rc.Model))
		switch model {
		case ModelVSM, ModelBM25, ModelLMDirichlet:
			rc.Model = model
		case "lm-dirichlet", "lmdirichlet", "lm":
			rc.Model = ModelLMDirichlet
		default:
			slog.Warn("unrecognised ranking model, using vsm",
				"model", rc.Model,
				"configuration", i,
			)
			rc.Model = ModelVSM
		}
	}
	seen := make(map[string]int, len(c.Experiment.Configurations))
	for i, rc := range c.Experiment.Configurations {
		name := rc.Name()
		if first, ok := seen[name]; ok {
			return fmt.Errorf("%w: configurations %d and %d are both %s",
				apperrors.ErrInvalidConfig, first, i, name)
		}
		seen[name] = i
	}
	for _, k := range c.Experiment.Cutoffs {
		if k <= 0 {
			return fmt.Errorf("%w: cutoff %d must be positive", apperrors.ErrInvalidConfig, k)
		}
	}
	if c.Experiment.Workers <= 0 {
		c.Experiment.Workers = 1
	}
	if c.Indexer.Reuse && !c.Indexer.Persist {
		return fmt.Errorf("%w: indexer.reuse needs indexer.persist", apperrors.ErrInvalidConfig)
	}
	if c.Indexer.Persist && c.Indexer.DataDir == "" {
		return fmt.Errorf("%w: indexer.dataDir is required when persist is on", apperrors.ErrInvalidConfig)
	}
	return nil
}

// defaultConfig reproduces the classic experiment: three ranking models
// crossed with three stopword/stemming combinations, precision at 10..40,
// and the human/motion query for task 1.
func defaultConfig() *Config {
	configs := make([]RunConfig, 0, 9)
	for _, model := range []string{ModelVSM, ModelBM25, ModelLMDirichlet} {
		configs = append(configs,
			RunConfig{Model: model, Stopwords: true, Stemming: true},
			RunConfig{Model: model, Stopwords: false, Stemming: true},
			RunConfig{Model: model, Stopwords: true, Stemming: false},
		)
	}
	return &Config{
		Experiment: ExperimentConfig{
			TargetTask:     1,
			Workers:        1,
			Cutoffs:        []int{10, 20, 30, 40},
			Configurations: configs,
			Queries: []QueryConfig{
				{
					Name: "human-motion",
					Include: map[string][]string{
						"title":         {"human", "interface", "motion"},
						"abstract_text": {"human", "interaction", "motion"},
					},
				},
			},
		},
		Indexer: IndexerConfig{
			DataDir: "index",
			Persist: true,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "irharness",
			User:            "irharness",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				EvaluationEvents: "evaluation-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 4,
			CacheTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// applyEnvOverrides reads IRH_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IRH_FEED_PATH"); v != "" {
		cfg.Experiment.FeedPath = v
	}
	if v := os.Getenv("IRH_TARGET_TASK"); v != "" {
		if task, err := strconv.Atoi(v); err == nil {
			cfg.Experiment.TargetTask = task
		}
	}
	if v := os.Getenv("IRH_INDEX_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("IRH_INDEX_REUSE"); v != "" {
		cfg.Indexer.Reuse = parseBool(v, cfg.Indexer.Reuse)
	}
	if v := os.Getenv("IRH_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("IRH_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("IRH_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("IRH_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("IRH_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("IRH_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("IRH_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("IRH_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("IRH_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("IRH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("IRH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("IRH_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IRH_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("IRH_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

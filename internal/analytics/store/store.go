// Package store persists evaluation runs to PostgreSQL so runs can be
// compared across feeds and code changes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/analytics"
	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/resilience"
)

// Schema creates the run tables. EnsureSchema applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS evaluation_runs (
    id            BIGSERIAL PRIMARY KEY,
    run_id        TEXT NOT NULL,
    corpus        TEXT NOT NULL,
    task          INT NOT NULL,
    configuration TEXT NOT NULL,
    summary       JSONB NOT NULL,
    captured_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (run_id, configuration)
);
CREATE TABLE IF NOT EXISTS query_evaluations (
    id            BIGSERIAL PRIMARY KEY,
    run_id        TEXT NOT NULL,
    configuration TEXT NOT NULL,
    query         TEXT NOT NULL,
    data          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evaluation_runs_configuration
    ON evaluation_runs (configuration, captured_at DESC);
`

// Run is everything one harness invocation produced.
type Run struct {
	ID         string
	Corpus     string
	Task       int
	CapturedAt time.Time
	Summaries  []analytics.ConfigurationSummary
	Queries    []analytics.QueryEvent
}

// StoredSummary is one configuration row read back from the store.
type StoredSummary struct {
	RunID      string                         `json:"run_id"`
	Corpus     string                         `json:"corpus"`
	Task       int                            `json:"task"`
	CapturedAt time.Time                      `json:"captured_at"`
	Summary    analytics.ConfigurationSummary `json:"summary"`
}

type Store struct {
	db      *postgres.Client
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewStore creates a run store. m may be nil.
func NewStore(db *postgres.Client, m *metrics.Metrics) *Store {
	return &Store{
		db:      db,
		retry:   resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		metrics: m,
		logger:  slog.Default().With("component", "run-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: creating run tables: %v", apperrors.ErrStorage, err)
	}
	return nil
}

// SaveRun writes a run in one transaction, retrying transient failures.
// Saving the same run id twice replaces the earlier rows.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	rows, err := encodeRun(run)
	if err != nil {
		s.count("error")
		return err
	}

	err = resilience.Retry(ctx, "save-run", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM query_evaluations WHERE run_id = $1`, run.ID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM evaluation_runs WHERE run_id = $1`, run.ID); err != nil {
				return err
			}
			for _, r := range rows.summaries {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO evaluation_runs (run_id, corpus, task, configuration, summary, captured_at)
					 VALUES ($1, $2, $3, $4, $5, $6)`,
					run.ID, run.Corpus, run.Task, r.configuration, r.data, run.CapturedAt.UTC(),
				); err != nil {
					return err
				}
			}
			for _, r := range rows.queries {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO query_evaluations (run_id, configuration, query, data) VALUES ($1, $2, $3, $4)`,
					run.ID, r.configuration, r.query, r.data,
				); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		s.count("error")
		return fmt.Errorf("%w: saving run %s: %v", apperrors.ErrStorage, run.ID, err)
	}

	s.count("ok")
	s.logger.Info("run saved",
		"run_id", run.ID,
		"configurations", len(run.Summaries),
		"queries", len(run.Queries),
	)
	return nil
}

// LatestRun loads the most recent summary stored for configuration.
// Returns nil, nil if the configuration has never been stored.
func (s *Store) LatestRun(ctx context.Context, configuration string) (*StoredSummary, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT run_id, corpus, task, captured_at, summary FROM evaluation_runs
		 WHERE configuration = $1 ORDER BY captured_at DESC LIMIT 1`,
		configuration,
	)
	stored, err := scanSummary(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying latest run: %v", apperrors.ErrStorage, err)
	}
	return stored, nil
}

// ListRuns returns the newest limit summary rows across configurations.
// Corrupt rows are skipped.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]StoredSummary, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT run_id, corpus, task, captured_at, summary FROM evaluation_runs
		 ORDER BY captured_at DESC, configuration LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing runs: %v", apperrors.ErrStorage, err)
	}
	defer rows.Close()

	var out []StoredSummary
	for rows.Next() {
		stored, err := scanSummary(rows.Scan)
		if err != nil {
			s.logger.Warn("skipping corrupt run row", "error", err)
			continue
		}
		out = append(out, *stored)
	}
	return out, rows.Err()
}

func (s *Store) count(status string) {
	if s.metrics != nil {
		s.metrics.RunsStoredTotal.WithLabelValues(status).Inc()
	}
}

type summaryRow struct {
	configuration string
	data          []byte
}

type queryRow struct {
	configuration string
	query         string
	data          []byte
}

type encodedRun struct {
	summaries []summaryRow
	queries   []queryRow
}

func encodeRun(run Run) (*encodedRun, error) {
	if run.ID == "" {
		return nil, fmt.Errorf("%w: run id is empty", apperrors.ErrInvalidConfig)
	}
	out := &encodedRun{}
	for _, summary := range run.Summaries {
		data, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("marshaling summary %s: %w", summary.Configuration, err)
		}
		out.summaries = append(out.summaries, summaryRow{configuration: summary.Configuration, data: data})
	}
	for _, event := range run.Queries {
		data, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("marshaling query event %s: %w", event.Query, err)
		}
		out.queries = append(out.queries, queryRow{
			configuration: event.Configuration,
			query:         event.Query,
			data:          data,
		})
	}
	return out, nil
}

func scanSummary(scan func(dest ...any) error) (*StoredSummary, error) {
	var (
		stored StoredSummary
		data   []byte
	)
	if err := scan(&stored.RunID, &stored.Corpus, &stored.Task, &stored.CapturedAt, &data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &stored.Summary); err != nil {
		return nil, fmt.Errorf("unmarshaling summary: %w", err)
	}
	return &stored, nil
}

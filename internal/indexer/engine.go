package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/metrics"
)

// Settings fully determine one index build.
type Settings struct {
	Model      ranker.Kind
	Stopwords  bool
	Stemming   bool
	TargetTask int
}

// SettingsFrom converts a configured run. Unknown model selectors fall back
// to VSM with a warning.
func SettingsFrom(rc config.RunConfig, targetTask int) Settings {
	kind, err := ranker.ParseKind(rc.Model)
	if err != nil {
		slog.Warn("falling back to vsm", "error", err)
	}
	return Settings{
		Model:      kind,
		Stopwords:  rc.Stopwords,
		Stemming:   rc.Stemming,
		TargetTask: targetTask,
	}
}

func (s Settings) Pipeline() tokenizer.Pipeline {
	return tokenizer.New(tokenizer.Options{
		RemoveStopwords: s.Stopwords,
		Stem:            s.Stemming,
	})
}

// Name mirrors config.RunConfig.Name.
func (s Settings) Name() string {
	return config.RunConfig{
		Model:     s.Model.String(),
		Stopwords: s.Stopwords,
		Stemming:  s.Stemming,
	}.Name()
}

// meta describes a segment built from corpus under s.
func (s Settings) meta(corpus string) segment.Meta {
	return segment.Meta{
		Corpus:     corpus,
		Model:      s.Model.String(),
		Stopwords:  s.Stopwords,
		Stemming:   s.Stemming,
		TargetTask: s.TargetTask,
	}
}

// ErrStaleSegment is returned by Load when the persisted segment was built
// from another corpus or with other settings.
var ErrStaleSegment = errors.New("segment does not match corpus and settings")

// Engine owns the single current index. Every Rebuild discards the previous
// index, both in memory and in the data directory.
type Engine struct {
	cfg     config.IndexerConfig
	writer  *segment.Writer
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu          sync.RWMutex
	current     *index.Index
	settings    Settings
	model       ranker.Model
	segmentPath string
}

// NewEngine creates an engine. m may be nil.
func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:     cfg,
		writer:  segment.NewWriter(cfg.DataDir),
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// Rebuild indexes records under s. A malformed record fails with an error
// wrapping ErrMalformedRecord; failure to clear or write the data directory
// wraps ErrStorage. On failure no index is current.
func (e *Engine) Rebuild(ctx context.Context, records []collection.DocumentRecord, s Settings) (*index.Index, error) {
	start := time.Now()
	log := logger.ForRun(ctx, e.logger).With("configuration", s.Name())

	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
	e.model = nil
	e.segmentPath = ""

	ix, err := index.Build(records, index.BuildOptions{
		Pipeline:   s.Pipeline(),
		TargetTask: s.TargetTask,
	})
	if err != nil {
		e.recordBuild("error", start, 0)
		return nil, fmt.Errorf("building index: %w", err)
	}

	if e.cfg.Persist {
		path, err := e.persist(ix, s.meta(collection.Fingerprint(records)))
		if err != nil {
			e.recordBuild("error", start, 0)
			return nil, err
		}
		e.segmentPath = path
	}

	e.current = ix
	e.settings = s
	e.model = ranker.New(s.Model)
	e.recordBuild("ok", start, ix.DocumentCount())

	log.Info("index rebuilt",
		"task", s.TargetTask,
		"input_records", len(records),
		"indexed_docs", ix.DocumentCount(),
		"relevant_docs", ix.RelevantCount(),
		"segment", e.segmentPath,
		"duration", time.Since(start),
	)
	return ix, nil
}

// Prepare makes an index for s current. When the engine persists with
// reuse on, a segment in the data directory built from the same records
// under the same settings is loaded instead of rebuilt; any other segment
// is replaced. reused reports which happened.
func (e *Engine) Prepare(ctx context.Context, records []collection.DocumentRecord, s Settings) (ix *index.Index, reused bool, err error) {
	if e.cfg.Persist && e.cfg.Reuse {
		ix, err := e.Load(ctx, s, collection.Fingerprint(records))
		if err == nil {
			return ix, true, nil
		}
		logger.ForRun(ctx, e.logger).Info("segment not reusable, rebuilding",
			"configuration", s.Name(),
			"reason", err,
		)
	}
	ix, err = e.Rebuild(ctx, records, s)
	return ix, false, err
}

// persist removes earlier segment files from the data directory and writes
// ix as a single segment. Other files in the directory are left alone.
func (e *Engine) persist(ix *index.Index, meta segment.Meta) (string, error) {
	if err := os.MkdirAll(e.cfg.DataDir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", apperrors.ErrStorage, e.cfg.DataDir, err)
	}
	if err := clearSegments(e.cfg.DataDir); err != nil {
		return "", err
	}
	name, err := e.writer.Write(ix.Snapshot(), ix.Documents(), meta)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}
	return filepath.Join(e.cfg.DataDir, name), nil
}

// isSegmentFile matches finished segments and temp files left by an
// interrupted write.
func isSegmentFile(name string) bool {
	return strings.HasSuffix(name, segment.Extension) || strings.HasSuffix(name, segment.Extension+".tmp")
}

func clearSegments(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", apperrors.ErrStorage, dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isSegmentFile(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("%w: clearing %s: %v", apperrors.ErrStorage, dir, err)
		}
	}
	return nil
}

// Load restores the most recent segment in the data directory and makes it
// current. The segment must have been built under s and, unless corpus is
// empty, from records with that fingerprint; otherwise the error wraps
// ErrStaleSegment. Missing or corrupt segments wrap ErrStorage.
func (e *Engine) Load(ctx context.Context, s Settings, corpus string) (*index.Index, error) {
	path, err := latestSegment(e.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	reader, err := segment.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}
	defer reader.Close()

	want := s.meta(corpus)
	got := reader.Meta()
	if corpus == "" {
		want.Corpus = got.Corpus
	}
	if got != want {
		return nil, fmt.Errorf("%w: %s built as %+v", ErrStaleSegment, filepath.Base(path), got)
	}

	docs, err := reader.Documents()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}
	entries, err := reader.Entries()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}
	ix, err := index.Restore(docs, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}

	e.mu.Lock()
	e.current = ix
	e.settings = s
	e.model = ranker.New(s.Model)
	e.segmentPath = path
	e.mu.Unlock()

	logger.ForRun(ctx, e.logger).Info("index loaded",
		"configuration", s.Name(),
		"segment", path,
		"terms", reader.Terms(),
		"docs", reader.DocCount(),
	)
	return ix, nil
}

func latestSegment(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", apperrors.ErrStorage, dir, err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.Extension) {
			segFiles = append(segFiles, entry.Name())
		}
	}
	if len(segFiles) == 0 {
		return "", fmt.Errorf("%w: no segment in %s", apperrors.ErrStorage, dir)
	}
	sort.Strings(segFiles)
	return filepath.Join(dir, segFiles[len(segFiles)-1]), nil
}

func (e *Engine) Model() ranker.Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// SegmentPath is empty when persistence is off.
func (e *Engine) SegmentPath() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.segmentPath
}

// HealthCheck reports down until an index is current, and degraded when
// persistence is on but the segment file has gone missing.
func (e *Engine) HealthCheck(ctx context.Context) health.ComponentHealth {
	e.mu.RLock()
	current, path, settings := e.current, e.segmentPath, e.settings
	e.mu.RUnlock()
	if current == nil {
		return health.ComponentHealth{Status: health.StatusDown, Message: "no index built"}
	}
	if e.cfg.Persist {
		if _, err := os.Stat(path); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
	}
	return health.ComponentHealth{
		Status:  health.StatusUp,
		Message: fmt.Sprintf("%s: %d documents", settings.Name(), current.DocumentCount()),
	}
}

func (e *Engine) recordBuild(status string, start time.Time, docs int) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	e.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	e.metrics.DocsIndexedTotal.Add(float64(docs))
}

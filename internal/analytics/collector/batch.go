// Package collector buffers evaluation events and publishes them to Kafka in
// batches behind a circuit breaker.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/resilience"
)

// Publisher is the part of kafka.Producer the collector uses.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Config tunes batching. Zero values take defaults.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	// MaxBuffered caps the events kept for retry after failed flushes.
	MaxBuffered int
	Breaker     resilience.CircuitBreakerConfig
}

// BatchCollector accumulates events and flushes them when the batch reaches
// BatchSize, on every FlushInterval tick once started, and on Flush.
type BatchCollector struct {
	publisher     Publisher
	breaker       *resilience.CircuitBreaker
	metrics       *metrics.Metrics
	mu            sync.Mutex
	flushMu       sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	maxBuffered   int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	started       bool
}

// NewBatchCollector creates a collector over publisher. m may be nil.
func NewBatchCollector(publisher Publisher, cfg Config, m *metrics.Metrics) *BatchCollector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxBuffered < cfg.BatchSize {
		cfg.MaxBuffered = cfg.BatchSize * 3
	}
	bc := &BatchCollector{
		publisher:     publisher,
		breaker:       resilience.NewCircuitBreaker("event-publisher", cfg.Breaker),
		metrics:       m,
		buffer:        make([]kafka.Event, 0, cfg.BatchSize),
		batchSize:     cfg.BatchSize,
		maxBuffered:   cfg.MaxBuffered,
		flushInterval: cfg.FlushInterval,
		logger:        slog.Default().With("component", "batch-collector"),
		done:          make(chan struct{}),
	}
	bc.breaker.OnStateChange = func(name string, state resilience.State) {
		bc.logger.Warn("publisher circuit changed state", "breaker", name, "state", state.String())
	}
	return bc
}

// Start launches the background flush loop, which makes a final flush when
// ctx is cancelled.
func (bc *BatchCollector) Start(ctx context.Context) {
	bc.mu.Lock()
	bc.started = true
	bc.mu.Unlock()
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bc.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("batch collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// Track buffers an event. A full batch triggers a flush in the background.
func (bc *BatchCollector) Track(key string, value any) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{Key: key, Value: value})
	shouldFlush := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if shouldFlush {
		go bc.flush(context.Background())
	}
}

// Flush waits for any in-flight flush, then publishes everything buffered,
// one batch at a time, and returns the first failure. Failed events stay
// buffered.
func (bc *BatchCollector) Flush(ctx context.Context) error {
	bc.flushMu.Lock()
	defer bc.flushMu.Unlock()
	for bc.BufferLen() > 0 {
		if err := bc.flushLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for the loop started by Start to make its final flush.
func (bc *BatchCollector) Close() {
	bc.mu.Lock()
	started := bc.started
	bc.mu.Unlock()
	if started {
		<-bc.done
	}
}

func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

func (bc *BatchCollector) BreakerState() resilience.State {
	return bc.breaker.GetState()
}

func (bc *BatchCollector) flush(ctx context.Context) error {
	bc.flushMu.Lock()
	defer bc.flushMu.Unlock()
	return bc.flushLocked(ctx)
}

// flushLocked publishes one batch. The caller holds flushMu.
func (bc *BatchCollector) flushLocked(ctx context.Context) error {
	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return nil
	}
	n := len(bc.buffer)
	if n > bc.batchSize {
		n = bc.batchSize
	}
	batch := make([]kafka.Event, n)
	copy(batch, bc.buffer[:n])
	bc.buffer = bc.buffer[n:]
	bc.mu.Unlock()

	err := bc.breaker.Execute(ctx, func(ctx context.Context) error {
		return bc.publisher.PublishBatch(ctx, batch)
	})
	if err != nil {
		status := "error"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			status = "rejected"
		}
		bc.count(status, len(batch))
		bc.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		bc.requeue(batch)
		return err
	}

	bc.count("ok", len(batch))
	bc.logger.Debug("batch flushed", "events", len(batch))
	return nil
}

// requeue puts a failed batch back at the head of the buffer, dropping the
// newest events beyond maxBuffered.
func (bc *BatchCollector) requeue(batch []kafka.Event) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.buffer = append(batch, bc.buffer...)
	if len(bc.buffer) > bc.maxBuffered {
		dropped := len(bc.buffer) - bc.maxBuffered
		bc.buffer = bc.buffer[:bc.maxBuffered]
		bc.count("dropped", dropped)
		bc.logger.Warn("buffer overflow, events dropped", "dropped", dropped)
	}
}

func (bc *BatchCollector) count(status string, n int) {
	if bc.metrics != nil {
		bc.metrics.EventsPublishedTotal.WithLabelValues(status).Add(float64(n))
	}
}

package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

// Config configures the batching behavior of a Sink.
type Config struct {
	MaxBatchSize int
	FlushTimeout time.Duration
}

type pending struct {
	event domain.Event
	done  chan error
}

// inserter performs the actual batch write. The production path is
// (*Client).insertBatch; tests substitute a fake to avoid a live
// ClickHouse connection.
type inserter func(ctx context.Context, events []domain.Event) error

// Sink is a core.TerminalConsumer that buffers events and flushes them to
// ClickHouse in batches, either once MaxBatchSize is reached or on each
// FlushTimeout tick of Run (a size-triggered flush does not reset that
// tick). Process blocks until the
// batch its event belongs to has been flushed, so its return value
// reflects that batch's actual outcome — safe to call concurrently from
// every dispatcher shard at once.
type Sink struct {
	insert inserter
	cfg    Config
	log    *zap.Logger

	mu     sync.Mutex
	buffer []pending
}

// NewSink wraps a ClickHouse connection as a batching TerminalConsumer.
func NewSink(client *Client, cfg Config, log *zap.Logger) *Sink {
	return newSink(client.insertBatch, cfg, log)
}

func newSink(insert inserter, cfg Config, log *zap.Logger) *Sink {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}
	return &Sink{insert: insert, cfg: cfg, log: log}
}

// Run drives the timeout-based flush until ctx is cancelled, at which
// point it flushes whatever remains buffered and returns.
func (s *Sink) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flushBuffered(context.Background())
			return
		case <-ticker.C:
			s.flushBuffered(context.Background())
		}
	}
}

func (s *Sink) flushBuffered(ctx context.Context) {
	s.mu.Lock()
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	if len(batch) > 0 {
		s.flush(ctx, batch)
	}
}

// Process implements core.TerminalConsumer.
func (s *Sink) Process(ctx context.Context, event domain.Event) (domain.Event, error) {
	done := make(chan error, 1)

	s.mu.Lock()
	s.buffer = append(s.buffer, pending{event: event, done: done})
	var toFlush []pending
	if len(s.buffer) >= s.cfg.MaxBatchSize {
		toFlush = s.buffer
		s.buffer = nil
	}
	s.mu.Unlock()

	if toFlush != nil {
		s.flush(ctx, toFlush)
	}

	select {
	case err := <-done:
		return event, err
	case <-ctx.Done():
		return event, ctx.Err()
	}
}

func (s *Sink) flush(ctx context.Context, batch []pending) {
	events := make([]domain.Event, len(batch))
	for i, p := range batch {
		events[i] = p.event
	}

	err := s.insert(ctx, events)
	if err != nil {
		s.log.Error("failed to insert batch", zap.Error(err), zap.Int("event_count", len(events)))
	}
	for _, p := range batch {
		p.done <- err
	}
}

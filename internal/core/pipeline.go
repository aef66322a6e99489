package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

const defaultDedupWindow = 10 * time.Second

// Options configures a Pipeline. Workers and Terminal are required;
// everything else has a documented default.
type Options struct {
	// Workers is the shard/worker count N. Must satisfy
	// N*(1/service_time) >= arrival_rate for the pipeline to stay bounded.
	Workers int
	// Terminal is the user-supplied consumer at the end of the chain.
	Terminal TerminalConsumer
	// DedupWindow is the sliding dedup window; defaults to 10s.
	DedupWindow time.Duration
	// GuardEnabled wires the optional ConcurrencyGuard oracle stage.
	GuardEnabled bool
	// GuardWait is the bounded wait (capped at 1s by the caller) the guard
	// spends on a contended mutex before reporting a violation and
	// skipping the event. Zero means report-and-skip immediately, the
	// default for a correctly wired pipeline.
	GuardWait time.Duration
	// QueueBound, if > 0, bounds each shard's queue and applies
	// OverflowPolicy to events arriving once it's full. Zero means
	// unbounded (the default).
	QueueBound     int
	OverflowPolicy OverflowPolicy
	// Logger receives stage diagnostics; defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics receives the pipeline's observability hooks; a fresh,
	// unregistered set is created if nil.
	Metrics *Metrics
}

// Pipeline is the assembled chain: DeduplicationFilter -> ShardedDispatcher
// -> (ConcurrencyGuard) -> TerminalConsumer. It is the single entry point a
// producer registers with.
type Pipeline struct {
	head       Stage
	dispatcher *ShardedDispatcher
	metrics    *Metrics
	cancel     context.CancelFunc
}

// Build assembles the pipeline outside-in: terminal, then the optional
// guard, then the dispatcher, then the dedup filter at the head.
func Build(ctx context.Context, opts Options) (*Pipeline, error) {
	if opts.Terminal == nil {
		return nil, errors.New("core: Options.Terminal is required")
	}
	if opts.Workers <= 0 {
		return nil, errors.New("core: Options.Workers must be >= 1")
	}
	window := opts.DedupWindow
	if window <= 0 {
		window = defaultDedupWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	pipelineCtx, cancel := context.WithCancel(ctx)

	var tail Stage = &terminalStage{consumer: opts.Terminal, metrics: metrics}
	if opts.GuardEnabled {
		tail = NewConcurrencyGuard(tail, opts.GuardWait, logger, metrics)
	}

	dispatcher := NewShardedDispatcher(pipelineCtx, tail, opts.Workers, opts.QueueBound, opts.OverflowPolicy, logger, metrics)
	dedup := NewDeduplicationFilter(dispatcher, window, metrics)

	return &Pipeline{head: dedup, dispatcher: dispatcher, metrics: metrics, cancel: cancel}, nil
}

// Accept is what the producer calls: non-blocking with respect to
// downstream work, may briefly block on dedup/queue synchronization.
func (p *Pipeline) Accept(ctx context.Context, event domain.Event) error {
	return p.head.Accept(ctx, event)
}

// Close stops accepting new events, drains every shard to completion, and
// joins all worker goroutines.
func (p *Pipeline) Close(ctx context.Context) error {
	defer p.cancel()
	return p.dispatcher.Close(ctx)
}

// Metrics returns the observability hooks backing this pipeline, for
// registration on a Prometheus registry.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

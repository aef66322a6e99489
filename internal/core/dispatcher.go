package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
	"go.uber.org/zap"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

// OverflowPolicy governs what happens when a bounded shard queue is full.
type OverflowPolicy int

const (
	// OverflowBlock blocks the caller (in Accept) until space frees up.
	OverflowBlock OverflowPolicy = iota
	// OverflowDropNewest drops the incoming event and reports it via the
	// dispatcher_tasks_dropped_total counter.
	OverflowDropNewest
)

// ParseOverflowPolicy parses the configuration string form of OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "block":
		return OverflowBlock, nil
	case "drop_newest":
		return OverflowDropNewest, nil
	default:
		return OverflowBlock, fmt.Errorf("core: unknown overflow policy %q", s)
	}
}

const (
	shardRunning int32 = iota
	shardDraining
	shardStopped
)

// shard owns one worker's FIFO queue. The queue is an unbounded deque by
// default (bound == 0); a positive bound applies the configured overflow
// policy instead of growing forever.
type shard struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  deque.Deque[domain.Event]
	state  int32
	bound  int
	policy OverflowPolicy
	depth  atomic.Int64
	// fatal is set once a downstream KindInternal error terminates this
	// shard's worker. Accept consults it to distinguish a dead shard from
	// routine drop_newest backpressure, both of which make enqueue fail.
	fatal atomic.Bool
}

func newShard(bound int, policy OverflowPolicy) *shard {
	s := &shard{bound: bound, policy: policy}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// enqueue adds event to the tail of the queue, honoring the overflow
// policy when bounded. Returns false if the event was dropped (bounded,
// drop_newest, full) or if the shard is no longer accepting work.
func (s *shard) enqueue(event domain.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if atomic.LoadInt32(&s.state) != shardRunning {
		return false
	}

	for s.bound > 0 && s.queue.Len() >= s.bound {
		if s.policy == OverflowDropNewest {
			return false
		}
		s.cond.Wait()
		if atomic.LoadInt32(&s.state) != shardRunning {
			return false
		}
	}

	s.queue.PushBack(event)
	s.depth.Store(int64(s.queue.Len()))
	s.cond.Signal()
	return true
}

// drain transitions the shard to Draining: no further enqueue succeeds, but
// the worker keeps processing whatever is already queued.
func (s *shard) drain() {
	s.mu.Lock()
	atomic.StoreInt32(&s.state, shardDraining)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// run is the shard worker loop: drain the queue in FIFO order, invoking
// next synchronously per task, until Draining and empty.
func (s *shard) run(ctx context.Context, index int, next Stage, logger *zap.Logger, metrics *Metrics, onDepth func(index int, depth int64)) {
	for {
		s.mu.Lock()
		for s.queue.Len() == 0 && atomic.LoadInt32(&s.state) == shardRunning {
			s.cond.Wait()
		}
		if s.queue.Len() == 0 {
			s.mu.Unlock()
			atomic.StoreInt32(&s.state, shardStopped)
			return
		}
		event := s.queue.PopFront()
		depth := int64(s.queue.Len())
		s.depth.Store(depth)
		s.cond.Signal() // wake a blocked enqueuer, if any
		s.mu.Unlock()

		onDepth(index, depth)
		if runTask(ctx, index, event, next, logger, metrics) {
			logger.Error("shard terminated after internal error, operator action required",
				zap.Int("shard", index), zap.Int64("client_id", event.ClientID))
			s.fatal.Store(true)
			atomic.StoreInt32(&s.state, shardStopped)
			return
		}
	}
}

// runTask invokes next for a single task, isolating the worker from
// whatever next does. A recovered panic is logged and counted but never
// fatal: it is a generic fault-isolation net, not a signal that the shard
// itself is broken. A tagged KindInternal error, by contrast, is the
// downstream chain explicitly reporting that this worker's state may be
// corrupt; runTask reports that back to the caller as fatal so the shard
// stops rather than keep running on bad state. Every other error, tagged or
// not, is logged and counted and the worker moves on to the next task.
func runTask(ctx context.Context, index int, event domain.Event, next Stage, logger *zap.Logger, metrics *Metrics) (fatal bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("downstream panic recovered, worker continues",
				zap.Int("shard", index), zap.Int64("client_id", event.ClientID), zap.Any("panic", r))
			fatal = false
		}
		metrics.TasksCompleted.Inc()
	}()

	err := next.Accept(ctx, event)
	if err == nil {
		return false
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		switch tagged.Kind {
		case KindInternal:
			logger.Error("internal error from downstream, terminating shard",
				zap.Int("shard", index), zap.Int64("client_id", event.ClientID), zap.Error(err))
			return true
		case KindDownstreamError:
			metrics.DownstreamErrors.Inc()
		}
	}

	logger.Warn("downstream error, event discarded",
		zap.Int("shard", index), zap.Int64("client_id", event.ClientID), zap.Error(err))
	return false
}

// ShardedDispatcher is the heart of the pipeline: it routes each event to
// the worker owning event.ClientID (clientID mod N, fixed for
// the pipeline's lifetime) and returns immediately. Because exactly one
// worker drains each shard's FIFO queue, events sharing a ClientID are
// serialized by construction with no locks on the critical path.
type ShardedDispatcher struct {
	next    Stage
	shards  []*shard
	state   int32
	wg      sync.WaitGroup
	logger  *zap.Logger
	metrics *Metrics
}

// NewShardedDispatcher starts n worker goroutines, one per shard, each
// draining its own queue into next. ctx is the context every task is run
// with, independent of any per-Accept context; it is normally the
// pipeline's own context, cancelled by Pipeline.Close after the drain
// completes. Cancelling it does not stop the workers: a worker exits only
// once its shard is draining and its queue is empty, or after a fatal
// downstream error.
func NewShardedDispatcher(ctx context.Context, next Stage, n int, bound int, policy OverflowPolicy, logger *zap.Logger, metrics *Metrics) *ShardedDispatcher {
	d := &ShardedDispatcher{next: next, logger: logger, metrics: metrics}
	d.shards = make([]*shard, n)

	onDepth := func(index int, depth int64) {
		metrics.QueueDepth.WithLabelValues(strconv.Itoa(index)).Set(float64(depth))
		d.recordMeanDepth()
	}

	for i := 0; i < n; i++ {
		sh := newShard(bound, policy)
		d.shards[i] = sh
		d.wg.Add(1)
		go func(index int, s *shard) {
			defer d.wg.Done()
			s.run(ctx, index, next, logger, metrics, onDepth)
		}(i, sh)
	}
	return d
}

func (d *ShardedDispatcher) recordMeanDepth() {
	var sum int64
	for _, sh := range d.shards {
		sum += sh.depth.Load()
	}
	d.metrics.QueueDepthMean.Set(float64(sum) / float64(len(d.shards)))
}

// shardIndex computes the fixed clientID -> shard mapping. clientID is not
// assumed to be non-negative; a negative result of Go's %% is folded back
// into [0, n) so routing stays well-defined either way.
func shardIndex(clientID int64, n int) int {
	m := clientID % int64(n)
	if m < 0 {
		m += int64(n)
	}
	return int(m)
}

func (d *ShardedDispatcher) Accept(ctx context.Context, event domain.Event) error {
	if atomic.LoadInt32(&d.state) != shardRunning {
		return newError(KindShutdown, event.ClientID, errors.New("dispatcher is closed"))
	}

	idx := shardIndex(event.ClientID, len(d.shards))
	sh := d.shards[idx]
	if sh.enqueue(event) {
		d.metrics.TasksSubmitted.Inc()
		return nil
	}
	d.metrics.TasksDropped.Inc()
	if sh.fatal.Load() {
		return newError(KindInternal, event.ClientID, errors.New("shard terminated after an internal error, operator action required"))
	}
	return newError(KindOverflow, event.ClientID, errors.New("shard queue full, event dropped under drop_newest policy"))
}

// Close stops accepting new events, drains every shard's queue to
// completion, and joins all worker goroutines before returning.
func (d *ShardedDispatcher) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&d.state, shardRunning, shardDraining) {
		return nil
	}
	for _, sh := range d.shards {
		sh.drain()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		atomic.StoreInt32(&d.state, shardStopped)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

// ConcurrencyGuard is the optional oracle stage: it exists to assert the
// non-overlap invariant ShardedDispatcher already guarantees, by
// acquiring a non-reentrant per-ClientID mutex before calling next. Under
// correct wiring (dispatcher upstream) the mutex is never contended; a
// contended mutex means the ordering invariant has been violated somewhere
// upstream.
type ConcurrencyGuard struct {
	next    Stage
	locks   sync.Map // clientID int64 -> *sync.Mutex
	wait    time.Duration
	logger  *zap.Logger
	metrics *Metrics
}

// NewConcurrencyGuard wraps next. wait is the bounded time (callers should
// cap this at 1s) to wait for a contended mutex before reporting a
// violation and skipping the event; wait == 0 means report and skip
// immediately, the default for a correctly wired pipeline.
func NewConcurrencyGuard(next Stage, wait time.Duration, logger *zap.Logger, metrics *Metrics) *ConcurrencyGuard {
	return &ConcurrencyGuard{next: next, wait: wait, logger: logger, metrics: metrics}
}

func (g *ConcurrencyGuard) mutexFor(clientID int64) *sync.Mutex {
	v, _ := g.locks.LoadOrStore(clientID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (g *ConcurrencyGuard) Accept(ctx context.Context, event domain.Event) error {
	mu := g.mutexFor(event.ClientID)

	acquired := mu.TryLock()
	if !acquired && g.wait > 0 {
		acquired = tryLockWithTimeout(mu, g.wait)
	}
	if !acquired {
		g.metrics.GuardViolations.Inc()
		g.logger.Error("concurrency violation: mutex already held for client",
			zap.Int64("client_id", event.ClientID))
		return newError(KindConcurrencyViolation, event.ClientID, errors.New("mutex already held by another worker"))
	}
	// Unlock only because acquisition succeeded above. A prior revision of
	// this check released the lock unconditionally in a deferred call even
	// when TryLock failed; that released a mutex this goroutine never held.
	defer mu.Unlock()

	return g.next.Accept(ctx, event)
}

func tryLockWithTimeout(mu *sync.Mutex, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if mu.TryLock() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

package core

import (
	"context"
	"sync"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

// DeduplicationFilter is the head stage of the pipeline: it drops events
// whose uuid was recorded within the window and otherwise forwards them
// downstream synchronously, in the caller's goroutine.
//
// The backing store is an insertion-time-ordered TTL cache: entries expire
// window after they were *inserted* and are never refreshed by a later
// lookup, so repeated duplicates inside the window keep expiring on the
// original schedule. Size is bounded only by the TTL, never by insertion
// count.
type DeduplicationFilter struct {
	next    Stage
	window  time.Duration
	seen    *expirable.LRU[string, struct{}]
	mu      sync.Mutex
	metrics *Metrics
}

// NewDeduplicationFilter wraps next with a window-second dedup check.
func NewDeduplicationFilter(next Stage, window time.Duration, metrics *Metrics) *DeduplicationFilter {
	return &DeduplicationFilter{
		next:    next,
		window:  window,
		seen:    expirable.NewLRU[string, struct{}](0, nil, window),
		metrics: metrics,
	}
}

func (f *DeduplicationFilter) Accept(ctx context.Context, event domain.Event) error {
	if !f.admit(event.UUID) {
		f.metrics.DedupDuplicates.Inc()
		return nil
	}
	return f.next.Accept(ctx, event)
}

// admit reports whether uuid was newly inserted. An expired entry is
// treated as absent: Peek checks the entry's expiry before reporting
// presence (unlike Contains, which reports an entry present even after it
// has logically expired but before the background reaper has swept it),
// so re-insertion after expiry succeeds and the event is forwarded again.
func (f *DeduplicationFilter) admit(uuid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen.Peek(uuid); ok {
		return false
	}
	f.seen.Add(uuid, struct{}{})
	f.metrics.DedupCacheSize.Set(float64(f.seen.Len()))
	return true
}

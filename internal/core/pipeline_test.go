package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

func TestBuild_RequiresTerminalAndWorkers(t *testing.T) {
	_, err := Build(context.Background(), Options{Workers: 1})
	assert.Error(t, err)

	_, err = Build(context.Background(), Options{
		Terminal: TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) { return e, nil }),
	})
	assert.Error(t, err)
}

func TestPipeline_EmptyStreamCloseSucceeds(t *testing.T) {
	terminal := TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) { return e, nil })
	p, err := Build(context.Background(), Options{Workers: 2, Terminal: terminal})
	require.NoError(t, err)

	require.NoError(t, p.Close(context.Background()))
}

func TestPipeline_SingleEventDelivered(t *testing.T) {
	var got atomic.Value
	terminal := TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) {
		got.Store(e.UUID)
		return e, nil
	})
	p, err := Build(context.Background(), Options{Workers: 2, Terminal: terminal})
	require.NoError(t, err)

	require.NoError(t, p.Accept(context.Background(), domain.Event{ClientID: 1, UUID: "only", CreatedAt: time.Now()}))
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, "only", got.Load())
}

// Two events sharing a uuid, separated by slightly more than the dedup
// window, are both delivered: the window is measured from insertion, and
// an expired entry never blocks re-admission.
func TestPipeline_SameUUIDAcrossWindowBoundaryBothDelivered(t *testing.T) {
	var count atomic.Int64
	terminal := TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) {
		count.Add(1)
		return e, nil
	})
	p, err := Build(context.Background(), Options{
		Workers: 1, Terminal: terminal, DedupWindow: 30 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, p.Accept(context.Background(), domain.Event{ClientID: 1, UUID: "dup", CreatedAt: time.Now()}))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, p.Accept(context.Background(), domain.Event{ClientID: 1, UUID: "dup", CreatedAt: time.Now()}))
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, int64(2), count.Load())
}

// 1000 concurrent submissions (20 goroutines x 50 each) to a single clientId
// are all delivered with no loss, and each goroutine's own submissions are
// observed downstream in the order that goroutine submitted them — the
// guarantee FIFO-per-shard actually provides. Ordering *between* distinct
// goroutines' submissions is not a real guarantee (nothing serializes their
// calls to Accept relative to one another), so it isn't asserted.
func TestPipeline_HighConcurrencySingleClientAllDelivered(t *testing.T) {
	const goroutines = 20
	const perGoroutine = 50

	var mu sync.Mutex
	var delivered []goroutineSeq

	terminal := TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) {
		g, s := decodeGoroutineSeq(e.UUID)
		mu.Lock()
		delivered = append(delivered, goroutineSeq{goroutine: g, seq: s})
		mu.Unlock()
		return e, nil
	})
	p, err := Build(context.Background(), Options{Workers: 4, Terminal: terminal})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for s := 0; s < perGoroutine; s++ {
				require.NoError(t, p.Accept(context.Background(), domain.Event{
					ClientID: 7, UUID: encodeGoroutineSeq(g, s), CreatedAt: time.Now(),
				}))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, p.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, goroutines*perGoroutine)

	lastSeq := make(map[int]int, goroutines)
	for _, d := range delivered {
		if last, seen := lastSeq[d.goroutine]; seen {
			assert.Greater(t, d.seq, last,
				"events submitted by the same goroutine to the same clientId must be observed downstream in submission order")
		}
		lastSeq[d.goroutine] = d.seq
	}
}

type goroutineSeq struct {
	goroutine int
	seq       int
}

func encodeGoroutineSeq(g, s int) string {
	return fmt.Sprintf("g%04d-s%04d", g, s)
}

func decodeGoroutineSeq(uuid string) (g, s int) {
	_, _ = fmt.Sscanf(uuid, "g%04d-s%04d", &g, &s)
	return g, s
}

func TestPipeline_CloseWithNonEmptyQueueDrainsFully(t *testing.T) {
	var count atomic.Int64
	terminal := TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) {
		time.Sleep(time.Millisecond)
		count.Add(1)
		return e, nil
	})
	p, err := Build(context.Background(), Options{Workers: 8, Terminal: terminal})
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		require.NoError(t, p.Accept(context.Background(), domain.Event{
			ClientID: int64(i % 8), UUID: uuidFor(i), CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, int64(500), count.Load())
}

func TestPipeline_GuardEnabledPassesUncontendedTraffic(t *testing.T) {
	var count atomic.Int64
	terminal := TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) {
		count.Add(1)
		return e, nil
	})
	p, err := Build(context.Background(), Options{
		Workers: 4, Terminal: terminal, GuardEnabled: true, GuardWait: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, p.Accept(context.Background(), domain.Event{
			ClientID: int64(i % 4), UUID: uuidFor(i), CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, int64(20), count.Load())
	assert.Equal(t, float64(0), testCounterValue(t, p.Metrics().GuardViolations))
}

func uuidFor(i int) string {
	const hex = "0123456789abcdef"
	b := make([]byte, 8)
	for j := 0; j < 8; j++ {
		b[j] = hex[(i>>(j*4))&0xf]
	}
	return string(b)
}

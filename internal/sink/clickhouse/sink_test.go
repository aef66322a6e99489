package clickhouse

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

func TestSink_FlushesOnBatchSize(t *testing.T) {
	var calls atomic.Int64
	var mu sync.Mutex
	var batches [][]domain.Event

	insert := func(ctx context.Context, events []domain.Event) error {
		calls.Add(1)
		mu.Lock()
		cp := make([]domain.Event, len(events))
		copy(cp, events)
		batches = append(batches, cp)
		mu.Unlock()
		return nil
	}

	sink := newSink(insert, Config{MaxBatchSize: 2, FlushTimeout: time.Hour}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := sink.Process(context.Background(), domain.Event{ClientID: int64(i), UUID: "u"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, batches[0], 2)
}

func TestSink_FlushesOnTimeout(t *testing.T) {
	var calls atomic.Int64
	insert := func(ctx context.Context, events []domain.Event) error {
		calls.Add(1)
		return nil
	}

	sink := newSink(insert, Config{MaxBatchSize: 100, FlushTimeout: 20 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go sink.Run(ctx)

	_, err := asyncProcess(sink, domain.Event{ClientID: 1, UUID: "u"})
	require.NoError(t, err)

	cancel()
	assert.Equal(t, int64(1), calls.Load())
}

func TestSink_InsertErrorPropagatesToAllCallers(t *testing.T) {
	wantErr := errors.New("insert failed")
	insert := func(ctx context.Context, events []domain.Event) error {
		return wantErr
	}

	sink := newSink(insert, Config{MaxBatchSize: 2, FlushTimeout: time.Hour}, zap.NewNop())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := sink.Process(context.Background(), domain.Event{ClientID: int64(i), UUID: "u"})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	assert.ErrorIs(t, errs[0], wantErr)
	assert.ErrorIs(t, errs[1], wantErr)
}

func TestSink_RunFlushesRemainingBufferOnShutdown(t *testing.T) {
	var calls atomic.Int64
	insert := func(ctx context.Context, events []domain.Event) error {
		calls.Add(1)
		return nil
	}

	sink := newSink(insert, Config{MaxBatchSize: 100, FlushTimeout: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	go func() { _, _ = asyncProcess(sink, domain.Event{ClientID: 1, UUID: "u"}) }()
	time.Sleep(10 * time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, int64(1), calls.Load())
}

func asyncProcess(sink *Sink, event domain.Event) (domain.Event, error) {
	return sink.Process(context.Background(), event)
}

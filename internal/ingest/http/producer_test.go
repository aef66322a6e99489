package http

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarkinBalci/eventcore/internal/core"
	"github.com/BarkinBalci/eventcore/internal/domain"
)

func TestProducer_SubmitGeneratesUUIDWhenMissing(t *testing.T) {
	var got domain.Event
	terminal := core.TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) {
		got = e
		return e, nil
	})
	pipeline, err := core.Build(context.Background(), core.Options{Workers: 1, Terminal: terminal})
	require.NoError(t, err)

	producer := NewProducer(pipeline)
	event, err := producer.Submit(context.Background(), 1, "")
	require.NoError(t, err)
	require.NoError(t, pipeline.Close(context.Background()))

	assert.NotEmpty(t, event.UUID)
	assert.Equal(t, event.UUID, got.UUID)
}

func TestProducer_SubmitUsesProvidedUUID(t *testing.T) {
	var count atomic.Int64
	terminal := core.TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) {
		count.Add(1)
		return e, nil
	})
	pipeline, err := core.Build(context.Background(), core.Options{Workers: 1, Terminal: terminal})
	require.NoError(t, err)

	producer := NewProducer(pipeline)
	event, err := producer.Submit(context.Background(), 1, "fixed-id")
	require.NoError(t, err)
	require.NoError(t, pipeline.Close(context.Background()))

	assert.Equal(t, "fixed-id", event.UUID)
	assert.Equal(t, int64(1), count.Load())
}

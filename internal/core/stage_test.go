package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

// A raw, untagged error from the terminal consumer is wrapped as a
// KindDownstreamError so callers branching on Kind (runTask, the HTTP
// handler) see it tagged rather than opaque.
func TestTerminalStage_WrapsUntaggedErrorAsDownstreamError(t *testing.T) {
	metrics := NewMetrics()
	stage := &terminalStage{
		consumer: TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) {
			return e, errors.New("write failed")
		}),
		metrics: metrics,
	}

	err := stage.Accept(context.Background(), domain.Event{ClientID: 9, UUID: "u", CreatedAt: time.Now()})
	require.Error(t, err)

	var coreErr *Error
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, KindDownstreamError, coreErr.Kind)
	assert.Equal(t, int64(9), coreErr.ClientID)
}

// A consumer that already returns a tagged *Error (e.g. a guard violation
// surfacing through a custom TerminalConsumer) passes through unchanged
// instead of being double-wrapped.
func TestTerminalStage_PassesThroughAlreadyTaggedError(t *testing.T) {
	metrics := NewMetrics()
	original := newError(KindConcurrencyViolation, 1, errors.New("contended"))
	stage := &terminalStage{
		consumer: TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) {
			return e, original
		}),
		metrics: metrics,
	}

	err := stage.Accept(context.Background(), domain.Event{ClientID: 1, UUID: "u", CreatedAt: time.Now()})
	assert.Same(t, original, err)
}

// EventLatency is sampled once per terminal call, success or failure.
func TestTerminalStage_RecordsEventLatencyHistogram(t *testing.T) {
	metrics := NewMetrics()
	stage := &terminalStage{
		consumer: TerminalConsumerFunc(func(ctx context.Context, e domain.Event) (domain.Event, error) { return e, nil }),
		metrics:  metrics,
	}

	require.NoError(t, stage.Accept(context.Background(), domain.Event{ClientID: 1, UUID: "a", CreatedAt: time.Now()}))
	require.NoError(t, stage.Accept(context.Background(), domain.Event{ClientID: 1, UUID: "b", CreatedAt: time.Now()}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.EventLatency)
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	count := families[0].GetMetric()[0].GetHistogram().GetSampleCount()
	assert.Equal(t, uint64(2), count, "both terminal calls should have been observed")
}

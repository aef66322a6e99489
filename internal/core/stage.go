package core

import (
	"context"
	"errors"
	"time"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

// Stage is the one-method contract every decorator in the chain implements:
// accept an event, perform its local responsibility, and forward to the
// next stage. There is no inheritance between stages, only composition —
// each stage holds a reference to its downstream Stage.
type Stage interface {
	Accept(ctx context.Context, event domain.Event) error
}

// TerminalConsumer is the user-supplied, application-specific work at the
// end of the chain. It must be safe to call concurrently
// for distinct ClientIDs; it need not be safe for overlapping calls with
// the same ClientID, since ShardedDispatcher guarantees non-overlap.
type TerminalConsumer interface {
	Process(ctx context.Context, event domain.Event) (domain.Event, error)
}

// TerminalConsumerFunc adapts a plain function to a TerminalConsumer.
type TerminalConsumerFunc func(ctx context.Context, event domain.Event) (domain.Event, error)

func (f TerminalConsumerFunc) Process(ctx context.Context, event domain.Event) (domain.Event, error) {
	return f(ctx, event)
}

// terminalStage adapts a TerminalConsumer into a Stage, and samples the
// end-to-end latency histogram at the start of terminal processing.
type terminalStage struct {
	consumer TerminalConsumer
	metrics  *Metrics
}

func (t *terminalStage) Accept(ctx context.Context, event domain.Event) error {
	t.metrics.EventLatency.Observe(time.Since(event.CreatedAt).Seconds())
	_, err := t.consumer.Process(ctx, event)
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return newError(KindDownstreamError, event.ClientID, err)
}

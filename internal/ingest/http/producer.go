package http

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BarkinBalci/eventcore/internal/core"
	"github.com/BarkinBalci/eventcore/internal/domain"
)

// Producer is the in-process producer path backing the control-plane HTTP
// API: it turns a request into an Event and submits it to the pipeline
// directly, with no queue in between.
type Producer struct {
	pipeline *core.Pipeline
}

// NewProducer wraps pipeline for HTTP-originated submissions.
func NewProducer(pipeline *core.Pipeline) *Producer {
	return &Producer{pipeline: pipeline}
}

// Submit accepts one event on behalf of an HTTP request. If uuid is empty
// one is generated, matching the teacher's "server assigns the id when the
// caller doesn't supply one" convention.
func (p *Producer) Submit(ctx context.Context, clientID int64, id string) (domain.Event, error) {
	if id == "" {
		id = uuid.NewString()
	}
	event := domain.Event{ClientID: clientID, UUID: id, CreatedAt: time.Now()}
	if err := p.pipeline.Accept(ctx, event); err != nil {
		return event, err
	}
	return event, nil
}

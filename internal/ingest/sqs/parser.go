package sqs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BarkinBalci/eventcore/internal/domain"
)

// MessageParser parses a raw SQS message body into an Event.
type MessageParser interface {
	Parse(body []byte) (domain.Event, error)
}

// wireEvent is the JSON shape a producer writes to the queue.
type wireEvent struct {
	ClientID  int64     `json:"client_id"`
	UUID      string    `json:"uuid"`
	CreatedAt time.Time `json:"created_at"`
}

// JSONEventParser implements MessageParser for JSON-formatted event messages.
type JSONEventParser struct{}

// NewJSONEventParser creates a new JSON event parser.
func NewJSONEventParser() *JSONEventParser {
	return &JSONEventParser{}
}

func (p *JSONEventParser) Parse(body []byte) (domain.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.Event{}, fmt.Errorf("failed to unmarshal message body: %w", err)
	}
	if w.UUID == "" {
		return domain.Event{}, fmt.Errorf("message body missing required field uuid")
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	return domain.Event{ClientID: w.ClientID, UUID: w.UUID, CreatedAt: w.CreatedAt}, nil
}

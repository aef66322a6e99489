package domain

import "time"

// Event is the immutable unit of work flowing through the pipeline.
//
// ClientID is the routing/ordering key: events sharing a ClientID must be
// observed by the terminal consumer in the order they were created. UUID
// identifies an event occurrence and is the dedup key; two events with the
// same UUID are, by definition, the same occurrence.
type Event struct {
	CreatedAt time.Time
	ClientID  int64
	UUID      string
}

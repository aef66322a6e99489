package dto

import "time"

// ErrorResponse is the uniform error body returned by the control plane.
type ErrorResponse struct {
	Error string `json:"error" example:"validation_error"`
}

// PublishEventResponse confirms an event was accepted by the pipeline.
type PublishEventResponse struct {
	ClientID  int64     `json:"client_id" example:"42"`
	UUID      string    `json:"uuid" example:"5f2f1e0a-9c7d-4b9a-9e2a-8f3b6a1d2c3e"`
	CreatedAt time.Time `json:"created_at"`
}

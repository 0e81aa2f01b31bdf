package notify

import (
	"context"
	"time"
)

// Event names emitted by the job queue.
const (
	EventJobCreated       = "job_created"
	EventJobStatusChanged = "job_status_changed"
)

// Event is the payload delivered to the notification sink on job lifecycle
// transitions.
type Event struct {
	JobID       string    `json:"job_id"`
	ServiceID   int64     `json:"service_id"`
	ServiceType string    `json:"service_type"`
	CustomerID  *int64    `json:"customer_id,omitempty"`
	OldStatus   string    `json:"old_status,omitempty"`
	NewStatus   string    `json:"new_status"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink receives job lifecycle events. Delivery is fire-and-forget: the queue
// logs failures locally and never rolls back a status transition over them.
type Sink interface {
	Notify(ctx context.Context, event string, payload Event) error
}

// NopSink discards all events. Used by processes that run without a broker.
type NopSink struct{}

func (NopSink) Notify(context.Context, string, Event) error { return nil }

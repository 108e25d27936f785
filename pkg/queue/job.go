package queue

import "context"

// Job consumes messages of a single type from the queue.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type this job claims.
	Type() string

	// Handle processes one payload. A returned error schedules a retry.
	Handle(ctx context.Context, payload interface{}) error
}

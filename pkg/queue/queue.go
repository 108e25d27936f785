package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the producer side of the queue.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig tunes the consumer side.
type QueueConfig struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
}

// Message is the envelope stored in redis. Payload survives the JSON
// round-trip as whatever encoding/json produces, so handlers go
// through ParsePayload instead of type-asserting.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// ParsePayload recovers a typed payload from a dequeued message.
// Same-type payloads (local publish) pass through; everything else is
// re-marshalled through JSON.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		var result T
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload %T: %w", payload, err)
		}
		var result T
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload %T: %w", payload, err)
		}
		return &result, nil
	}
}

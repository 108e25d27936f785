package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	applogger "LevelScan/pkg/logger"
)

func TestErrorLogJobTypeMatchesCollectorTopic(t *testing.T) {
	if got := NewErrorLogJob(testLogger(t)).Type(); got != ErrorLogType {
		t.Fatalf("job type = %q, want %q", got, ErrorLogType)
	}
}

func TestErrorLogJobHandlesQueuedBatch(t *testing.T) {
	job := NewErrorLogJob(testLogger(t))

	batch := []applogger.AggregatedLogEntry{
		{Level: "error", Message: "store write failed", Caller: "repo.go:42", Count: 7,
			FirstSeen: time.Now().Add(-time.Minute), LastSeen: time.Now()},
		{Level: "error", Message: "fetch timeout", Caller: "client.go:10", Count: 1},
	}

	// A dequeued payload arrives as decoded JSON, not the publisher's type.
	raw, err := json.Marshal(batch)
	if err != nil {
		t.Fatal(err)
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	if err := job.Handle(context.Background(), decoded); err != nil {
		t.Fatalf("handle decoded batch: %v", err)
	}
	if err := job.Handle(context.Background(), json.RawMessage(raw)); err != nil {
		t.Fatalf("handle raw batch: %v", err)
	}
}

func TestErrorLogJobRejectsMalformedPayload(t *testing.T) {
	job := NewErrorLogJob(testLogger(t))
	if err := job.Handle(context.Background(), json.RawMessage(`{"not":"a batch"}`)); err == nil {
		t.Fatal("expected error for non-array payload")
	}
}

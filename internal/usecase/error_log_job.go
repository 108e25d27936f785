package usecase

import (
	"context"
	"fmt"
	"time"

	applogger "LevelScan/pkg/logger"
	"LevelScan/pkg/queue"
)

// ErrorLogType is the queue message type for aggregated error-log batches
// flushed by the log collector.
const ErrorLogType = "error_logs"

// ErrorLogJob drains aggregated error batches off the queue and emits one
// summarized line per distinct error. It reports through Warn so its own
// output never re-enters the collector.
type ErrorLogJob struct {
	logger *applogger.Logger
}

var _ queue.Job = (*ErrorLogJob)(nil)

func NewErrorLogJob(logger *applogger.Logger) *ErrorLogJob {
	return &ErrorLogJob{logger: logger}
}

func (j *ErrorLogJob) Name() string { return "error-log-drain" }
func (j *ErrorLogJob) Type() string { return ErrorLogType }

func (j *ErrorLogJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]applogger.AggregatedLogEntry](payload)
	if err != nil {
		return fmt.Errorf("parse error log batch: %w", err)
	}
	for _, entry := range *entries {
		j.logger.Warn("aggregated error report",
			applogger.String("message", entry.Message),
			applogger.String("caller", entry.Caller),
			applogger.Int("count", entry.Count),
			applogger.String("first_seen", entry.FirstSeen.Format(time.RFC3339)),
			applogger.String("last_seen", entry.LastSeen.Format(time.RFC3339)),
		)
	}
	return nil
}

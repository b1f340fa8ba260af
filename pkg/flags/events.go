package flags

import (
	"context"

	"go.uber.org/zap"
)

// Query lifecycle events reported to a Tracker.
const (
	EventQueryStarted   = "ai-query-started"
	EventQueryCompleted = "ai-query-completed"
	EventQueryFailed    = "ai-query-failed"
)

// Tracker receives analytics events tied to a flag context, so experiment
// results can be attributed to the variation that was served.
type Tracker interface {
	Track(ctx context.Context, event string, c Context, data map[string]any, metric *float64)
}

// LogTracker writes events to a zap logger.
type LogTracker struct {
	log *zap.Logger
}

// NewLogTracker returns a Tracker that logs at info level.
func NewLogTracker(log *zap.Logger) *LogTracker {
	return &LogTracker{log: log}
}

// Track implements Tracker.
func (t *LogTracker) Track(_ context.Context, event string, c Context, data map[string]any, metric *float64) {
	fields := []zap.Field{
		zap.String("event", event),
		zap.String("user", c.UserKey),
		zap.String("tier", c.Tier),
		zap.Any("data", data),
	}
	if metric != nil {
		fields = append(fields, zap.Float64("metric", *metric))
	}
	t.log.Info("flag event", fields...)
}

// Package observer defines logging and metrics hooks for pipeline execution.
package observer

import (
	"context"

	"coderunner/pkg/utils/logger"

	"go.uber.org/zap"
)

// MetricsRecorder records per-phase execution metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64)
	ObserveRun(ctx context.Context, languageID string, verdict string, timeMs int64, truncated bool)
}

// NoopMetricsRecorder is a default recorder that does nothing.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64) {
}

func (NoopMetricsRecorder) ObserveRun(ctx context.Context, languageID string, verdict string, timeMs int64, truncated bool) {
}

// LogMetricsRecorder writes one structured log line per phase.
type LogMetricsRecorder struct{}

func (LogMetricsRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64) {
	logger.Info(ctx, "compile phase observed",
		zap.String("language_id", languageID),
		zap.Bool("ok", ok),
		zap.Int64("time_ms", timeMs),
	)
}

func (LogMetricsRecorder) ObserveRun(ctx context.Context, languageID string, verdict string, timeMs int64, truncated bool) {
	logger.Info(ctx, "run phase observed",
		zap.String("language_id", languageID),
		zap.String("verdict", verdict),
		zap.Int64("time_ms", timeMs),
		zap.Bool("truncated", truncated),
	)
}

package core

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution, in addition to
// the panic being delivered to the submitter through its Completion. This
// allows custom logging and crash reporting strategies.
//
// Implementations are called on the worker thread and should be fast.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context of the panicked task
	// - threadName: The name of the executor whose worker caught the panic
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, threadName string, panicInfo any, stackTrace []byte)
}

// LogPanicHandler logs panics through a logrus logger. It is the default
// panic handler.
type LogPanicHandler struct {
	Logger *logrus.Logger
}

// HandlePanic logs the panic with its stack trace at error level.
func (h *LogPanicHandler) HandlePanic(ctx context.Context, threadName string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"thread": threadName,
		"panic":  panicInfo,
	}).Errorf("task panicked\n%s", stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting executor metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD,
// etc.); see the observability/prometheus subpackage.
//
// Methods are called on the worker thread (durations, panics) and on caller
// threads (rejections, queue depth) and must be safe for concurrent use.
// They should be non-blocking and fast to avoid impacting task execution.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(threadName string, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(threadName string)

	// RecordQueueDepth records the current queue depth.
	RecordQueueDepth(threadName string, depth int)

	// RecordTaskRejected records that a submission was rejected (e.g., after
	// shutdown).
	RecordTaskRejected(threadName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(threadName string, duration time.Duration) {}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(threadName string) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(threadName string, depth int) {}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(threadName string, reason string) {}

// =============================================================================
// Config: Configuration for a Thread
// =============================================================================

// Config holds configuration options for a Thread. All fields are optional;
// the zero value (or a nil *Config) gives a working executor with defaults.
type Config struct {
	// Name identifies the executor in logs and metrics labels. Defaults to
	// "audio-thread-" followed by a random suffix.
	Name string

	// Logger receives lifecycle and rejection logs. Defaults to a logger that
	// discards everything.
	Logger *logrus.Logger

	// PanicHandler is called when a task panics. Defaults to LogPanicHandler.
	PanicHandler PanicHandler

	// Metrics receives executor metrics. Defaults to NilMetrics.
	Metrics Metrics

	// Prelude runs on the worker thread before any task, once the thread is
	// locked. A prelude panic fails construction. Useful for per-thread
	// initialization such as COM apartment setup.
	Prelude func()

	// QueueCapacity is the initial capacity of the task queue. The queue
	// itself is unbounded; this only sizes the first allocation.
	QueueCapacity int

	// HistoryCapacity sizes the ring of execution records kept for Stats and
	// RecentExecutions. 0 keeps the default of 100 records; a negative value
	// disables history entirely, which also skips task name resolution.
	HistoryCapacity int
}

// DefaultConfig returns a config with default handlers.
func DefaultConfig() *Config {
	return &Config{
		Logger:       discardLogger(),
		PanicHandler: &LogPanicHandler{},
		Metrics:      &NilMetrics{},
	}
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

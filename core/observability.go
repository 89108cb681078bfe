package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

// telemetry bundles the logger and metrics recorder shared by the registry,
// router and finalizer.
type telemetry struct {
	logger  Logger
	metrics MetricsRecorder
}

func (t telemetry) observeBackend(ctx context.Context, startedAt time.Time, kind TargetKind, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	tags := map[string]string{"kind": string(kind), "status": status}
	t.counter(ctx, MetricBackendUpdate, 1, tags)
	t.histogram(ctx, MetricBackendDurationMS, float64(time.Since(startedAt).Milliseconds()), tags)
}

func (t telemetry) debug(ctx context.Context, message string, fields map[string]any) {
	t.log(ctx, "debug", message, fields)
}

func (t telemetry) info(ctx context.Context, message string, fields map[string]any) {
	t.log(ctx, "info", message, fields)
}

func (t telemetry) warn(ctx context.Context, message string, fields map[string]any) {
	t.log(ctx, "warn", message, fields)
}

func (t telemetry) error(ctx context.Context, message string, fields map[string]any) {
	t.log(ctx, "error", message, fields)
}

func (t telemetry) log(ctx context.Context, level string, message string, fields map[string]any) {
	LogWithFields(ctx, t.logger, level, message, fields)
}

func (t telemetry) counter(ctx context.Context, name string, value int64, tags map[string]string) {
	if t.metrics == nil {
		return
	}
	t.metrics.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (t telemetry) histogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if t.metrics == nil {
		return
	}
	t.metrics.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

// LogWithFields writes message at level, attaching fields through WithFields
// when the logger supports it and as key/value args otherwise.
func LogWithFields(ctx context.Context, logger Logger, level string, message string, fields map[string]any) {
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		logger.Trace(message, args...)
	case "debug":
		logger.Debug(message, args...)
	case "warn", "warning":
		logger.Warn(message, args...)
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

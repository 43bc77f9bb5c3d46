package logging

import (
	"context"
	"log/slog"

	"ludex/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldClusterID is the standardized structured logging key for match cluster identifiers.
	FieldClusterID = "cluster_id"
	// FieldCanonicalID is the standardized structured logging key for canonical game identifiers.
	FieldCanonicalID = "canonical_id"
	// FieldInstancePath is the standardized structured logging key for local instance folder paths.
	FieldInstancePath = "instance_path"
	// FieldOperation is the standardized structured logging key for resolution operation names.
	FieldOperation = "operation"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields collects the standardized slog attributes carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.ClusterIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldClusterID, id))
	}
	if op, ok := services.OperationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperation, op))
	}
	if path, ok := services.InstancePathFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldInstancePath, path))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext attaches any context-carried fields to logger, so call sites
// inside an operation pick up cluster, path, and correlation attributes.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

package services

import "context"

type contextKey string

const (
	requestIDKey    contextKey = "request_id"
	operationKey    contextKey = "operation"
	clusterIDKey    contextKey = "cluster_id"
	instancePathKey contextKey = "instance_path"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOperation annotates context with the lifecycle operation name.
func WithOperation(ctx context.Context, op string) context.Context {
	if op == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, op)
}

// OperationFromContext returns the lifecycle operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithClusterID annotates context with the match-cluster identifier.
func WithClusterID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, clusterIDKey, id)
}

// ClusterIDFromContext extracts the match-cluster identifier if present.
func ClusterIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(clusterIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithInstancePath annotates context with the folder path of the local
// instance being operated on.
func WithInstancePath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, instancePathKey, path)
}

// InstancePathFromContext returns the instance folder path if present.
func InstancePathFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(instancePathKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

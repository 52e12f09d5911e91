package logging

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type invocationCtxKey struct{}

// WithInvocationID stores a correlation ID for one CLI invocation. With an
// empty id a fresh UUID is generated.
func WithInvocationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, invocationCtxKey{}, id)
}

// InvocationIDFromContext returns the stored correlation ID, or "".
func InvocationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(invocationCtxKey{}).(string)
	return id
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if id := InvocationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("invocation.id", id))
	}
	return fields
}

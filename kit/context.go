package kit

import "context"

type contextKey string

const (
	TraceIDKey    contextKey = "kit_trace_id"
	TransportKey  contextKey = "kit_transport" // "http", "mcp", "cli", "webhook"
	RemoteAddrKey contextKey = "kit_remote_addr"
	PublicKey     contextKey = "kit_public" // set on unauthenticated portal routes
	OperationKey  contextKey = "kit_operation"
)

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

// WithOperation names the jurimon operation the context belongs to, such as
// "judit_create_request" or "poll_trackings".
func WithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, OperationKey, name)
}
func GetOperation(ctx context.Context) string {
	v, _ := ctx.Value(OperationKey).(string)
	return v
}

func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, RemoteAddrKey, addr)
}
func GetRemoteAddr(ctx context.Context) string {
	v, _ := ctx.Value(RemoteAddrKey).(string)
	return v
}

func WithPublic(ctx context.Context) context.Context {
	return context.WithValue(ctx, PublicKey, true)
}
func IsPublic(ctx context.Context) bool {
	v, _ := ctx.Value(PublicKey).(bool)
	return v
}

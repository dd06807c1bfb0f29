package services

import "context"

// key is a distinct context key per annotated value.
type key int

const (
	itemIDKey key = iota
	eventIDKey
	sourceKey
	requestIDKey
)

func with[T comparable](ctx context.Context, k key, v T) context.Context {
	var zero T
	if v == zero {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func from[T comparable](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	var zero T
	return v, ok && v != zero
}

// WithItemID annotates ctx with the search queue item being worked.
func WithItemID(ctx context.Context, id string) context.Context { return with(ctx, itemIDKey, id) }

// ItemIDFromContext returns the search queue item id, if any.
func ItemIDFromContext(ctx context.Context) (string, bool) { return from[string](ctx, itemIDKey) }

// WithEventID annotates ctx with the tracked event. Non-positive ids are ignored.
func WithEventID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return with(ctx, eventIDKey, id)
}

// EventIDFromContext returns the tracked event id, if any.
func EventIDFromContext(ctx context.Context) (int64, bool) { return from[int64](ctx, eventIDKey) }

// WithSource annotates ctx with the release source being queried.
func WithSource(ctx context.Context, source string) context.Context {
	return with(ctx, sourceKey, source)
}

// SourceFromContext returns the release source name, if any.
func SourceFromContext(ctx context.Context) (string, bool) { return from[string](ctx, sourceKey) }

// WithRequestID annotates ctx with an API correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return with(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation id, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) { return from[string](ctx, requestIDKey) }

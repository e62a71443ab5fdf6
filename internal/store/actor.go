package store

import "context"

type actorKey struct{}

// SystemActor attributes writes made without an acting user.
const SystemActor = "system"

// WithActor returns a context whose writes are attributed to actorID in
// the activity log.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFrom returns the acting user carried by ctx, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return id
	}
	return SystemActor
}

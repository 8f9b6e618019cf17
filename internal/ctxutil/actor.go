// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// SystemActor is recorded when neither the request nor the context names an actor.
const SystemActor = "system"

// ActorKey is the context key for actor ID.
type ActorKey struct{}

// WithActorID returns a context with the actor ID embedded.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actorID)
}

// ActorFromContext returns the actor ID from context, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey{}).(string); ok {
		return v
	}
	return ""
}

// ResolveActor picks the actor for a stage change: the explicit one, then the
// context's, then SystemActor.
func ResolveActor(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if actor := ActorFromContext(ctx); actor != "" {
		return actor
	}
	return SystemActor
}

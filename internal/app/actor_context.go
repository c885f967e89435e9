package app

import (
	"context"
	"strings"

	"github.com/hylla/civitas/internal/domain"
)

// actorIDContextKey stores context keys for the authenticated actor id.
type actorIDContextKey struct{}

// WithActorID attaches a normalized authenticated actor id to context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDContextKey{}, strings.TrimSpace(actorID))
}

// ActorIDFromContext returns the authenticated actor id when present.
func ActorIDFromContext(ctx context.Context) (string, bool) {
	raw := ctx.Value(actorIDContextKey{})
	actorID, ok := raw.(string)
	if !ok {
		return "", false
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return "", false
	}
	return actorID, true
}

// ResolveContextActor resolves the actor attached to ctx by a transport adapter.
func (s *Service) ResolveContextActor(ctx context.Context) (domain.ActingUser, error) {
	actorID, _ := ActorIDFromContext(ctx)
	return s.ResolveActor(ctx, actorID)
}

package core

import "context"

type (
	sessionKeyCtxKey struct{}
	turnIDCtxKey     struct{}
)

// ContextWithSessionKey tags ctx with the conversation it serves so that
// handlers can address the events they publish.
func ContextWithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyCtxKey{}, key)
}

// SessionKeyFromContext returns the session key set by ContextWithSessionKey, or "".
func SessionKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(sessionKeyCtxKey{}).(string)
	return key
}

// ContextWithTurnID carries a caller-chosen turn id. The client sets it to
// its attempt id so stage reports can be matched to the attempt in flight.
func ContextWithTurnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, turnIDCtxKey{}, id)
}

// TurnIDFromContext returns the id set by ContextWithTurnID, or "".
func TurnIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(turnIDCtxKey{}).(string)
	return id
}

// Publish sends event to observer when one is set.
func Publish(ctx context.Context, observer EventObserver, event IEvent, relayer string) {
	if observer == nil {
		return
	}
	observer.Publish(NewEventPacket(event, SessionKeyFromContext(ctx), relayer))
}

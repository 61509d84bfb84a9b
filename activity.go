package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventSocialLogin          ActivityEventType = "auth.social.login"
	ActivityEventSocialLoginFailure   ActivityEventType = "auth.social.failure"
	ActivityEventRegistered           ActivityEventType = "auth.registered"
	ActivityEventActivated            ActivityEventType = "auth.activated"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset.requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventPasswordChanged      ActivityEventType = "auth.password.changed"
	ActivityEventProfileUpdated       ActivityEventType = "user.profile.updated"
	ActivityEventAccessDenied         ActivityEventType = "auth.access.denied"
)

// ActorRef identifies who triggered an event.
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiSink fans an event out to every sink, returning the first error.
type MultiSink []ActivitySink

func (m MultiSink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func actorFromPrincipal(p *Principal) ActorRef {
	if p == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: p.ID.String(), Type: "user"}
}

func principalID(p *Principal) string {
	if p == nil {
		return ""
	}
	return p.ID.String()
}

// recordActivity is best effort, failures are logged and swallowed.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, now time.Time, eventType ActivityEventType, p *Principal, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actorFromPrincipal(p),
		UserID:     principalID(p),
		Metadata:   metadata,
		OccurredAt: now,
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink record error", "event", string(eventType), "error", err)
	}
}

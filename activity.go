package signup

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignupCreated      ActivityEventType = "signup.created"
	ActivityEventDuplicateEmail     ActivityEventType = "signup.duplicate_email"
	ActivityEventVerificationResent ActivityEventType = "signup.verification_resent"
	ActivityEventEmailVerified      ActivityEventType = "signup.email_verified"
	ActivityEventLinkExpired        ActivityEventType = "signup.link_expired"
)

// ActivityEvent captures audit-friendly information about a signup step.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Username   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort, errors are logged and never change the response.
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

func newUserEvent(eventType ActivityEventType, user *User, at time.Time) ActivityEvent {
	event := ActivityEvent{
		EventType:  eventType,
		OccurredAt: at,
	}
	if user != nil {
		event.UserID = user.ID.String()
		event.Username = user.Username
	}
	return event
}

package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess          ActivityEventType = "session.login.success"
	ActivityEventLoginFailure          ActivityEventType = "session.login.failure"
	ActivityEventOTPSuccess            ActivityEventType = "session.otp.success"
	ActivityEventOTPFailure            ActivityEventType = "session.otp.failure"
	ActivityEventEmailVerified         ActivityEventType = "session.email.verified"
	ActivityEventPasswordResetRequest  ActivityEventType = "session.password.reset.requested"
	ActivityEventPasswordResetSuccess  ActivityEventType = "session.password.reset"
	ActivityEventLogout                ActivityEventType = "session.logout"
	ActivityEventRestore               ActivityEventType = "session.restore"
	ActivityEventLifecycleTransitioned ActivityEventType = "session.lifecycle.changed"
)

// ActivityEvent captures audit-friendly information about a session action.
type ActivityEvent struct {
	EventType     ActivityEventType
	UserID        string
	FromLifecycle Lifecycle
	ToLifecycle   Lifecycle
	Metadata      map[string]any
	OccurredAt    time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never propagated into the
// session operation that emitted the event.
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

package session

// Lifecycle is the finite set of authentication states a session can
// occupy.
type Lifecycle string

const (
	// LifecycleUninitialized is the zero state before Initialize runs.
	LifecycleUninitialized Lifecycle = "uninitialized"
	// LifecycleInitializing is the boot phase while the credential store is
	// consulted.
	LifecycleInitializing Lifecycle = "initializing"
	// LifecycleUnauthenticated means no session exists.
	LifecycleUnauthenticated Lifecycle = "unauthenticated"
	// LifecycleAwaitingOTP means credentials were accepted but a one-time
	// passcode is still required. The pending user is held in State.User.
	LifecycleAwaitingOTP Lifecycle = "awaiting_otp"
	// LifecycleAwaitingEmailVerification means the user is signed in but
	// their email address has not been verified yet.
	LifecycleAwaitingEmailVerification Lifecycle = "awaiting_email_verification"
	// LifecycleAuthenticated is a fully established, verified session.
	LifecycleAuthenticated Lifecycle = "authenticated"
)

// IsValid checks the lifecycle is one of the known states
func (l Lifecycle) IsValid() bool {
	switch l {
	case LifecycleUninitialized, LifecycleInitializing, LifecycleUnauthenticated,
		LifecycleAwaitingOTP, LifecycleAwaitingEmailVerification, LifecycleAuthenticated:
		return true
	default:
		return false
	}
}

// State is a snapshot of the session published to observers. The Manager
// owns the live record; snapshots carry cloned users so observers can never
// mutate session state.
type State struct {
	Lifecycle Lifecycle
	// Loading is true while a session-owned network operation is in flight.
	Loading bool
	// User is the authenticated (or pending) user record, nil until a
	// successful sign-in or restore.
	User *User
	// Err is the last user-facing error message, cleared explicitly.
	Err string
}

// IsAuthenticated reports a fully established session. Derived purely from
// Lifecycle so it can never drift from it.
func (s State) IsAuthenticated() bool {
	return s.Lifecycle == LifecycleAuthenticated
}

// RequiresOTP reports whether the session is parked at the passcode step.
func (s State) RequiresOTP() bool {
	return s.Lifecycle == LifecycleAwaitingOTP
}

func (s State) clone() State {
	c := s
	c.User = s.User.Clone()
	return c
}

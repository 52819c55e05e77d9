package session

import (
	"sync"
	"time"
)

// Screen names driven by the Synchronizer.
const (
	RouteLogin            = "login"
	RouteOTP              = "otp-verification"
	RouteVerifyEmail      = "email-verification"
	RouteRoleSelect       = "role-select"
	RouteStudentDashboard = "student-dashboard"
	RouteTeacherDashboard = "teacher-dashboard"
	RouteParentDashboard  = "parent-dashboard"
	RouteAdminDashboard   = "admin-dashboard"
)

// DefaultRoleRoutes maps a user role to its post-login dashboard.
// Unrecognized roles fall through to the role selection screen.
func DefaultRoleRoutes() map[UserRole]string {
	return map[UserRole]string{
		RoleStudent: RouteStudentDashboard,
		RoleTeacher: RouteTeacherDashboard,
		RoleParent:  RouteParentDashboard,
		RoleAdmin:   RouteAdminDashboard,
	}
}

// navKey is the structural comparison key derived from session state.
// Navigation work is skipped whenever the key is unchanged, which breaks
// the re-entrant loop a naive reactive binding would cause on every
// republished state.
type navKey struct {
	authenticated bool
	requiresOTP   bool
	email         string
	role          UserRole
}

func keyFor(st State) navKey {
	key := navKey{
		authenticated: st.IsAuthenticated(),
		requiresOTP:   st.RequiresOTP(),
	}
	if st.User != nil {
		key.email = st.User.Email
		key.role = st.User.Role
	}
	return key
}

// SyncOption customizes Synchronizer construction.
type SyncOption func(*Synchronizer)

// WithSyncLogger overrides the logger used by the synchronizer.
func WithSyncLogger(logger Logger) SyncOption {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSettleDelay overrides the deliberate pause before navigating into
// the OTP screen, which gives the pending-user record time to settle
// before the screen reads it.
func WithSettleDelay(d time.Duration) SyncOption {
	return func(s *Synchronizer) {
		if d >= 0 {
			s.settleDelay = d
		}
	}
}

// WithReadyRetryDelay overrides the single-shot wait applied when the
// navigator is not ready yet.
func WithReadyRetryDelay(d time.Duration) SyncOption {
	return func(s *Synchronizer) {
		if d >= 0 {
			s.readyDelay = d
		}
	}
}

// WithRoleRoutes overrides the role to dashboard route mapping.
func WithRoleRoutes(routes map[UserRole]string) SyncOption {
	return func(s *Synchronizer) {
		if len(routes) > 0 {
			s.roleRoutes = routes
		}
	}
}

// Synchronizer translates session state into screen-stack commands,
// decoupling screens from auth logic. It is a read-only observer of the
// Manager; the Navigator is the only thing it mutates.
type Synchronizer struct {
	source     StateSource
	nav        Navigator
	logger     Logger
	roleRoutes map[UserRole]string

	settleDelay time.Duration
	readyDelay  time.Duration
	sleep       func(time.Duration)

	mu          sync.Mutex
	last        *navKey
	unsubscribe func()
}

// NewSynchronizer wires a session source to a navigator. Call Start to
// begin observing.
func NewSynchronizer(source StateSource, nav Navigator, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		source:      source,
		nav:         nav,
		logger:      defLogger{},
		roleRoutes:  DefaultRoleRoutes(),
		settleDelay: 150 * time.Millisecond,
		readyDelay:  250 * time.Millisecond,
		sleep:       time.Sleep,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start evaluates the current state once and subscribes for changes.
func (s *Synchronizer) Start() {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return
	}
	s.unsubscribe = s.source.Subscribe(s.Evaluate)
	s.mu.Unlock()

	s.Evaluate(s.source.State())
}

// Stop unsubscribes from the session source.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Evaluate recomputes the comparison key for the given state and, when it
// changed, issues the matching navigation command.
func (s *Synchronizer) Evaluate(st State) {
	// Boot phases never drive navigation; the terminal boot state does.
	if st.Lifecycle == LifecycleUninitialized || st.Lifecycle == LifecycleInitializing {
		return
	}

	key := keyFor(st)

	s.mu.Lock()
	if s.last != nil && *s.last == key {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if !s.ready() {
		// Deferred, not dropped silently: the key stays unset so the next
		// published state re-evaluates.
		s.logger.Warn("navigator not ready, deferring navigation", "lifecycle", st.Lifecycle)
		return
	}

	switch {
	case st.RequiresOTP():
		// Give the pending-user record time to settle before the OTP
		// screen reads it.
		s.sleep(s.settleDelay)
		s.nav.Navigate(RouteOTP, s.userParams(st))

	case st.Lifecycle == LifecycleAwaitingEmailVerification:
		s.nav.Navigate(RouteVerifyEmail, s.userParams(st))

	case st.IsAuthenticated():
		s.nav.Reset(Route{Name: s.dashboardFor(st.User)})

	default:
		s.nav.Reset(Route{Name: RouteLogin})
	}

	s.mu.Lock()
	s.last = &key
	s.mu.Unlock()
}

// ready performs the one-shot readiness check: an immediate probe, a short
// wait, and a final probe. It never retries beyond that.
func (s *Synchronizer) ready() bool {
	if s.nav.IsReady() {
		return true
	}
	s.sleep(s.readyDelay)
	return s.nav.IsReady()
}

func (s *Synchronizer) dashboardFor(user *User) string {
	if user != nil {
		if route, ok := s.roleRoutes[user.Role]; ok {
			return route
		}
		s.logger.Warn("unrecognized user role, falling back to role selection", "role", user.Role)
	}
	return RouteRoleSelect
}

func (s *Synchronizer) userParams(st State) map[string]any {
	if st.User == nil {
		return nil
	}
	return map[string]any{"email": st.User.Email}
}

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// Toast titles surfaced by session operations.
const (
	titleSignInFailed         = "Sign In Failed"
	titleVerificationFailed   = "Verification Failed"
	titleResetFailed          = "Reset Failed"
	titleNetworkError         = "Network Error"
	titleEmailNotFound        = "Email Not Found"
	titleWelcomeBack          = "Welcome Back"
	titleVerificationRequired = "Verification Required"
	titleVerifyYourEmail      = "Verify Your Email"
	titleEmailVerified        = "Email Verified"
	titleResetEmailSent       = "Reset Email Sent"
	titlePasswordUpdated      = "Password Updated"
	titleSignedOut            = "Signed Out"
)

const deviceRegistrationTimeout = 10 * time.Second

// operation is the closed set of session operation kinds; toast titles and
// activity events dispatch on it.
type operation string

const (
	opLogin          operation = "login"
	opVerifyOTP      operation = "verify_otp"
	opVerifyEmail    operation = "verify_email"
	opForgotPassword operation = "forgot_password"
	opResetPassword  operation = "reset_password"
)

// errStaleCompletion marks a completion that lost the generation race and
// must be discarded without touching state.
var errStaleCompletion = errors.New("stale session completion discarded")

// LoginRequest carries the credentials step payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate implements the validation contract for the login payload.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// VerifyOTPRequest carries the one-time passcode step payload.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (r VerifyOTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.OTP, validation.Required, validation.Length(4, 8)),
	)
}

// VerifyEmailRequest carries the email verification step payload.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.OTP, validation.Required, validation.Length(4, 8)),
	)
}

// ResetPasswordRequest carries the OTP-plus-new-password payload.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.OTP, validation.Required, validation.Length(4, 8)),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 0)),
	)
}

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithLogger overrides the logger used by the manager.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNotifier sets the toast channel fed by session outcomes.
func WithNotifier(notifier Notifier) ManagerOption {
	return func(m *Manager) {
		m.notifier = normalizeNotifier(notifier)
	}
}

// WithDeviceRegistrar sets the push-token registration side channel.
func WithDeviceRegistrar(registrar DeviceRegistrar) ManagerOption {
	return func(m *Manager) {
		m.devices = normalizeDeviceRegistrar(registrar)
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.activity = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithEffectRunner overrides how best-effort side effects are scheduled.
// The default runs them on their own goroutine; tests inject a synchronous
// runner for determinism.
func WithEffectRunner(run func(func())) ManagerOption {
	return func(m *Manager) {
		if run != nil {
			m.run = run
		}
	}
}

type managerSubscriber struct {
	id int
	fn func(State)
}

var _ StateSource = (*Manager)(nil)

// Manager owns the authentication lifecycle and mediates every
// state-changing network operation. All other components are read-only
// observers of the State snapshots it publishes.
type Manager struct {
	gateway  Gateway
	store    CredentialStore
	notifier Notifier
	devices  DeviceRegistrar
	activity ActivitySink
	logger   Logger
	now      func() time.Time
	run      func(func())

	transitions map[Lifecycle]map[Lifecycle]struct{}

	mu          sync.Mutex
	state       State
	pending     *User
	token       string
	generation  uint64
	initialized bool
	subs        []managerSubscriber
	nextSub     int
}

// New returns a session Manager backed by the provided gateway and
// credential store. A nil store falls back to an in-memory store, which
// does not survive restarts.
func New(gateway Gateway, store CredentialStore, opts ...ManagerOption) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}

	m := &Manager{
		gateway:  gateway,
		store:    store,
		notifier: noopNotifier{},
		devices:  noopDeviceRegistrar{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
		run:      func(fn func()) { go fn() },
		state: State{
			Lifecycle: LifecycleUninitialized,
		},
		transitions: map[Lifecycle]map[Lifecycle]struct{}{
			LifecycleUninitialized: {
				LifecycleInitializing: {},
			},
			LifecycleInitializing: {
				LifecycleAuthenticated:   {},
				LifecycleUnauthenticated: {},
			},
			LifecycleUnauthenticated: {
				LifecycleAwaitingOTP:               {},
				LifecycleAwaitingEmailVerification: {},
				LifecycleAuthenticated:             {},
			},
			LifecycleAwaitingOTP: {
				LifecycleAwaitingEmailVerification: {},
				LifecycleAuthenticated:             {},
				LifecycleUnauthenticated:           {},
			},
			LifecycleAwaitingEmailVerification: {
				LifecycleAwaitingOTP:     {},
				LifecycleAuthenticated:   {},
				LifecycleUnauthenticated: {},
			},
			LifecycleAuthenticated: {
				LifecycleUnauthenticated: {},
			},
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// State returns a snapshot of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// PendingUser returns the user captured during the OTP step, or nil. The
// OTP screen uses it to know who is being verified.
func (m *Manager) PendingUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Clone()
}

// Subscribe registers an observer invoked with a snapshot after every
// state change. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs = append(m.subs, managerSubscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subs {
			if sub.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Initialize consults the credential store and resolves the lifecycle to a
// terminal boot state. It never fails and is idempotent; calling it twice
// does not double-transition.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	m.generation++
	gen := m.generation
	m.state.Lifecycle = LifecycleInitializing
	m.state.Loading = true
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	publishState(subs, snap)

	cred, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("failed to read credential store", "error", err)
		cred = nil
	}

	if cred == nil || cred.AccessToken == "" || cred.Email == "" || !cred.EmailVerified {
		m.apply(gen, LifecycleUnauthenticated, nil)
		return
	}

	if tokenExpired(cred.AccessToken, m.now()) {
		m.logger.Info("cached session token expired, clearing credential store")
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Error("failed to clear credential store", "error", err)
		}
		m.apply(gen, LifecycleUnauthenticated, nil)
		return
	}

	user := cred.User()
	if err := m.apply(gen, LifecycleAuthenticated, func(s *State) {
		s.User = user
		m.token = cred.AccessToken
	}); err != nil {
		return
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType:   ActivityEventRestore,
		UserID:      user.ID.String(),
		ToLifecycle: LifecycleAuthenticated,
	})
}

// Login performs the credentials step. Depending on the gateway response
// the session lands on the OTP step, the email verification step, or a
// fully authenticated state. On the latter, device registration is fired
// best-effort; its failure never fails Login.
func (m *Manager) Login(ctx context.Context, req LoginRequest) error {
	if err := req.Validate(); err != nil {
		return m.rejectPayload(opLogin, err, "invalid sign in request")
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}

	res, err := m.gateway.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return m.fail(ctx, gen, opLogin, ActivityEventLoginFailure, err)
	}
	if res == nil || res.User == nil {
		return m.fail(ctx, gen, opLogin, ActivityEventLoginFailure,
			goerrors.New("gateway returned an empty sign in response", goerrors.CategoryInternal))
	}

	return m.adoptSignIn(ctx, gen, res.AccessToken, res.User.Clone(), ActivityEventLoginSuccess)
}

// VerifyOTP performs the one-time passcode step. On success the pending
// user is discarded and the returned full user record is adopted.
func (m *Manager) VerifyOTP(ctx context.Context, req VerifyOTPRequest) error {
	if err := req.Validate(); err != nil {
		return m.rejectPayload(opVerifyOTP, err, "invalid passcode request")
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}

	res, err := m.gateway.VerifyOTP(ctx, req.Email, req.OTP)
	if err != nil {
		return m.fail(ctx, gen, opVerifyOTP, ActivityEventOTPFailure, err)
	}
	if res == nil || res.User == nil {
		return m.fail(ctx, gen, opVerifyOTP, ActivityEventOTPFailure,
			goerrors.New("gateway returned an empty verification response", goerrors.CategoryInternal))
	}

	return m.adoptSignIn(ctx, gen, res.AccessToken, res.User.Clone(), ActivityEventOTPSuccess)
}

// VerifyEmail performs the email verification step. On success only the
// verified flag is mutated in place and the session becomes fully
// authenticated.
func (m *Manager) VerifyEmail(ctx context.Context, req VerifyEmailRequest) error {
	if err := req.Validate(); err != nil {
		return m.rejectPayload(opVerifyEmail, err, "invalid verification request")
	}

	m.mu.Lock()
	if m.state.Lifecycle != LifecycleAwaitingEmailVerification || m.state.User == nil {
		m.mu.Unlock()
		return ErrNoPendingUser
	}
	m.mu.Unlock()

	gen, err := m.begin()
	if err != nil {
		return err
	}

	if err := m.gateway.VerifyEmail(ctx, req.Email, req.OTP); err != nil {
		return m.fail(ctx, gen, opVerifyEmail, ActivityEventOTPFailure, err)
	}

	var (
		token string
		user  *User
	)
	if err := m.apply(gen, LifecycleAuthenticated, func(s *State) {
		s.User.EmailVerified = true
		user = s.User.Clone()
		token = m.token
		m.pending = nil
	}); err != nil {
		if errors.Is(err, errStaleCompletion) {
			return nil
		}
		return err
	}

	m.persistCredential(ctx, token, user)
	m.notifier.ShowSuccess(titleEmailVerified, WithMessage("Your email address has been verified."))
	m.registerDeviceAsync(ctx)
	m.recordActivity(ctx, ActivityEvent{
		EventType:     ActivityEventEmailVerified,
		UserID:        user.ID.String(),
		FromLifecycle: LifecycleAwaitingEmailVerification,
		ToLifecycle:   LifecycleAuthenticated,
	})

	return nil
}

// ForgotPassword requests a password reset email. It never changes the
// lifecycle; outcomes are surfaced through the notification channel and,
// on failure, the state error.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return m.rejectPayload(opForgotPassword, err, "invalid email address")
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}

	if err := m.gateway.ForgotPassword(ctx, email); err != nil {
		return m.fail(ctx, gen, opForgotPassword, ActivityEventPasswordResetRequest, err)
	}

	if err := m.apply(gen, "", nil); err != nil {
		if errors.Is(err, errStaleCompletion) {
			return nil
		}
		return err
	}

	m.notifier.ShowSuccess(titleResetEmailSent, WithMessage("Check "+email+" for a reset code."))
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Metadata:  map[string]any{"email": email},
	})

	return nil
}

// VerifyOTPAndResetPassword verifies a reset code and applies the new
// password. Like ForgotPassword it never changes the lifecycle.
func (m *Manager) VerifyOTPAndResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return m.rejectPayload(opResetPassword, err, "invalid password reset request")
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}

	if err := m.gateway.ResetPassword(ctx, req.Email, req.OTP, req.NewPassword); err != nil {
		return m.fail(ctx, gen, opResetPassword, ActivityEventPasswordResetRequest, err)
	}

	if err := m.apply(gen, "", nil); err != nil {
		if errors.Is(err, errStaleCompletion) {
			return nil
		}
		return err
	}

	m.notifier.ShowSuccess(titlePasswordUpdated, WithMessage("You can now sign in with your new password."))
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Metadata:  map[string]any{"email": req.Email},
	})

	return nil
}

// Logout tears the session down unconditionally on this device. Remote
// device unregistration and the remote logout call are best-effort; their
// failures are logged or toasted but never keep the user signed in.
func (m *Manager) Logout(ctx context.Context) {
	gen := m.preempt()

	if err := m.devices.Unregister(ctx); err != nil {
		m.logger.Error("device unregistration failed", "error", err)
	}

	if err := m.gateway.Logout(ctx); err != nil {
		m.logger.Error("remote logout failed", "error", err)
		m.notifier.ShowWarning(titleSignedOut,
			WithMessage("Could not reach the server; your session was cleared on this device."))
	}

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear credential store", "error", err)
	}

	var userID string
	if err := m.apply(gen, LifecycleUnauthenticated, func(s *State) {
		if s.User != nil {
			userID = s.User.ID.String()
		}
		s.User = nil
		s.Err = ""
		m.pending = nil
		m.token = ""
	}); err != nil {
		m.logger.Error("logout transition failed", "error", err)
		return
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType:   ActivityEventLogout,
		UserID:      userID,
		ToLifecycle: LifecycleUnauthenticated,
	})
}

// ClearError clears the last error without otherwise changing state.
func (m *Manager) ClearError() {
	m.mu.Lock()
	if m.state.Err == "" {
		m.mu.Unlock()
		return
	}
	m.state.Err = ""
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	publishState(subs, snap)
}

// adoptSignIn applies the shared branch table for Login and VerifyOTP
// responses: no token means the OTP step, an unverified email parks the
// session at verification, otherwise the session is fully established.
func (m *Manager) adoptSignIn(ctx context.Context, gen uint64, token string, user *User, successEvent ActivityEventType) error {
	switch {
	case token == "":
		if err := m.apply(gen, LifecycleAwaitingOTP, func(s *State) {
			s.User = user
			m.pending = user.Clone()
			m.token = ""
		}); err != nil {
			if errors.Is(err, errStaleCompletion) {
				return nil
			}
			return err
		}

		m.notifier.ShowInfo(titleVerificationRequired,
			WithMessage("Enter the code we sent to "+user.Email+"."))
		m.recordActivity(ctx, ActivityEvent{
			EventType:   successEvent,
			UserID:      user.ID.String(),
			ToLifecycle: LifecycleAwaitingOTP,
			Metadata:    map[string]any{"otp_required": true},
		})

		return nil

	case !user.EmailVerified:
		if err := m.apply(gen, LifecycleAwaitingEmailVerification, func(s *State) {
			s.User = user
			m.pending = nil
			m.token = token
		}); err != nil {
			if errors.Is(err, errStaleCompletion) {
				return nil
			}
			return err
		}

		m.notifier.ShowInfo(titleVerifyYourEmail,
			WithMessage("We sent a verification code to "+user.Email+"."))
		m.recordActivity(ctx, ActivityEvent{
			EventType:   successEvent,
			UserID:      user.ID.String(),
			ToLifecycle: LifecycleAwaitingEmailVerification,
			Metadata:    map[string]any{"email_verified": false},
		})

		return nil

	default:
		if err := m.apply(gen, LifecycleAuthenticated, func(s *State) {
			s.User = user
			m.pending = nil
			m.token = token
		}); err != nil {
			if errors.Is(err, errStaleCompletion) {
				return nil
			}
			return err
		}

		m.persistCredential(ctx, token, user)
		m.notifier.ShowSuccess(titleWelcomeBack, WithMessage(user.DisplayName()))
		m.registerDeviceAsync(ctx)
		m.recordActivity(ctx, ActivityEvent{
			EventType:   successEvent,
			UserID:      user.ID.String(),
			ToLifecycle: LifecycleAuthenticated,
		})

		return nil
	}
}

// begin reserves the loading slot and bumps the generation counter. It
// fails when another session mutation is still in flight.
func (m *Manager) begin() (uint64, error) {
	m.mu.Lock()
	if m.state.Loading {
		m.mu.Unlock()
		return 0, ErrOperationInFlight
	}
	m.generation++
	gen := m.generation
	m.state.Loading = true
	m.state.Err = ""
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	publishState(subs, snap)
	return gen, nil
}

// preempt bumps the generation regardless of in-flight work. Used by
// Logout, which must win every race; the preempted operation's completion
// is discarded as stale.
func (m *Manager) preempt() uint64 {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.state.Loading = true
	m.state.Err = ""
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	publishState(subs, snap)
	return gen
}

// apply commits a terminal transition for the given generation. An empty
// target keeps the current lifecycle (loading/error bookkeeping only).
// Stale generations are discarded without touching state.
func (m *Manager) apply(gen uint64, to Lifecycle, mut func(s *State)) error {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug("discarding stale session completion", "generation", gen)
		return errStaleCompletion
	}

	from := m.state.Lifecycle
	if to == "" {
		to = from
	}

	if to != from && !m.canTransition(from, to) {
		m.state.Loading = false
		snap, subs := m.snapshotLocked()
		m.mu.Unlock()
		publishState(subs, snap)
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   to,
		})
	}

	m.state.Lifecycle = to
	if mut != nil {
		mut(&m.state)
	}
	m.state.Loading = false
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	publishState(subs, snap)
	return nil
}

// fail records a failed operation: it stores the user-facing message,
// clears loading, emits exactly one error toast, and re-throws the
// classified error so screens can react. Stale failures do none of that.
func (m *Manager) fail(ctx context.Context, gen uint64, op operation, event ActivityEventType, err error) error {
	rich := Classify(err)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug("discarding stale session failure", "operation", op)
		return rich
	}
	m.state.Err = rich.Message
	m.state.Loading = false
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	publishState(subs, snap)

	m.notifier.ShowError(toastTitle(op, rich), WithMessage(rich.Message))
	m.recordActivity(ctx, ActivityEvent{
		EventType: event,
		Metadata: map[string]any{
			"operation": string(op),
			"error":     rich.Message,
		},
	})
	m.logger.Error("session operation failed",
		"operation", op,
		"category", rich.Category,
		"details", print.MaybePrettyJSON(rich.Metadata),
	)

	return rich
}

// rejectPayload handles local validation failures: no loading cycle, but
// the same one-toast-plus-state-error surfacing as remote failures.
func (m *Manager) rejectPayload(op operation, err error, msg string) error {
	rich := goerrors.Wrap(err, goerrors.CategoryBadInput, msg)

	m.mu.Lock()
	m.state.Err = rich.Message
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	publishState(subs, snap)

	m.notifier.ShowError(toastTitle(op, rich), WithMessage(rich.Message))
	return rich
}

func (m *Manager) canTransition(from, to Lifecycle) bool {
	if allowed, ok := m.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (m *Manager) persistCredential(ctx context.Context, token string, user *User) {
	if err := m.store.Save(ctx, NewCredential(token, user)); err != nil {
		m.logger.Error("failed to persist session credential", "error", err)
	}
}

// registerDeviceAsync fires the push-token registration side effect off
// the critical path. Failures are logged only.
func (m *Manager) registerDeviceAsync(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	m.run(func() {
		rctx, cancel := context.WithTimeout(base, deviceRegistrationTimeout)
		defer cancel()
		if err := m.devices.Register(rctx); err != nil {
			m.logger.Error("device registration failed", "error", err)
		}
	})
}

func (m *Manager) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}

	if err := normalizeActivitySink(m.activity).Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error", "error", err)
	}
}

func (m *Manager) snapshotLocked() (State, []managerSubscriber) {
	return m.state.clone(), append([]managerSubscriber(nil), m.subs...)
}

func publishState(subs []managerSubscriber, snap State) {
	for _, sub := range subs {
		sub.fn(snap)
	}
}

func toastTitle(op operation, rich *goerrors.Error) string {
	if rich != nil && rich.TextCode == TextCodeNetworkError {
		return titleNetworkError
	}

	switch op {
	case opForgotPassword:
		if rich != nil && rich.Category == goerrors.CategoryNotFound {
			return titleEmailNotFound
		}
		return titleResetFailed
	case opResetPassword:
		return titleResetFailed
	case opVerifyOTP, opVerifyEmail:
		return titleVerificationFailed
	default:
		return titleSignInFailed
	}
}

package session_test

import (
	"context"
	"sync"

	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/mock"
)

// MockGateway implements session.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SignIn(ctx context.Context, email, password string) (*session.SignInResult, error) {
	args := m.Called(ctx, email, password)
	var res *session.SignInResult
	if v := args.Get(0); v != nil {
		res = v.(*session.SignInResult)
	}
	return res, args.Error(1)
}

func (m *MockGateway) VerifyOTP(ctx context.Context, email, otp string) (*session.VerifyResult, error) {
	args := m.Called(ctx, email, otp)
	var res *session.VerifyResult
	if v := args.Get(0); v != nil {
		res = v.(*session.VerifyResult)
	}
	return res, args.Error(1)
}

func (m *MockGateway) VerifyEmail(ctx context.Context, email, otp string) error {
	args := m.Called(ctx, email, otp)
	return args.Error(0)
}

func (m *MockGateway) ForgotPassword(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockGateway) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	args := m.Called(ctx, email, otp, newPassword)
	return args.Error(0)
}

func (m *MockGateway) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockRegistrar implements session.DeviceRegistrar
type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) Register(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRegistrar) Unregister(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockActivitySink implements session.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event session.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// funcGateway lets tests script individual gateway calls, e.g. to block a
// sign-in mid-flight.
type funcGateway struct {
	signIn         func(ctx context.Context, email, password string) (*session.SignInResult, error)
	verifyOTP      func(ctx context.Context, email, otp string) (*session.VerifyResult, error)
	verifyEmail    func(ctx context.Context, email, otp string) error
	forgotPassword func(ctx context.Context, email string) error
	resetPassword  func(ctx context.Context, email, otp, newPassword string) error
	logout         func(ctx context.Context) error
}

func (g *funcGateway) SignIn(ctx context.Context, email, password string) (*session.SignInResult, error) {
	if g.signIn == nil {
		return nil, nil
	}
	return g.signIn(ctx, email, password)
}

func (g *funcGateway) VerifyOTP(ctx context.Context, email, otp string) (*session.VerifyResult, error) {
	if g.verifyOTP == nil {
		return nil, nil
	}
	return g.verifyOTP(ctx, email, otp)
}

func (g *funcGateway) VerifyEmail(ctx context.Context, email, otp string) error {
	if g.verifyEmail == nil {
		return nil
	}
	return g.verifyEmail(ctx, email, otp)
}

func (g *funcGateway) ForgotPassword(ctx context.Context, email string) error {
	if g.forgotPassword == nil {
		return nil
	}
	return g.forgotPassword(ctx, email)
}

func (g *funcGateway) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	if g.resetPassword == nil {
		return nil
	}
	return g.resetPassword(ctx, email, otp, newPassword)
}

func (g *funcGateway) Logout(ctx context.Context) error {
	if g.logout == nil {
		return nil
	}
	return g.logout(ctx)
}

// navCommand records one router invocation.
type navCommand struct {
	op     string
	name   string
	params map[string]any
	routes []session.Route
}

// recordingNavigator implements session.Navigator and records commands.
type recordingNavigator struct {
	mu       sync.Mutex
	ready    bool
	commands []navCommand
}

func newRecordingNavigator(ready bool) *recordingNavigator {
	return &recordingNavigator{ready: ready}
}

func (n *recordingNavigator) Reset(routes ...session.Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.commands = append(n.commands, navCommand{op: "reset", routes: routes})
}

func (n *recordingNavigator) Navigate(name string, params map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.commands = append(n.commands, navCommand{op: "navigate", name: name, params: params})
}

func (n *recordingNavigator) GoBack() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.commands = append(n.commands, navCommand{op: "back"})
}

func (n *recordingNavigator) IsReady() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

func (n *recordingNavigator) setReady(ready bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = ready
}

func (n *recordingNavigator) recorded() []navCommand {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navCommand(nil), n.commands...)
}

// stubSource implements session.StateSource with scripted state.
type stubSource struct {
	mu    sync.Mutex
	state session.State
	subs  []func(session.State)
}

func newStubSource(state session.State) *stubSource {
	return &stubSource{state: state}
}

func (s *stubSource) State() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubSource) Subscribe(fn func(session.State)) func() {
	s.mu.Lock()
	idx := len(s.subs)
	s.subs = append(s.subs, fn)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.subs) {
			s.subs[idx] = nil
		}
	}
}

func (s *stubSource) publish(state session.State) {
	s.mu.Lock()
	s.state = state
	subs := append(([]func(session.State))(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn(state)
		}
	}
}

// toastsOfKind filters a feed snapshot by kind.
func toastsOfKind(items []session.Toast, kind session.ToastKind) []session.Toast {
	var out []session.Toast
	for _, item := range items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

func syncRunner() func(func()) {
	return func(fn func()) { fn() }
}

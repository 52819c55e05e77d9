package session

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SignInResult is the Gateway response to a credentials sign-in. An empty
// AccessToken means the account requires a one-time passcode before a token
// is issued.
type SignInResult struct {
	AccessToken string `json:"access_token,omitempty"`
	User        *User  `json:"user,omitempty"`
}

// VerifyResult is the Gateway response to a successful OTP verification.
type VerifyResult struct {
	AccessToken string `json:"access_token,omitempty"`
	User        *User  `json:"user,omitempty"`
}

// Gateway is the network boundary for authentication operations. Every call
// must honor its own timeout: session operations may fail, never hang.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)
	VerifyOTP(ctx context.Context, email, otp string) (*VerifyResult, error)
	VerifyEmail(ctx context.Context, email, otp string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
	Logout(ctx context.Context) error
}

// CredentialStore is durable device-local storage for the access token and
// the last known user record. Load returns (nil, nil) when nothing is
// stored.
type CredentialStore interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
	Clear(ctx context.Context) error
}

// Route identifies a screen plus its navigation parameters.
type Route struct {
	Name   string
	Params map[string]any
}

// Navigator is the imperative, stack-based screen router driven by the
// Synchronizer. Commands issued before IsReady reports true are deferred by
// the caller.
type Navigator interface {
	Reset(routes ...Route)
	Navigate(name string, params map[string]any)
	GoBack()
	IsReady() bool
}

// DeviceRegistrar manages the push-token registration side channel.
// Both calls are best-effort: failures are logged, never surfaced to the
// session transition that triggered them.
type DeviceRegistrar interface {
	Register(ctx context.Context) error
	Unregister(ctx context.Context) error
}

type noopDeviceRegistrar struct{}

func (noopDeviceRegistrar) Register(context.Context) error   { return nil }
func (noopDeviceRegistrar) Unregister(context.Context) error { return nil }

func normalizeDeviceRegistrar(r DeviceRegistrar) DeviceRegistrar {
	if r == nil {
		return noopDeviceRegistrar{}
	}
	return r
}

// StateSource is the read-only view of a Manager consumed by observers such
// as the Synchronizer and the Prefetcher.
type StateSource interface {
	State() State
	Subscribe(fn func(State)) func()
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

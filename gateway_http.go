package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Backend auth endpoints.
const (
	routeSignIn         = "/auth/sign-in"
	routeVerifyOTP      = "/auth/verify-otp"
	routeVerifyEmail    = "/auth/verify-email"
	routeForgotPassword = "/auth/forgot-password"
	routeResetPassword  = "/auth/reset-password"
	routeLogout         = "/auth/logout"
	routeProfile        = "/auth/me"
)

// defaultGatewayTimeout bounds every request. Session operations may fail,
// never hang: isLoading blocks UI affordances while a call is in flight.
const defaultGatewayTimeout = 15 * time.Second

var _ Gateway = (*HTTPGateway)(nil)

// HTTPGateway talks to the school platform's REST authentication API.
type HTTPGateway struct {
	baseURL     string
	client      *http.Client
	logger      Logger
	tokenSource func() string
}

// NewHTTPGateway returns a Gateway bound to the given base URL.
func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultGatewayTimeout},
		logger:  defLogger{},
	}
}

// WithHTTPClient overrides the underlying client, e.g. to adjust the
// timeout or install a test transport.
func (g *HTTPGateway) WithHTTPClient(client *http.Client) *HTTPGateway {
	if client != nil {
		g.client = client
	}
	return g
}

// WithLogger overrides the gateway logger.
func (g *HTTPGateway) WithLogger(logger Logger) *HTTPGateway {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// WithTokenSource installs the access-token provider used to authorize
// requests that require an established session.
func (g *HTTPGateway) WithTokenSource(source func() string) *HTTPGateway {
	g.tokenSource = source
	return g
}

type signInPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPPayload struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordPayload struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

type emailPayload struct {
	Email string `json:"email"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// SignIn exchanges credentials for either a full session or an OTP
// challenge; the backend signals the challenge by omitting the token.
func (g *HTTPGateway) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	out := &SignInResult{}
	if err := g.post(ctx, routeSignIn, signInPayload{Email: email, Password: password}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyOTP redeems a one-time passcode for the full session.
func (g *HTTPGateway) VerifyOTP(ctx context.Context, email, otp string) (*VerifyResult, error) {
	out := &VerifyResult{}
	if err := g.post(ctx, routeVerifyOTP, verifyOTPPayload{Email: email, OTP: otp}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyEmail redeems an email verification code.
func (g *HTTPGateway) VerifyEmail(ctx context.Context, email, otp string) error {
	return g.post(ctx, routeVerifyEmail, verifyOTPPayload{Email: email, OTP: otp}, nil)
}

// ForgotPassword requests a password reset code for the given address.
func (g *HTTPGateway) ForgotPassword(ctx context.Context, email string) error {
	return g.post(ctx, routeForgotPassword, emailPayload{Email: email}, nil)
}

// ResetPassword redeems a reset code and applies the new password.
func (g *HTTPGateway) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	return g.post(ctx, routeResetPassword, resetPasswordPayload{
		Email:       email,
		OTP:         otp,
		NewPassword: newPassword,
	}, nil)
}

// Logout invalidates the session server-side. The session Manager treats
// failures here as advisory.
func (g *HTTPGateway) Logout(ctx context.Context) error {
	return g.post(ctx, routeLogout, nil, nil)
}

// IsAuthenticated reports whether the gateway currently holds an access
// token to authorize requests with.
func (g *HTTPGateway) IsAuthenticated() bool {
	return g.tokenSource != nil && g.tokenSource() != ""
}

// UserData fetches the caller's profile, e.g. to refresh a restored
// session's cached user record.
func (g *HTTPGateway) UserData(ctx context.Context) (*User, error) {
	user := &User{}
	if err := g.get(ctx, routeProfile, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode gateway request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build gateway request")
	}

	return g.do(req, out)
}

func (g *HTTPGateway) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build gateway request")
	}

	return g.do(req, out)
}

func (g *HTTPGateway) do(req *http.Request, out any) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.tokenSource != nil {
		if token := g.tokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	res, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("gateway transport failure", "path", req.URL.Path, "error", err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not reach the server").
			WithTextCode(TextCodeNetworkError)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read gateway response").
			WithTextCode(TextCodeNetworkError)
	}

	if res.StatusCode >= 400 {
		return g.classifyStatus(req.URL.Path, res.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode gateway response")
	}

	return nil
}

// classifyStatus maps an HTTP error response onto the session error
// taxonomy, preserving the backend's message when it sent one.
func (g *HTTPGateway) classifyStatus(path string, status int, raw []byte) error {
	msg := ""
	apiErr := apiError{}
	if err := json.Unmarshal(raw, &apiErr); err == nil {
		if apiErr.Message != "" {
			msg = apiErr.Message
		} else {
			msg = apiErr.Error
		}
	}

	meta := map[string]any{
		"path":   path,
		"status": status,
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if msg == "" {
			msg = "invalid credentials or verification code"
		}
		return goerrors.New(msg, goerrors.CategoryAuth).
			WithTextCode(TextCodeAuthRejected).
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(meta)

	case status == http.StatusNotFound:
		if msg == "" {
			msg = "the requested account was not found"
		}
		return goerrors.New(msg, goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(meta)

	case status == http.StatusConflict:
		if msg == "" {
			msg = "the account already exists"
		}
		return goerrors.New(msg, goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithMetadata(meta)

	case status >= 500:
		if msg == "" {
			msg = "the server had a problem, try again later"
		}
		return goerrors.New(msg, goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal).
			WithMetadata(meta)

	case status == http.StatusBadRequest:
		if msg == "" {
			msg = "the request was rejected"
		}
		return goerrors.New(msg, goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(meta)

	default:
		if msg == "" {
			msg = "unexpected gateway response"
		}
		return goerrors.New(msg, goerrors.CategoryInternal).
			WithMetadata(meta)
	}
}

package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	session "github.com/goliatone/go-session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGatewaySignInDecodesResponse(t *testing.T) {
	userID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/sign-in", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ada@school.test", payload["email"])
		assert.Equal(t, "sup3rsecret", payload["password"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tkn",
			"user": map[string]any{
				"id":                userID.String(),
				"email":             "ada@school.test",
				"role":              "student",
				"first_name":        "Ada",
				"last_name":         "Lovelace",
				"is_email_verified": true,
			},
		})
	}))
	defer server.Close()

	gateway := session.NewHTTPGateway(server.URL)
	res, err := gateway.SignIn(context.Background(), "ada@school.test", "sup3rsecret")
	require.NoError(t, err)

	assert.Equal(t, "tkn", res.AccessToken)
	require.NotNil(t, res.User)
	assert.Equal(t, userID, res.User.ID)
	assert.Equal(t, session.RoleStudent, res.User.Role)
	assert.True(t, res.User.EmailVerified)
}

func TestHTTPGatewaySignInOmittedTokenMeansOTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{
				"id":    uuid.NewString(),
				"email": "ada@school.test",
				"role":  "student",
			},
		})
	}))
	defer server.Close()

	gateway := session.NewHTTPGateway(server.URL)
	res, err := gateway.SignIn(context.Background(), "ada@school.test", "sup3rsecret")
	require.NoError(t, err)

	assert.Empty(t, res.AccessToken)
	require.NotNil(t, res.User)
}

func TestHTTPGatewayStatusClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantCategory goerrors.Category
		wantTextCode string
		wantMessage  string
	}{
		{
			name:         "401 maps to auth rejection",
			status:       http.StatusUnauthorized,
			body:         `{"message":"invalid email or password"}`,
			wantCategory: goerrors.CategoryAuth,
			wantTextCode: session.TextCodeAuthRejected,
			wantMessage:  "invalid email or password",
		},
		{
			name:         "403 maps to auth rejection",
			status:       http.StatusForbidden,
			body:         `{"error":"account locked"}`,
			wantCategory: goerrors.CategoryAuth,
			wantTextCode: session.TextCodeAuthRejected,
			wantMessage:  "account locked",
		},
		{
			name:         "404 maps to not found",
			status:       http.StatusNotFound,
			body:         `{"message":"no account for that address"}`,
			wantCategory: goerrors.CategoryNotFound,
			wantMessage:  "no account for that address",
		},
		{
			name:         "409 maps to conflict",
			status:       http.StatusConflict,
			body:         `{"message":"email already registered"}`,
			wantCategory: goerrors.CategoryConflict,
			wantMessage:  "email already registered",
		},
		{
			name:         "500 maps to server error",
			status:       http.StatusInternalServerError,
			body:         `{}`,
			wantCategory: goerrors.CategoryInternal,
		},
		{
			name:         "400 maps to bad input",
			status:       http.StatusBadRequest,
			body:         `{"message":"otp must be 6 digits"}`,
			wantCategory: goerrors.CategoryBadInput,
			wantMessage:  "otp must be 6 digits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			gateway := session.NewHTTPGateway(server.URL)
			_, err := gateway.SignIn(context.Background(), "ada@school.test", "pw")
			require.Error(t, err)

			var rich *goerrors.Error
			require.True(t, goerrors.As(err, &rich))
			assert.Equal(t, tt.wantCategory, rich.Category)
			if tt.wantTextCode != "" {
				assert.Equal(t, tt.wantTextCode, rich.TextCode)
			}
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, rich.Message)
			}
			assert.Equal(t, tt.status, rich.Metadata["status"])
		})
	}
}

func TestHTTPGatewayTransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused from here on

	gateway := session.NewHTTPGateway(server.URL)
	_, err := gateway.SignIn(context.Background(), "ada@school.test", "pw")
	require.Error(t, err)
	assert.True(t, session.IsNetworkError(err))
}

func TestHTTPGatewayAuthorizesWithBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	gateway := session.NewHTTPGateway(server.URL).
		WithTokenSource(func() string { return "tkn" })

	require.NoError(t, gateway.Logout(context.Background()))
	assert.Equal(t, "Bearer tkn", gotAuth)
	assert.True(t, gateway.IsAuthenticated())
}

func TestHTTPGatewayUserData(t *testing.T) {
	userID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/me", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"id":                userID.String(),
			"email":             "ada@school.test",
			"role":              "teacher",
			"is_email_verified": true,
		})
	}))
	defer server.Close()

	gateway := session.NewHTTPGateway(server.URL)
	user, err := gateway.UserData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, userID, user.ID)
	assert.Equal(t, session.RoleTeacher, user.Role)
	assert.True(t, user.EmailVerified)
}

func TestHTTPGatewayEmptyBodySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	gateway := session.NewHTTPGateway(server.URL)
	assert.NoError(t, gateway.ForgotPassword(context.Background(), "ada@school.test"))
	assert.NoError(t, gateway.VerifyEmail(context.Background(), "ada@school.test", "123456"))
	assert.False(t, gateway.IsAuthenticated())
}

package session

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidTransition marks a lifecycle change outside the
	// transition table.
	TextCodeInvalidTransition = "INVALID_LIFECYCLE_TRANSITION"
	// TextCodeOperationInFlight marks an operation rejected because another
	// session mutation is still loading.
	TextCodeOperationInFlight = "OPERATION_IN_FLIGHT"
	// TextCodeNoPendingUser marks a verification attempted with no user on
	// record.
	TextCodeNoPendingUser = "NO_PENDING_USER"
	// TextCodeNetworkError marks a transport failure with no response.
	TextCodeNetworkError = "NETWORK_ERROR"
	// TextCodeAuthRejected marks rejected credentials, passcodes, or
	// verification codes.
	TextCodeAuthRejected = "AUTH_REJECTED"
)

// ErrInvalidTransition is returned when a requested lifecycle change is not
// allowed by the transition table.
var ErrInvalidTransition = goerrors.New("invalid session lifecycle transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrOperationInFlight is returned when a session-mutating operation starts
// while another one is still loading.
var ErrOperationInFlight = goerrors.New("another session operation is in flight", goerrors.CategoryConflict).
	WithTextCode(TextCodeOperationInFlight).
	WithCode(goerrors.CodeConflict)

// ErrNoPendingUser is returned when a verification step runs without a user
// captured from a prior sign-in.
var ErrNoPendingUser = goerrors.New("no user awaiting verification", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNoPendingUser).
	WithCode(goerrors.CodeNotFound)

// Classify normalizes an arbitrary error into the session error taxonomy.
// Gateway implementations already return rich errors; anything else is
// wrapped as an internal failure.
func Classify(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected session error")
}

// IsNetworkError reports a transport-level failure (no response received).
func IsNetworkError(err error) bool {
	rich := Classify(err)
	if rich == nil {
		return false
	}
	return rich.TextCode == TextCodeNetworkError
}

// IsAuthRejected reports rejected credentials or verification codes.
func IsAuthRejected(err error) bool {
	rich := Classify(err)
	if rich == nil {
		return false
	}
	return rich.Category == goerrors.CategoryAuth || rich.TextCode == TextCodeAuthRejected
}

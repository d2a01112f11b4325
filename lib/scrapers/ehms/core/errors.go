package core

import (
	"errors"
	"fmt"
)

// InvalidCredentialsError covers both blank credentials at
// construction and a login the portal rejected outright.
type InvalidCredentialsError struct {
	Login string
}

func (e *InvalidCredentialsError) Error() string {
	if e.Login == "" {
		return "credentials cannot be empty strings"
	}
	return fmt.Sprintf("authentication failed for user %s, are the login details correct?", e.Login)
}

// UnexpectedStatusError is returned on any non-200 response during
// the fetch/login flow. It is a transport fault, not an auth state.
type UnexpectedStatusError struct {
	Code int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("ehms returned an unexpected status code: %d", e.Code)
}

// RateLimitExceededError means the portal is demanding a captcha. The
// caller must wait or solve it out-of-band before logging in again.
type RateLimitExceededError struct {
	Login string
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("user %s got rate-limited, wait or solve the captcha before logging in again", e.Login)
}

// ConcurrentSessionError means the portal detected another active
// session for the same account.
type ConcurrentSessionError struct {
	Login string
}

func (e *ConcurrentSessionError) Error() string {
	return fmt.Sprintf("user %s is already logged in on another device", e.Login)
}

// ErrAuthenticationLoop is returned when a fetch is still shown the
// login screen immediately after a login that reported success. It
// signals markup drift or an inconsistent server and is never retried.
var ErrAuthenticationLoop = errors.New("still unauthenticated after a successful login, the portal markup may have changed")

// LoginFormError means the login page no longer matches the expected
// markup and the integration must be treated as broken.
type LoginFormError struct {
	Reason string
}

func (e *LoginFormError) Error() string {
	return fmt.Sprintf("login form does not match the expected markup: %s", e.Reason)
}

package tenantauth

import (
	"context"
	"errors"
	"net/http"
)

// ErrorKind classifies every failure returned by the Engine. The set is closed:
// callers may switch over it exhaustively.
type ErrorKind uint8

const (
	// KindInternal is an unexpected failure inside the engine.
	KindInternal ErrorKind = iota
	// KindValidation is a malformed or policy-violating request.
	KindValidation
	// KindInvalidCredentials is a wrong email or password.
	KindInvalidCredentials
	// KindInvalidToken is a bearer token that fails signature, expiry, revocation or session checks.
	KindInvalidToken
	// KindInvalidSignature is a wallet signature that does not recover to the claimed address.
	KindInvalidSignature
	// KindChallengeInvalid is a missing, expired or already consumed wallet challenge.
	KindChallengeInvalid
	// KindAccountLocked is a password login against a locked account.
	KindAccountLocked
	// KindConflict is an email or wallet already bound in the tenant.
	KindConflict
	// KindRateLimited is a request rejected by the fixed-window limiter.
	KindRateLimited
	// KindPersistenceTimeout is a port call that exceeded its deadline.
	KindPersistenceTimeout
	// KindPersistenceError is any other port failure.
	KindPersistenceError
	// KindTenantAccessDenied is an unknown or inactive tenant.
	KindTenantAccessDenied
	// KindFeatureDisabled is an authentication method the tenant does not enable.
	KindFeatureDisabled
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidToken:
		return "invalid_token"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindChallengeInvalid:
		return "challenge_invalid"
	case KindAccountLocked:
		return "account_locked"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindPersistenceTimeout:
		return "persistence_timeout"
	case KindPersistenceError:
		return "persistence_error"
	case KindTenantAccessDenied:
		return "tenant_access_denied"
	case KindFeatureDisabled:
		return "feature_disabled"
	default:
		return "internal"
	}
}

// AuthError is the only error type that crosses the Engine boundary. Code is the
// stable wire code, Message a fixed human-readable text, and Details optional
// structured context (never secrets, never driver messages).
type AuthError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]string

	cause error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Code + ": " + e.Message
}

// Unwrap exposes the internal cause for logging. It is never serialized.
func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches by wire code so that errors.Is(err, ErrAccountLocked) works for
// copies carrying details or causes.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus returns the transport status for the error's wire code.
func (e *AuthError) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindChallengeInvalid:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindInvalidToken, KindInvalidSignature:
		return http.StatusUnauthorized
	case KindAccountLocked, KindTenantAccessDenied, KindFeatureDisabled:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindPersistenceTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a copy of e with details attached.
func (e *AuthError) WithDetails(details map[string]string) *AuthError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AuthError) withCause(err error) *AuthError {
	cp := *e
	cp.cause = err
	return &cp
}

var (
	// ErrValidation is returned for malformed input and password policy failures.
	ErrValidation = &AuthError{Kind: KindValidation, Code: "validation_failed", Message: "request validation failed"}
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials, Code: "invalid_credentials", Message: "invalid email or password"}
	// ErrInvalidToken is returned for every bearer token rejection.
	ErrInvalidToken = &AuthError{Kind: KindInvalidToken, Code: "invalid_token", Message: "invalid or expired token"}
	// ErrInvalidSignature is returned when a wallet signature does not match the address.
	ErrInvalidSignature = &AuthError{Kind: KindInvalidSignature, Code: "invalid_signature", Message: "signature does not match wallet address"}
	// ErrChallengeInvalid is returned when no live challenge exists for the wallet.
	ErrChallengeInvalid = &AuthError{Kind: KindChallengeInvalid, Code: "challenge_invalid", Message: "challenge missing, expired or already used"}
	// ErrAccountLocked is returned while lockedUntil is in the future.
	ErrAccountLocked = &AuthError{Kind: KindAccountLocked, Code: "account_locked", Message: "account temporarily locked"}
	// ErrEmailTaken is returned when the email is already registered in the tenant.
	ErrEmailTaken = &AuthError{Kind: KindConflict, Code: "email_taken", Message: "email already registered"}
	// ErrWalletTaken is returned when the wallet is bound to another user in the tenant.
	ErrWalletTaken = &AuthError{Kind: KindConflict, Code: "wallet_taken", Message: "wallet already linked"}
	// ErrRateLimited is returned when the caller exhausted its window.
	ErrRateLimited = &AuthError{Kind: KindRateLimited, Code: "rate_limited", Message: "too many requests"}
	// ErrPersistenceTimeout is returned when a store call exceeded its deadline.
	ErrPersistenceTimeout = &AuthError{Kind: KindPersistenceTimeout, Code: "persistence_timeout", Message: "storage did not respond in time"}
	// ErrPersistence is returned for any other storage failure.
	ErrPersistence = &AuthError{Kind: KindPersistenceError, Code: "persistence_error", Message: "storage failure"}
	// ErrInternal is returned for unexpected engine failures.
	ErrInternal = &AuthError{Kind: KindInternal, Code: "internal_error", Message: "internal error"}
	// ErrTenantAccessDenied is returned for unknown or inactive tenants.
	ErrTenantAccessDenied = &AuthError{Kind: KindTenantAccessDenied, Code: "tenant_access_denied", Message: "tenant not available"}
	// ErrFeatureDisabled is returned when the tenant does not enable the requested method.
	ErrFeatureDisabled = &AuthError{Kind: KindFeatureDisabled, Code: "feature_disabled", Message: "authentication method disabled for tenant"}
	// ErrEngineNotReady is returned by a zero Engine.
	ErrEngineNotReady = &AuthError{Kind: KindInternal, Code: "internal_error", Message: "engine not initialized"}
)

// Repository sentinels. Adapters in storage/ return these so the engine can map
// them without knowing the driver.
var (
	// ErrNotFound reports a missing user or tenant row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail reports a (tenant, email) uniqueness violation.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrDuplicateWallet reports a (tenant, wallet) uniqueness violation.
	ErrDuplicateWallet = errors.New("duplicate wallet")
)

// AsAuthError extracts the AuthError from err. Foreign errors are reported as
// internal errors wrapping the original.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return ErrInternal.withCause(err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}
	return AsAuthError(err).Kind
}

// persistenceError maps a port failure onto the persistence kinds.
func persistenceError(err error) *AuthError {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrPersistenceTimeout.withCause(err)
	}
	return ErrPersistence.withCause(err)
}

func validationError(rules ...string) *AuthError {
	details := make(map[string]string, len(rules))
	for _, r := range rules {
		details[r] = "failed"
	}
	return ErrValidation.WithDetails(details)
}

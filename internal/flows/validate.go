package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantauth/session"
)

type ValidateErrors struct {
	EngineNotReady  error
	InvalidToken    error
	SessionNotFound error
}

// ValidateDeps captures bearer verification dependencies.
type ValidateDeps struct {
	Now         func() time.Time
	VerifyToken func(ctx context.Context, token string) (BearerClaims, error)
	GetSession  func(ctx context.Context, sessionID string) (*session.Session, error)

	MetricInc       func(int)
	ValidateSuccess int
	ValidateFailure int

	Errors ValidateErrors
}

// RunVerifyBearer checks the token signature, expiry and revocation, then
// requires its session to be live and to belong to the same user and tenant.
// A non-empty tenantID additionally pins the token to that tenant.
func RunVerifyBearer(ctx context.Context, token, tenantID string, deps ValidateDeps) (*BearerClaims, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.VerifyToken == nil || deps.GetSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	reject := func() (*BearerClaims, error) {
		deps.MetricInc(deps.ValidateFailure)
		return nil, deps.Errors.InvalidToken
	}

	claims, err := deps.VerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, deps.Errors.InvalidToken) {
			return reject()
		}
		return nil, err
	}
	if tenantID != "" && claims.TenantID != tenantID {
		return reject()
	}

	sess, err := deps.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, deps.Errors.SessionNotFound) {
			return reject()
		}
		return nil, err
	}
	if sess.Expired(deps.Now()) || sess.UserID != claims.UserID || sess.TenantID != claims.TenantID {
		return reject()
	}

	deps.MetricInc(deps.ValidateSuccess)
	return &claims, nil
}

package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/tenantauth/internal/rate"
)

type EmailVerificationErrors struct {
	EngineNotReady error
	InvalidToken   error
	TokenNotFound  error
	UserNotFound   error
	RateLimited    error
}

// EmailVerificationDeps captures verification-confirm dependencies.
type EmailVerificationDeps struct {
	CheckRate    func(ctx context.Context, ip, class string) error
	ValidToken   func(string) bool
	HashToken    func(string) string
	ConsumeToken func(ctx context.Context, tenantID, tokenHash string) (userID string, err error)
	FindUserByID func(ctx context.Context, userID string) (UserRecord, error)
	MarkVerified func(ctx context.Context, userID string) (UserRecord, error)

	MetricInc  func(int)
	EmitAudit  AuditFunc
	Confirmed  int
	EventName  string
	FailedName string

	Errors EmailVerificationErrors
}

// RunConfirmEmailVerification consumes a verification token and marks its
// user verified. Unknown, expired and reused tokens are all InvalidToken.
func RunConfirmEmailVerification(ctx context.Context, tenantID, token, clientIP string, deps EmailVerificationDeps) (UserRecord, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.ValidToken == nil || deps.HashToken == nil || deps.ConsumeToken == nil || deps.FindUserByID == nil || deps.MarkVerified == nil {
		return UserRecord{}, deps.Errors.EngineNotReady
	}

	fail := func(userID, reason string) (UserRecord, error) {
		deps.EmitAudit(ctx, deps.FailedName, false, userID, tenantID, "", deps.Errors.InvalidToken, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return UserRecord{}, deps.Errors.InvalidToken
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, clientIP, rate.ClassEmailVerify); err != nil {
			return UserRecord{}, err
		}
	}
	if !deps.ValidToken(token) {
		return fail("", "malformed")
	}

	userID, err := deps.ConsumeToken(ctx, tenantID, deps.HashToken(token))
	if err != nil {
		if errors.Is(err, deps.Errors.TokenNotFound) {
			return fail("", "unknown_token")
		}
		return UserRecord{}, err
	}

	user, err := deps.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return fail(userID, "user_not_found")
		}
		return UserRecord{}, err
	}
	if user.TenantID != tenantID {
		return fail(userID, "tenant_mismatch")
	}
	if user.IsVerified {
		return user, nil
	}

	updated, err := deps.MarkVerified(ctx, user.ID)
	if err != nil {
		return UserRecord{}, err
	}
	deps.MetricInc(deps.Confirmed)
	deps.EmitAudit(ctx, deps.EventName, true, user.ID, tenantID, "", nil, nil)
	return updated, nil
}

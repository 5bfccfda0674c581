package tenantauth

import (
	"context"

	"github.com/MrEthical07/tenantauth/internal/flows"
)

// ConfirmEmailVerification consumes a verification token issued at
// registration and marks its user verified. Tokens are single-use; unknown,
// expired and reused tokens return [ErrInvalidToken].
func (e *Engine) ConfirmEmailVerification(ctx context.Context, tenantID, token string) (PublicUser, error) {
	if !e.ready() {
		return PublicUser{}, ErrEngineNotReady
	}
	tenant, err := e.resolveTenant(ctx, tenantID, FeaturePasswordAuth)
	if err != nil {
		return PublicUser{}, e.fail("email_verification", tenantID, "", err)
	}

	user, err := flows.RunConfirmEmailVerification(ctx, tenant.ID, token, clientIPFromContext(ctx), e.flows.EmailVerification)
	if err != nil {
		return PublicUser{}, e.fail("email_verification", tenant.ID, "", err)
	}
	return publicFromRecord(user), nil
}

// RequestPasswordReset hands a reset token to the notifier when email belongs
// to a password account of tenantID. It returns nil for unknown emails so the
// response never reveals whether an account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, tenantID, email, clientIP string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, clientIP = withRequestIP(ctx, clientIP)

	tenant, err := e.resolveTenant(ctx, tenantID, FeaturePasswordAuth)
	if err != nil {
		return e.fail("password_reset_request", tenantID, "", err)
	}
	return e.fail("password_reset_request", tenant.ID, "", flows.RunRequestPasswordReset(ctx, tenant.ID, email, clientIP, e.flows.PasswordReset))
}

// ConfirmPasswordReset consumes a reset token and sets newPassword. It clears
// any lockout and ends every session of the account.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, tenantID, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	tenant, err := e.resolveTenant(ctx, tenantID, FeaturePasswordAuth)
	if err != nil {
		return e.fail("password_reset_confirm", tenantID, "", err)
	}
	return e.fail("password_reset_confirm", tenant.ID, "", flows.RunConfirmPasswordReset(ctx, tenant.ID, token, newPassword, clientIPFromContext(ctx), e.flows.PasswordReset))
}

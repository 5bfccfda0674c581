package tenantauth

import (
	"context"

	"github.com/MrEthical07/tenantauth/internal/flows"
)

// RegisterWithPassword creates an unverified password account in tenantID and
// hands a verification token to the notifier. The client IP, when attached
// with [WithClientIP], feeds the rate limiter and the registration throttle.
func (e *Engine) RegisterWithPassword(ctx context.Context, tenantID, email, password, displayName string) (PublicUser, error) {
	if !e.ready() {
		return PublicUser{}, ErrEngineNotReady
	}
	tenant, err := e.resolveTenant(ctx, tenantID, FeaturePasswordAuth)
	if err != nil {
		return PublicUser{}, e.fail("register", tenantID, "", err)
	}

	user, err := flows.RunRegisterWithPassword(ctx, flows.RegisterInput{
		TenantID:    tenant.ID,
		Email:       email,
		Password:    password,
		DisplayName: displayName,
		ClientIP:    clientIPFromContext(ctx),
	}, e.flows.Register)
	if err != nil {
		return PublicUser{}, e.fail("register", tenant.ID, "", err)
	}
	return publicFromRecord(user), nil
}

// LoginWithPassword authenticates email and password in tenantID and opens a
// password session. Unknown emails and wrong passwords both return
// [ErrInvalidCredentials]; a locked account returns [ErrAccountLocked] even
// for the correct password.
func (e *Engine) LoginWithPassword(ctx context.Context, tenantID, email, password, clientIP string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, clientIP = withRequestIP(ctx, clientIP)

	tenant, err := e.resolveTenant(ctx, tenantID, FeaturePasswordAuth)
	if err != nil {
		return nil, e.fail("login", tenantID, "", err)
	}

	grant, err := flows.RunLoginWithPassword(ctx, flows.LoginInput{
		TenantID: tenant.ID,
		Email:    email,
		Password: password,
		ClientIP: clientIP,
	}, e.flows.Login)
	if err != nil {
		return nil, e.fail("login", tenant.ID, "", err)
	}
	return authResult(grant), nil
}

func authResult(g *flows.SessionGrant) *AuthResult {
	return &AuthResult{
		Token:     g.Token,
		ExpiresAt: g.ExpiresAt,
		SessionID: g.SessionID,
		User:      publicFromRecord(g.User),
	}
}

// withRequestIP reconciles an explicit client IP with the one carried by ctx
// so that rate limiting and audit events see the same address.
func withRequestIP(ctx context.Context, clientIP string) (context.Context, string) {
	if clientIP == "" {
		return ctx, clientIPFromContext(ctx)
	}
	if clientIPFromContext(ctx) != clientIP {
		ctx = WithClientIP(ctx, clientIP)
	}
	return ctx, clientIP
}

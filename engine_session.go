package tenantauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantauth/internal/flows"
	"github.com/MrEthical07/tenantauth/session"
)

// VerifyBearer returns the identity carried by token when its signature,
// expiry and revocation state check out and its session is still live.
// Every rejection is [ErrInvalidToken].
func (e *Engine) VerifyBearer(ctx context.Context, token string) (*Identity, error) {
	return e.verifyBearer(ctx, token, "")
}

// VerifyBearerInTenant is VerifyBearer for a request resolved to tenantID.
// Tokens of any other tenant are rejected.
func (e *Engine) VerifyBearerInTenant(ctx context.Context, token, tenantID string) (*Identity, error) {
	if tenantID == "" {
		return nil, e.fail("verify_bearer", "", "", ErrInvalidToken)
	}
	return e.verifyBearer(ctx, token, tenantID)
}

func (e *Engine) verifyBearer(ctx context.Context, token, tenantID string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	claims, err := flows.RunVerifyBearer(ctx, token, tenantID, e.flows.Validate)

	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		return nil, e.fail("verify_bearer", tenantID, "", err)
	}
	return &Identity{
		UserID:        claims.UserID,
		TenantID:      claims.TenantID,
		SessionID:     claims.SessionID,
		WalletAddress: claims.WalletAddress,
		IssuedAt:      claims.IssuedAt,
		ExpiresAt:     claims.ExpiresAt,
	}, nil
}

// CurrentUser loads the account behind a verified identity.
func (e *Engine) CurrentUser(ctx context.Context, id *Identity) (PublicUser, error) {
	if !e.ready() {
		return PublicUser{}, ErrEngineNotReady
	}
	if id == nil {
		return PublicUser{}, ErrInvalidToken
	}
	user, err := e.findUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PublicUser{}, ErrInvalidToken
		}
		return PublicUser{}, e.fail("current_user", id.TenantID, id.UserID, err)
	}
	if user.TenantID != id.TenantID {
		return PublicUser{}, ErrInvalidToken
	}
	return publicFromRecord(user), nil
}

// Logout revokes token and deletes its session. userID, when non-empty, must
// own the token. Logging out twice, or with an already expired token,
// succeeds.
func (e *Engine) Logout(ctx context.Context, userID, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.fail("logout", tenantIDFromContext(ctx), userID, flows.RunLogout(ctx, userID, token, e.flows.Logout))
}

// LogoutAll deletes every session of userID and reports how many were live.
// Tokens bound to those sessions stop validating immediately.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := flows.RunLogoutAll(ctx, userID, e.flows.Logout)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrInvalidToken
		}
		return 0, e.fail("logout_all", tenantIDFromContext(ctx), userID, err)
	}
	return n, nil
}

// GetSession returns the live session with sessionID, or nil when there is
// none.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	sess, err := flows.RunGetSession(ctx, sessionID, e.flows.Introspection)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, e.fail("get_session", "", "", err)
	}
	if sess.Expired(e.now()) {
		return nil, nil
	}
	return &SessionInfo{
		SessionID:     sess.SessionID,
		UserID:        sess.UserID,
		TenantID:      sess.TenantID,
		WalletAddress: sess.WalletAddress,
		Origin:        sess.Origin.String(),
		CreatedAt:     sess.CreatedTime(),
		ExpiresAt:     sess.ExpiresTime(),
	}, nil
}

// ActiveSessionCount counts the live sessions of a user.
func (e *Engine) ActiveSessionCount(ctx context.Context, tenantID, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := flows.RunActiveSessionCount(ctx, tenantID, userID, e.flows.Introspection)
	if err != nil {
		return 0, e.fail("active_session_count", tenantID, userID, err)
	}
	return n, nil
}

func (e *Engine) TenantSessionCount(ctx context.Context, tenantID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := flows.RunTenantSessionCount(ctx, tenantID, e.flows.Introspection)
	if err != nil {
		return 0, e.fail("tenant_session_count", tenantID, "", err)
	}
	return n, nil
}

// Health pings Redis. An unreachable Redis is reported in the status, not as
// an error.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{}
	}
	h := flows.RunHealth(ctx, e.flows.Introspection)
	return HealthStatus{
		RedisAvailable: h.RedisAvailable,
		RedisLatency:   h.RedisLatency,
	}
}

package flows

import (
	"context"
	"errors"
	"strconv"
	"time"
)

type LogoutMetrics struct {
	Logout    int
	LogoutAll int
}

type LogoutEvents struct {
	Logout    string
	LogoutAll string
}

type LogoutErrors struct {
	EngineNotReady error
	InvalidToken   error
	TokenExpired   error
	UserNotFound   error
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Now               func() time.Time
	ParseToken        func(token string) (BearerClaims, error)
	Fingerprint       func(token string) (string, error)
	RevokeToken       func(ctx context.Context, userID, fingerprint string, ttl time.Duration) error
	DeleteSession     func(ctx context.Context, sessionID string) error
	DeleteAllSessions func(ctx context.Context, tenantID, userID string) (int, error)
	FindUserByID      func(ctx context.Context, userID string) (UserRecord, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

func normalizeLogoutDeps(deps *LogoutDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}

// RunLogout revokes token and deletes its session. Repeating it is harmless,
// and an already expired token has nothing left to revoke.
func RunLogout(ctx context.Context, userID, token string, deps LogoutDeps) error {
	normalizeLogoutDeps(&deps)
	if deps.ParseToken == nil || deps.Fingerprint == nil || deps.RevokeToken == nil || deps.DeleteSession == nil {
		return deps.Errors.EngineNotReady
	}

	claims, err := deps.ParseToken(token)
	if err != nil {
		if deps.Errors.TokenExpired != nil && errors.Is(err, deps.Errors.TokenExpired) {
			return nil
		}
		return deps.Errors.InvalidToken
	}
	if userID != "" && claims.UserID != userID {
		return deps.Errors.InvalidToken
	}

	fingerprint, err := deps.Fingerprint(token)
	if err != nil {
		return deps.Errors.InvalidToken
	}

	if ttl := claims.ExpiresAt.Sub(deps.Now()); ttl > 0 {
		if err := deps.RevokeToken(ctx, claims.UserID, fingerprint, ttl); err != nil {
			return err
		}
	}
	if err := deps.DeleteSession(ctx, claims.SessionID); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, claims.UserID, claims.TenantID, claims.SessionID, nil, nil)
	return nil
}

// RunLogoutAll deletes every session of userID. Outstanding tokens stop
// validating because their sessions are gone.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	normalizeLogoutDeps(&deps)
	if deps.FindUserByID == nil || deps.DeleteAllSessions == nil {
		return 0, deps.Errors.EngineNotReady
	}

	user, err := deps.FindUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}

	n, err := deps.DeleteAllSessions(ctx, user.TenantID, user.ID)
	if err != nil {
		return 0, err
	}

	deps.MetricInc(deps.Metrics.LogoutAll)
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, user.ID, user.TenantID, "", nil, func() map[string]string {
		return map[string]string{
			"sessions": strconv.Itoa(n),
		}
	})
	return n, nil
}

package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/tenantauth/session"
)

type IntrospectionSessionStore interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	ActiveSessionCount(ctx context.Context, tenantID, userID string) (int, error)
	TenantSessionCount(ctx context.Context, tenantID string) (int, error)
	Ping(ctx context.Context) (time.Duration, error)
}

type IntrospectionDeps struct {
	SessionStore      IntrospectionSessionStore
	EngineNotReadyErr error
	ValidationErr     func(rules ...string) error
}

// HealthResult is the flow-local health view.
type HealthResult struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

func RunGetSession(ctx context.Context, sessionID string, deps IntrospectionDeps) (*session.Session, error) {
	if deps.SessionStore == nil {
		return nil, deps.EngineNotReadyErr
	}
	if sessionID == "" && deps.ValidationErr != nil {
		return nil, deps.ValidationErr("session_id")
	}
	return deps.SessionStore.Get(ctx, sessionID)
}

func RunActiveSessionCount(ctx context.Context, tenantID, userID string, deps IntrospectionDeps) (int, error) {
	if deps.SessionStore == nil {
		return 0, deps.EngineNotReadyErr
	}
	if userID == "" && deps.ValidationErr != nil {
		return 0, deps.ValidationErr("user_id")
	}
	return deps.SessionStore.ActiveSessionCount(ctx, tenantID, userID)
}

func RunTenantSessionCount(ctx context.Context, tenantID string, deps IntrospectionDeps) (int, error) {
	if deps.SessionStore == nil {
		return 0, deps.EngineNotReadyErr
	}
	return deps.SessionStore.TenantSessionCount(ctx, tenantID)
}

// RunHealth pings the session backend. A failed ping is reported in the
// result, not as an error.
func RunHealth(ctx context.Context, deps IntrospectionDeps) HealthResult {
	if deps.SessionStore == nil {
		return HealthResult{}
	}
	latency, err := deps.SessionStore.Ping(ctx)
	if err != nil {
		return HealthResult{RedisLatency: latency}
	}
	return HealthResult{RedisAvailable: true, RedisLatency: latency}
}

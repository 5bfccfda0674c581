package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/tenantauth/session"
)

// SessionDeps captures what opening a session needs.
type SessionDeps struct {
	CreateSession func(context.Context, session.CreateInput) (*session.Session, error)
	DeleteSession func(context.Context, string) error
	IssueToken    func(*session.Session) (string, time.Time, error)
	Warn          func(string, ...any)

	MetricInc      func(int)
	SessionCreated int

	EngineNotReady error
}

// RunOpenSession creates a session for user and issues its bearer token. A token
// failure deletes the session again so no orphan outlives the request.
func RunOpenSession(ctx context.Context, user UserRecord, origin session.Origin, walletAddress string, deps SessionDeps) (*SessionGrant, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.CreateSession == nil || deps.IssueToken == nil {
		return nil, deps.EngineNotReady
	}

	sess, err := deps.CreateSession(ctx, session.CreateInput{
		UserID:        user.ID,
		TenantID:      user.TenantID,
		WalletAddress: walletAddress,
		Origin:        origin,
	})
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := deps.IssueToken(sess)
	if err != nil {
		if deps.DeleteSession != nil {
			if delErr := deps.DeleteSession(context.WithoutCancel(ctx), sess.SessionID); delErr != nil {
				deps.Warn("tenantauth: orphan session cleanup failed")
			}
		}
		return nil, err
	}

	deps.MetricInc(deps.SessionCreated)
	return &SessionGrant{
		User:      user,
		SessionID: sess.SessionID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantauth/internal/rate"
	"github.com/MrEthical07/tenantauth/session"
)

// LoginInput is the password login request.
type LoginInput struct {
	TenantID string
	Email    string
	Password string
	ClientIP string
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginLocked      int
	LoginRateLimited int
	LockoutApplied   int
	PasswordUpgraded int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
	AccountLocked    string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountLocked      error
	RateLimited        error
	UserNotFound       error
	Internal           error
}

// LoginDeps captures password login dependencies.
type LoginDeps struct {
	UpgradeOnLogin bool

	Now       func() time.Time
	CheckRate func(ctx context.Context, ip, class string) error

	FindUserByEmail func(ctx context.Context, tenantID, email string) (UserRecord, error)
	RecordFailure   func(ctx context.Context, userID string, now time.Time) (UserRecord, error)
	RecordSuccess   func(ctx context.Context, userID string, now time.Time) error
	UpdatePassword  func(ctx context.Context, userID, hash string) error
	IsLocked        func(lockedUntil *time.Time, now time.Time) bool

	VerifyPassword       func(password, hash string) (bool, error)
	BurnPassword         func(password string)
	PasswordNeedsUpgrade func(hash string) (bool, error)
	HashPassword         func(password string) (string, error)

	OpenSession func(ctx context.Context, user UserRecord, origin session.Origin, walletAddress string) (*SessionGrant, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.BurnPassword == nil {
		deps.BurnPassword = func(string) {}
	}
}

// RunLoginWithPassword authenticates email and password inside one tenant and
// opens a password-origin session.
//
// Unknown emails and wrong passwords both yield InvalidCredentials. Only an
// existing user's counter is bumped, and a user whose lock has not elapsed gets
// AccountLocked before the password is examined.
func RunLoginWithPassword(ctx context.Context, in LoginInput, deps LoginDeps) (*SessionGrant, error) {
	normalizeLoginDeps(&deps)
	if deps.FindUserByEmail == nil ||
		deps.VerifyPassword == nil ||
		deps.RecordFailure == nil ||
		deps.RecordSuccess == nil ||
		deps.IsLocked == nil ||
		deps.OpenSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(in.Email)
	failure := func(userID, reason string, err error) error {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, in.TenantID, "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": reason,
			}
		})
		return err
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, in.ClientIP, rate.ClassLogin); err != nil {
			if errors.Is(err, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", in.TenantID, "", err, func() map[string]string {
					return map[string]string{
						"email": email,
					}
				})
			}
			return nil, err
		}
	}

	if email == "" || in.Password == "" {
		deps.BurnPassword(in.Password)
		return nil, failure("", "empty_credentials", deps.Errors.InvalidCredentials)
	}

	user, err := deps.FindUserByEmail(ctx, in.TenantID, email)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			deps.BurnPassword(in.Password)
			return nil, failure("", "user_not_found", deps.Errors.InvalidCredentials)
		}
		return nil, err
	}

	now := deps.Now()
	if deps.IsLocked(user.LockedUntil, now) {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, in.TenantID, "", deps.Errors.AccountLocked, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "locked",
			}
		})
		return nil, deps.Errors.AccountLocked
	}

	if user.PasswordHash == "" {
		deps.BurnPassword(in.Password)
		return nil, failure(user.ID, "no_password", deps.Errors.InvalidCredentials)
	}

	ok, err := deps.VerifyPassword(in.Password, user.PasswordHash)
	if err != nil {
		deps.Warn("tenantauth: stored password hash could not be verified")
		return nil, failure(user.ID, "hash_error", deps.Errors.Internal)
	}

	// Nothing below may run for a request the caller already abandoned.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !ok {
		updated, err := deps.RecordFailure(ctx, user.ID, now)
		if err != nil {
			return nil, err
		}
		if deps.IsLocked(updated.LockedUntil, now) {
			deps.MetricInc(deps.Metrics.LockoutApplied)
			deps.EmitAudit(ctx, deps.Events.AccountLocked, true, user.ID, in.TenantID, "", nil, func() map[string]string {
				return map[string]string{
					"email":        email,
					"locked_until": updated.LockedUntil.UTC().Format(time.RFC3339),
				}
			})
		}
		return nil, failure(user.ID, "password_mismatch", deps.Errors.InvalidCredentials)
	}

	if err := deps.RecordSuccess(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LoginAttempts = 0
	user.LockedUntil = nil

	if deps.UpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePassword != nil {
		if needsUpgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgraded, err := deps.HashPassword(in.Password); err == nil {
				if err := deps.UpdatePassword(ctx, user.ID, upgraded); err != nil {
					deps.Warn("tenantauth: password hash upgrade update failed")
				} else {
					user.PasswordHash = upgraded
					deps.MetricInc(deps.Metrics.PasswordUpgraded)
				}
			} else {
				deps.Warn("tenantauth: password hash upgrade generation failed")
			}
		}
	}

	grant, err := deps.OpenSession(ctx, user, session.OriginPassword, "")
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.ID, in.TenantID, grant.SessionID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return grant, nil
}

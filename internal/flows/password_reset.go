package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantauth/internal/rate"
)

// ResetNotice is handed to the notifier when a reset is requested.
type ResetNotice struct {
	TenantID  string
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

type PasswordResetMetrics struct {
	ResetRequested      int
	ResetConfirmed      int
	ResetFailed         int
	ResetRateLimited    int
	SessionsInvalidated int
}

type PasswordResetEvents struct {
	ResetRequest string
	ResetConfirm string
}

type PasswordResetErrors struct {
	EngineNotReady  error
	FeatureDisabled error
	InvalidToken    error
	TokenNotFound   error
	UserNotFound    error
	RateLimited     error
	Validation      func(rules ...string) error
}

// PasswordResetDeps captures reset request and confirm dependencies.
type PasswordResetDeps struct {
	Enabled  bool
	TokenTTL time.Duration

	Now                 func() time.Time
	CheckRate           func(ctx context.Context, ip, class string) error
	CheckRequestLimiter func(ctx context.Context, tenantID, email, ip string) error
	CheckConfirmLimiter func(ctx context.Context, tenantID, ip string) error

	FindUserByEmail func(ctx context.Context, tenantID, email string) (UserRecord, error)
	FindUserByID    func(ctx context.Context, userID string) (UserRecord, error)
	SetPassword     func(ctx context.Context, userID, hash string) (UserRecord, error)

	CheckPasswordPolicy func(password string) []string
	HashPassword        func(password string) (string, error)
	BurnPassword        func(password string)

	NewToken     func() (string, error)
	ValidToken   func(string) bool
	HashToken    func(string) string
	SaveToken    func(ctx context.Context, tenantID, userID, tokenHash string, ttl time.Duration) error
	ConsumeToken func(ctx context.Context, tenantID, tokenHash string) (userID string, err error)
	SendNotice   func(ctx context.Context, notice ResetNotice) error

	DeleteAllSessions func(ctx context.Context, tenantID, userID string) (int, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
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

func (deps *PasswordResetDeps) limited(ctx context.Context, tenantID string, err error) error {
	if errors.Is(err, deps.Errors.RateLimited) {
		deps.MetricInc(deps.Metrics.ResetRateLimited)
		deps.EmitAudit(ctx, deps.Events.ResetRequest, false, "", tenantID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "rate_limited",
			}
		})
	}
	return err
}

// RunRequestPasswordReset hands a reset token to the notifier when email
// belongs to a password user. The result is the same whether or not the email
// exists.
func RunRequestPasswordReset(ctx context.Context, tenantID, email, clientIP string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if !deps.Enabled {
		return deps.Errors.FeatureDisabled
	}
	if deps.FindUserByEmail == nil || deps.NewToken == nil || deps.HashToken == nil || deps.SaveToken == nil || deps.Errors.Validation == nil {
		return deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, clientIP, rate.ClassPasswordReset); err != nil {
			return deps.limited(ctx, tenantID, err)
		}
	}
	if !ValidEmail(email) {
		return deps.Errors.Validation("email")
	}
	if deps.CheckRequestLimiter != nil {
		if err := deps.CheckRequestLimiter(ctx, tenantID, email, clientIP); err != nil {
			return deps.limited(ctx, tenantID, err)
		}
	}

	user, err := deps.FindUserByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			deps.EmitAudit(ctx, deps.Events.ResetRequest, true, "", tenantID, "", nil, func() map[string]string {
				return map[string]string{
					"email":  email,
					"result": "unknown_email",
				}
			})
			return nil
		}
		return err
	}
	if user.PasswordHash == "" {
		return nil
	}

	token, err := deps.NewToken()
	if err != nil {
		return err
	}
	if err := deps.SaveToken(ctx, tenantID, user.ID, deps.HashToken(token), deps.TokenTTL); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.ResetRequested)
	deps.EmitAudit(ctx, deps.Events.ResetRequest, true, user.ID, tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})

	if deps.SendNotice != nil {
		notice := ResetNotice{
			TenantID:  tenantID,
			UserID:    user.ID,
			Email:     user.Email,
			Token:     token,
			ExpiresAt: deps.Now().Add(deps.TokenTTL),
		}
		if err := deps.SendNotice(ctx, notice); err != nil {
			deps.Warn("tenantauth: password reset notice delivery failed")
		}
	}
	return nil
}

// RunConfirmPasswordReset consumes a reset token, stores the new password
// hash, clears any lockout and ends every session of the user.
func RunConfirmPasswordReset(ctx context.Context, tenantID, token, newPassword, clientIP string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if !deps.Enabled {
		return deps.Errors.FeatureDisabled
	}
	if deps.ValidToken == nil ||
		deps.HashToken == nil ||
		deps.ConsumeToken == nil ||
		deps.FindUserByID == nil ||
		deps.SetPassword == nil ||
		deps.CheckPasswordPolicy == nil ||
		deps.HashPassword == nil ||
		deps.Errors.Validation == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(userID, reason string, err error) error {
		deps.MetricInc(deps.Metrics.ResetFailed)
		deps.EmitAudit(ctx, deps.Events.ResetConfirm, false, userID, tenantID, "", err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return err
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, clientIP, rate.ClassPasswordReset); err != nil {
			return deps.limited(ctx, tenantID, err)
		}
	}
	if deps.CheckConfirmLimiter != nil {
		if err := deps.CheckConfirmLimiter(ctx, tenantID, clientIP); err != nil {
			return deps.limited(ctx, tenantID, err)
		}
	}

	if failed := deps.CheckPasswordPolicy(newPassword); len(failed) > 0 {
		rules := make([]string, 0, len(failed))
		for _, r := range failed {
			rules = append(rules, "password_"+r)
		}
		return deps.Errors.Validation(rules...)
	}
	if !deps.ValidToken(token) {
		deps.BurnPassword(newPassword)
		return fail("", "malformed", deps.Errors.InvalidToken)
	}

	// Hash before consuming so a hashing failure leaves the token usable.
	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return err
	}

	userID, err := deps.ConsumeToken(ctx, tenantID, deps.HashToken(token))
	if err != nil {
		if errors.Is(err, deps.Errors.TokenNotFound) {
			return fail("", "unknown_token", deps.Errors.InvalidToken)
		}
		return err
	}

	user, err := deps.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return fail(userID, "user_not_found", deps.Errors.InvalidToken)
		}
		return err
	}
	if user.TenantID != tenantID {
		return fail(userID, "tenant_mismatch", deps.Errors.InvalidToken)
	}

	if _, err := deps.SetPassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if deps.DeleteAllSessions != nil {
		n, err := deps.DeleteAllSessions(ctx, user.TenantID, user.ID)
		if err != nil {
			deps.Warn("tenantauth: session invalidation after password reset failed")
		} else if n > 0 {
			deps.MetricInc(deps.Metrics.SessionsInvalidated)
		}
	}

	deps.MetricInc(deps.Metrics.ResetConfirmed)
	deps.EmitAudit(ctx, deps.Events.ResetConfirm, true, user.ID, tenantID, "", nil, nil)
	return nil
}

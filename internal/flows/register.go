package flows

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/tenantauth/internal/rate"
)

// MaxDisplayNameLength bounds DisplayName in runes.
const MaxDisplayNameLength = 100

// RegisterInput is the password registration request.
type RegisterInput struct {
	TenantID    string
	Email       string
	Password    string
	DisplayName string
	ClientIP    string
}

// VerificationNotice is handed to the notifier after registration.
type VerificationNotice struct {
	TenantID  string
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

type RegisterMetrics struct {
	RegisterSuccess     int
	RegisterDuplicate   int
	RegisterRateLimited int
	VerificationIssued  int
}

type RegisterEvents struct {
	RegisterSuccess     string
	RegisterFailure     string
	RegisterRateLimited string
}

type RegisterErrors struct {
	EngineNotReady error
	EmailTaken     error
	RateLimited    error
	Validation     func(rules ...string) error
}

// RegisterDeps captures password registration dependencies.
type RegisterDeps struct {
	VerificationTTL time.Duration

	Now                  func() time.Time
	CheckRate            func(ctx context.Context, ip, class string) error
	ThrottleRegistration func(ctx context.Context, tenantID, email, ip string) error
	CheckPasswordPolicy  func(password string) []string
	HashPassword         func(password string) (string, error)
	CreateUser           func(ctx context.Context, in NewUserRecord) (UserRecord, error)

	NewToken               func() (string, error)
	HashToken              func(string) string
	SaveVerificationToken  func(ctx context.Context, tenantID, userID, tokenHash string, ttl time.Duration) error
	SendVerificationNotice func(ctx context.Context, notice VerificationNotice) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

func normalizeRegisterDeps(deps *RegisterDeps) {
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
}

// RunRegisterWithPassword validates the request, stores a new unverified user
// and hands a verification token to the notifier. Token storage and delivery
// failures are logged; the account exists either way.
func RunRegisterWithPassword(ctx context.Context, in RegisterInput, deps RegisterDeps) (UserRecord, error) {
	normalizeRegisterDeps(&deps)
	if deps.CheckPasswordPolicy == nil || deps.HashPassword == nil || deps.CreateUser == nil || deps.Errors.Validation == nil {
		return UserRecord{}, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(in.Email)
	rateLimited := func(err error) error {
		if errors.Is(err, deps.Errors.RateLimited) {
			deps.MetricInc(deps.Metrics.RegisterRateLimited)
			deps.EmitAudit(ctx, deps.Events.RegisterRateLimited, false, "", in.TenantID, "", err, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
		}
		return err
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, in.ClientIP, rate.ClassRegister); err != nil {
			return UserRecord{}, rateLimited(err)
		}
	}

	var failed []string
	if !ValidEmail(email) {
		failed = append(failed, "email")
	}
	for _, rule := range deps.CheckPasswordPolicy(in.Password) {
		failed = append(failed, "password_"+rule)
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		failed = append(failed, "display_name")
	}
	if len(failed) > 0 {
		return UserRecord{}, deps.Errors.Validation(failed...)
	}
	if displayName == "" {
		displayName = email[:strings.IndexByte(email, '@')]
	}

	if deps.ThrottleRegistration != nil {
		if err := deps.ThrottleRegistration(ctx, in.TenantID, email, in.ClientIP); err != nil {
			return UserRecord{}, rateLimited(err)
		}
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return UserRecord{}, err
	}

	user, err := deps.CreateUser(ctx, NewUserRecord{
		TenantID:     in.TenantID,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
	})
	if err != nil {
		if errors.Is(err, deps.Errors.EmailTaken) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", in.TenantID, "", err, func() map[string]string {
				return map[string]string{
					"email":  email,
					"reason": "email_taken",
				}
			})
		}
		return UserRecord{}, err
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, user.ID, in.TenantID, "", nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})

	issueVerification(ctx, user, deps)
	return user, nil
}

func issueVerification(ctx context.Context, user UserRecord, deps RegisterDeps) {
	if deps.NewToken == nil || deps.HashToken == nil || deps.SaveVerificationToken == nil {
		return
	}

	token, err := deps.NewToken()
	if err != nil {
		deps.Warn("tenantauth: verification token generation failed")
		return
	}
	if err := deps.SaveVerificationToken(ctx, user.TenantID, user.ID, deps.HashToken(token), deps.VerificationTTL); err != nil {
		deps.Warn("tenantauth: verification token store failed")
		return
	}
	deps.MetricInc(deps.Metrics.VerificationIssued)

	if deps.SendVerificationNotice == nil {
		return
	}
	notice := VerificationNotice{
		TenantID:  user.TenantID,
		UserID:    user.ID,
		Email:     user.Email,
		Token:     token,
		ExpiresAt: deps.Now().Add(deps.VerificationTTL),
	}
	if err := deps.SendVerificationNotice(ctx, notice); err != nil {
		deps.Warn("tenantauth: verification notice delivery failed")
	}
}

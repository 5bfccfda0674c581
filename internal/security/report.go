package security

import "time"

// PasswordReport summarizes the hashing posture.
type PasswordReport struct {
	BcryptCost        int
	MinLength         int
	MinScore          int
	RequireAllClasses bool
	UpgradeOnLogin    bool
}

type Report struct {
	ProductionMode     bool
	SigningAlgorithm   string
	TokenLifetime      time.Duration
	SessionLifetime    time.Duration
	ChallengeLifetime  time.Duration
	TokenOutlivesLogin bool
	Password           PasswordReport
	LockoutThreshold   int
	LockoutDuration    time.Duration
	RateLimitingActive bool
	RateLimitShared    bool
	RegistrationGuard  bool
	PasswordResetGuard bool
	PasswordResetOn    bool
	TenantFeatureGate  bool
	AuditActive        bool
	LintFindings       []string
}

type ReportInput struct {
	ProductionMode    bool
	TokenLifetime     time.Duration
	SessionLifetime   time.Duration
	ChallengeLifetime time.Duration
	Password          PasswordReport
	LockoutThreshold  int
	LockoutDuration   time.Duration

	RateLimitEnabled bool
	RateLimitBackend string

	RegistrationIPThrottle bool
	RegistrationIDThrottle bool
	ResetEnabled           bool
	ResetIPThrottle        bool
	ResetIDThrottle        bool

	RequireFeatures bool
	AuditEnabled    bool
	LintCodes       []string
}

// BuildReport derives the posture flags from raw configuration values.
func BuildReport(input ReportInput) Report {
	findings := make([]string, len(input.LintCodes))
	copy(findings, input.LintCodes)

	return Report{
		ProductionMode:     input.ProductionMode,
		SigningAlgorithm:   "HS256",
		TokenLifetime:      input.TokenLifetime,
		SessionLifetime:    input.SessionLifetime,
		ChallengeLifetime:  input.ChallengeLifetime,
		TokenOutlivesLogin: input.TokenLifetime > input.SessionLifetime,
		Password:           input.Password,
		LockoutThreshold:   input.LockoutThreshold,
		LockoutDuration:    input.LockoutDuration,
		RateLimitingActive: input.RateLimitEnabled,
		RateLimitShared:    input.RateLimitEnabled && input.RateLimitBackend == "redis",
		RegistrationGuard:  input.RegistrationIPThrottle || input.RegistrationIDThrottle,
		PasswordResetGuard: input.ResetEnabled && (input.ResetIPThrottle || input.ResetIDThrottle),
		PasswordResetOn:    input.ResetEnabled,
		TenantFeatureGate:  input.RequireFeatures,
		AuditActive:        input.AuditEnabled,
		LintFindings:       findings,
	}
}

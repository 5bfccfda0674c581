package tenantauth

import "github.com/MrEthical07/tenantauth/internal/security"

// SecurityReport is a point-in-time summary of the engine's security posture.
// It never contains key material.
type SecurityReport = security.Report

// PasswordReport is the hashing section of [SecurityReport].
type PasswordReport = security.PasswordReport

// SecurityReport reports the active configuration's posture, including the
// codes of any [Config.Lint] findings.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	return security.BuildReport(security.ReportInput{
		ProductionMode:    cfg.ProductionMode,
		TokenLifetime:     cfg.Token.Lifetime,
		SessionLifetime:   cfg.Session.Lifetime,
		ChallengeLifetime: cfg.Challenge.Lifetime,
		Password: security.PasswordReport{
			BcryptCost:        cfg.Password.BcryptCost,
			MinLength:         cfg.Password.MinLength,
			MinScore:          cfg.Password.MinScore,
			RequireAllClasses: cfg.Password.RequireAllClasses,
			UpgradeOnLogin:    cfg.Password.UpgradeOnLogin,
		},
		LockoutThreshold:       cfg.Lockout.Threshold,
		LockoutDuration:        cfg.Lockout.Duration,
		RateLimitEnabled:       cfg.RateLimit.Enabled,
		RateLimitBackend:       string(cfg.RateLimit.Backend),
		RegistrationIPThrottle: cfg.Registration.EnableIPThrottle,
		RegistrationIDThrottle: cfg.Registration.EnableIdentifierThrottle,
		ResetEnabled:           cfg.PasswordReset.Enabled,
		ResetIPThrottle:        cfg.PasswordReset.EnableIPThrottle,
		ResetIDThrottle:        cfg.PasswordReset.EnableIdentifierThrottle,
		RequireFeatures:        cfg.Tenancy.RequireFeatures,
		AuditEnabled:           cfg.Audit.Enabled,
		LintCodes:              cfg.Lint().Codes(),
	})
}

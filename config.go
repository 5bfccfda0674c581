package tenantauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/tenantauth/password"
)

// Config holds every engine tunable. Obtain a populated value from
// [DefaultConfig] and override fields before passing it to [Builder.WithConfig].
type Config struct {
	Token             TokenConfig
	Session           SessionConfig
	Challenge         ChallengeConfig
	Password          PasswordConfig
	Lockout           LockoutConfig
	RateLimit         RateLimitConfig
	Registration      RegistrationConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Tenancy           TenancyConfig
	Timeouts          TimeoutConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	Redis             RedisConfig
	ProductionMode    bool
}

// RedisConfig namespaces the engine's Redis keys. With a non-empty Prefix
// every key is written as <Prefix>:<component key>, so engines with different
// prefixes can share one Redis.
type RedisConfig struct {
	Prefix string
}

// Key returns key inside the configured namespace.
func (c RedisConfig) Key(key string) string {
	if c.Prefix == "" {
		return key
	}
	return c.Prefix + ":" + key
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the HS256 bearer token codec.
type TokenConfig struct {
	SigningKey []byte
	Lifetime   time.Duration
	Issuer     string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the Redis session registry.
type SessionConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
}

// ChallengeConfig controls wallet challenge issuance.
type ChallengeConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls hashing cost and the strength policy.
type PasswordConfig struct {
	BcryptCost        int
	MinScore          int
	MinLength         int
	RequireAllClasses bool
	UpgradeOnLogin    bool
}

// LockoutConfig controls account lockout after consecutive password failures.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// RateLimitBackend selects the limiter implementation.
type RateLimitBackend string

const (
	// RateLimitRedis shares windows across instances through Redis.
	RateLimitRedis RateLimitBackend = "redis"
	// RateLimitMemory keeps windows in process.
	RateLimitMemory RateLimitBackend = "memory"
)

// RateLimitConfig controls the per-IP fixed-window limiter.
type RateLimitConfig struct {
	Enabled   bool
	Backend   RateLimitBackend
	Window    time.Duration
	GlobalMax int
	AuthMax   int
}

// RegistrationConfig throttles account creation per tenant and IP.
type RegistrationConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// EmailVerificationConfig controls the verification token handed to the notifier.
type EmailVerificationConfig struct {
	TokenTTL time.Duration
}

// PasswordResetConfig controls self-service password reset.
type PasswordResetConfig struct {
	Enabled                  bool
	TokenTTL                 time.Duration
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// TenancyConfig controls tenant resolution and feature gating.
type TenancyConfig struct {
	DefaultSlug     string
	RequireFeatures bool
}

// TimeoutConfig bounds every port call.
type TimeoutConfig struct {
	KV         time.Duration
	Relational time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the documented defaults. SigningKey is left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Lifetime: 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix: "session",
			Lifetime:    time.Hour,
		},
		Challenge: ChallengeConfig{
			RedisPrefix: "challenge",
			Lifetime:    5 * time.Minute,
		},
		Password: PasswordConfig{
			BcryptCost:        password.MinBcryptCost,
			MinScore:          3,
			MinLength:         8,
			RequireAllClasses: true,
			UpgradeOnLogin:    true,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Backend:   RateLimitRedis,
			Window:    15 * time.Minute,
			GlobalMax: 1000,
			AuthMax:   100,
		},
		Registration: RegistrationConfig{
			EnableIdentifierThrottle: false,
			EnableIPThrottle:         true,
			MaxAttempts:              20,
			Cooldown:                 time.Hour,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL: 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:                  true,
			TokenTTL:                 30 * time.Minute,
			EnableIdentifierThrottle: true,
			EnableIPThrottle:         true,
			MaxAttempts:              5,
			Cooldown:                 15 * time.Minute,
		},
		Tenancy: TenancyConfig{
			DefaultSlug: DefaultTenantSlug,
		},
		Timeouts: TimeoutConfig{
			KV:         2 * time.Second,
			Relational: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SigningKey = cloneBytes(cfg.Token.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	// Token
	if len(c.Token.SigningKey) < 32 {
		return errors.New("Token SigningKey must be at least 32 bytes")
	}
	if c.Token.Lifetime <= 0 {
		return errors.New("Token Lifetime must be > 0")
	}

	// Session
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Challenge.Lifetime <= 0 {
		return errors.New("Challenge Lifetime must be > 0")
	}
	if c.Challenge.RedisPrefix == "" {
		return errors.New("Challenge RedisPrefix must not be empty")
	}

	// Password
	if c.Password.BcryptCost < password.MinBcryptCost || c.Password.BcryptCost > password.MaxBcryptCost {
		return errors.New("Password BcryptCost must be between 12 and 31")
	}
	if c.Password.MinScore < 0 || c.Password.MinScore > password.MaxScore {
		return errors.New("Password MinScore must be between 0 and 5")
	}
	if c.Password.MinLength < 8 || c.Password.MinLength > password.MaxLength {
		return errors.New("Password MinLength must be between 8 and 72")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case RateLimitRedis, RateLimitMemory:
		default:
			return errors.New("RateLimit Backend must be 'redis' or 'memory'")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		if c.RateLimit.GlobalMax <= 0 || c.RateLimit.AuthMax <= 0 {
			return errors.New("RateLimit caps must be > 0")
		}
		if c.RateLimit.AuthMax > c.RateLimit.GlobalMax {
			return errors.New("RateLimit AuthMax must be <= GlobalMax")
		}
	}

	if c.Registration.EnableIPThrottle || c.Registration.EnableIdentifierThrottle {
		if c.Registration.MaxAttempts <= 0 || c.Registration.Cooldown <= 0 {
			return errors.New("Registration throttle requires MaxAttempts and Cooldown > 0")
		}
	}

	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.PasswordReset.Enabled {
		if c.PasswordReset.TokenTTL <= 0 {
			return errors.New("PasswordReset TokenTTL must be > 0")
		}
		if (c.PasswordReset.EnableIPThrottle || c.PasswordReset.EnableIdentifierThrottle) &&
			(c.PasswordReset.MaxAttempts <= 0 || c.PasswordReset.Cooldown <= 0) {
			return errors.New("PasswordReset throttle requires MaxAttempts and Cooldown > 0")
		}
	}

	if c.Tenancy.DefaultSlug == "" {
		return errors.New("Tenancy DefaultSlug must not be empty")
	}

	if c.Timeouts.KV <= 0 || c.Timeouts.KV > 2*time.Second {
		return errors.New("Timeouts KV must be in (0, 2s]")
	}
	if c.Timeouts.Relational <= 0 || c.Timeouts.Relational > 5*time.Second {
		return errors.New("Timeouts Relational must be in (0, 5s]")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if c.ProductionMode {
		if !c.RateLimit.Enabled {
			return errors.New("ProductionMode requires RateLimit enabled")
		}
		if c.RateLimit.Backend != RateLimitRedis {
			return errors.New("ProductionMode requires the redis RateLimit backend")
		}
		if c.Password.MinScore < 3 {
			return errors.New("ProductionMode requires Password MinScore >= 3")
		}
		if c.Token.Lifetime > 24*time.Hour {
			return errors.New("ProductionMode requires Token Lifetime <= 24h")
		}
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is an advisory finding about a valid but questionable config.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that pass Validate but weaken the deployment.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	if !c.RateLimit.Enabled {
		ws = append(ws, LintWarning{Code: "rate_limits_disabled", Message: "per-IP rate limiting is disabled"})
	}
	if c.RateLimit.Enabled && c.RateLimit.Backend == RateLimitMemory {
		ws = append(ws, LintWarning{Code: "rate_limit_in_memory", Message: "in-memory windows are not shared across instances"})
	}
	if c.Token.Lifetime > c.Session.Lifetime {
		ws = append(ws, LintWarning{Code: "token_outlives_session", Message: "tokens stay signed after their session expires"})
	}
	if c.Password.MinScore < 3 {
		ws = append(ws, LintWarning{Code: "weak_password_policy", Message: "password MinScore below 3"})
	}
	if c.Lockout.Threshold > 10 {
		ws = append(ws, LintWarning{Code: "lockout_threshold_high", Message: "lockout threshold above 10 attempts"})
	}
	if !c.Audit.Enabled {
		ws = append(ws, LintWarning{Code: "audit_disabled", Message: "audit events are not emitted"})
	}
	return ws
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
	storeSQLite   = "sqlite"
)

type Config struct {
	AppEnv   string `env:"TENANTAUTH_ENV" envDefault:"local"`
	LogLevel string `env:"TENANTAUTH_LOG_LEVEL" envDefault:"info"`
	HTTPAddr string `env:"TENANTAUTH_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	// TrustProxy makes RealIP honor X-Forwarded-For.
	TrustProxy     bool          `env:"TENANTAUTH_TRUST_PROXY" envDefault:"false"`
	ShutdownGrace  time.Duration `env:"TENANTAUTH_SHUTDOWN_GRACE" envDefault:"10s"`
	ProductionMode bool          `env:"TENANTAUTH_PRODUCTION" envDefault:"false"`

	SigningKey        string        `env:"TENANTAUTH_SIGNING_KEY,required,unset"`
	TokenIssuer       string        `env:"TENANTAUTH_TOKEN_ISSUER" envDefault:"tenantauth"`
	TokenLifetime     time.Duration `env:"TENANTAUTH_TOKEN_LIFETIME" envDefault:"24h"`
	SessionLifetime   time.Duration `env:"TENANTAUTH_SESSION_LIFETIME" envDefault:"1h"`
	ChallengeLifetime time.Duration `env:"TENANTAUTH_CHALLENGE_LIFETIME" envDefault:"5m"`

	LockoutThreshold int           `env:"TENANTAUTH_LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutDuration  time.Duration `env:"TENANTAUTH_LOCKOUT_DURATION" envDefault:"15m"`

	RateLimitEnabled bool          `env:"TENANTAUTH_RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitBackend string        `env:"TENANTAUTH_RATE_LIMIT_BACKEND" envDefault:"redis"`
	RateLimitWindow  time.Duration `env:"TENANTAUTH_RATE_LIMIT_WINDOW" envDefault:"15m"`
	RateLimitGlobal  int           `env:"TENANTAUTH_RATE_LIMIT_GLOBAL_MAX" envDefault:"1000"`
	RateLimitAuth    int           `env:"TENANTAUTH_RATE_LIMIT_AUTH_MAX" envDefault:"100"`

	PasswordMinScore int `env:"TENANTAUTH_PASSWORD_MIN_SCORE" envDefault:"3"`
	BcryptCost       int `env:"TENANTAUTH_BCRYPT_COST" envDefault:"12"`

	PasswordResetEnabled bool   `env:"TENANTAUTH_PASSWORD_RESET_ENABLED" envDefault:"true"`
	DefaultTenant        string `env:"TENANTAUTH_DEFAULT_TENANT" envDefault:"default"`
	RequireFeatures      bool   `env:"TENANTAUTH_REQUIRE_FEATURES" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD,unset"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX"`

	Store            string `env:"TENANTAUTH_STORE" envDefault:"memory"`
	PostgresDSN      string `env:"TENANTAUTH_POSTGRES_DSN"`
	PostgresMaxConns int32  `env:"TENANTAUTH_POSTGRES_MAX_CONNS" envDefault:"10"`
	SQLitePath       string `env:"TENANTAUTH_SQLITE_PATH" envDefault:"tenantauth.db"`
	Migrate          bool   `env:"TENANTAUTH_MIGRATE" envDefault:"true"`

	NATSURL           string `env:"NATS_URL"`
	NATSVerifySubject string `env:"NATS_SUBJECT_VERIFICATION" envDefault:"tenantauth.email.verification"`
	NATSResetSubject  string `env:"NATS_SUBJECT_PASSWORD_RESET" envDefault:"tenantauth.email.password_reset"`

	AuditEnabled   bool `env:"TENANTAUTH_AUDIT_ENABLED" envDefault:"true"`
	MetricsEnabled bool `env:"TENANTAUTH_METRICS_ENABLED" envDefault:"true"`
	OTelMetrics    bool `env:"TENANTAUTH_OTEL_METRICS" envDefault:"false"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}
	switch cfg.Store {
	case storeMemory, storeSQLite:
	case storePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("TENANTAUTH_POSTGRES_DSN is required for the postgres store")
		}
	default:
		return nil, fmt.Errorf("unknown TENANTAUTH_STORE %q", cfg.Store)
	}
	return cfg, nil
}

// EngineConfig maps the process configuration onto the engine defaults.
func (c *Config) EngineConfig() tenantauth.Config {
	cfg := tenantauth.DefaultConfig()
	cfg.ProductionMode = c.ProductionMode
	cfg.Redis.Prefix = c.RedisPrefix

	cfg.Token.SigningKey = []byte(c.SigningKey)
	cfg.Token.Issuer = c.TokenIssuer
	cfg.Token.Lifetime = c.TokenLifetime
	cfg.Session.Lifetime = c.SessionLifetime
	cfg.Challenge.Lifetime = c.ChallengeLifetime

	cfg.Lockout.Threshold = c.LockoutThreshold
	cfg.Lockout.Duration = c.LockoutDuration

	cfg.RateLimit.Enabled = c.RateLimitEnabled
	cfg.RateLimit.Backend = tenantauth.RateLimitBackend(c.RateLimitBackend)
	cfg.RateLimit.Window = c.RateLimitWindow
	cfg.RateLimit.GlobalMax = c.RateLimitGlobal
	cfg.RateLimit.AuthMax = c.RateLimitAuth

	cfg.Password.MinScore = c.PasswordMinScore
	cfg.Password.BcryptCost = c.BcryptCost
	cfg.PasswordReset.Enabled = c.PasswordResetEnabled

	cfg.Tenancy.DefaultSlug = c.DefaultTenant
	cfg.Tenancy.RequireFeatures = c.RequireFeatures

	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	return cfg
}

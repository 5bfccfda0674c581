package tenantauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantauth/challenge"
	"github.com/MrEthical07/tenantauth/internal/limiters"
	"github.com/MrEthical07/tenantauth/internal/rate"
	"github.com/MrEthical07/tenantauth/internal/stores"
	"github.com/MrEthical07/tenantauth/jwt"
	"github.com/MrEthical07/tenantauth/password"
	"github.com/MrEthical07/tenantauth/session"
	"github.com/MrEthical07/tenantauth/wallet"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Rate limit route classes accepted by [RateLimiter.Check].
const (
	RouteGlobal          = rate.ClassGlobal
	RouteLogin           = rate.ClassLogin
	RouteWalletVerify    = rate.ClassWalletVerify
	RouteWalletChallenge = rate.ClassWalletChallenge
	RouteRegister        = rate.ClassRegister
	RouteWalletLink      = rate.ClassLink
	RoutePasswordReset   = rate.ClassPasswordReset
	RouteEmailVerify     = rate.ClassEmailVerify
)

// RateLimiter admits or rejects one request from ip in a route class. A
// rejection returns an error wrapping [ErrRateLimitExceeded] and the time until
// the window resets.
type RateLimiter interface {
	Check(ctx context.Context, ip, class string) (time.Duration, error)
}

// ErrRateLimitExceeded is the error custom RateLimiter implementations return
// for a rejected request.
var ErrRateLimitExceeded = rate.ErrRateLimited

// Builder assembles an [Engine]. A Builder is single-use: Build may succeed
// only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    UserRepository
	tenants  TenantRepository
	notifier EmailNotifier
	verifier SignatureVerifier
	clock    Clock
	logger   *zerolog.Logger
	limiter  RateLimiter

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the KV store used for sessions, challenges, rate windows and
// one-time tokens. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserRepository sets the relational user store. Required.
func (b *Builder) WithUserRepository(users UserRepository) *Builder {
	b.users = users
	return b
}

// WithTenantRepository enables tenant lookups. Without one every tenant id is
// accepted as an active tenant with no feature restrictions.
func (b *Builder) WithTenantRepository(tenants TenantRepository) *Builder {
	b.tenants = tenants
	return b
}

func (b *Builder) WithNotifier(n EmailNotifier) *Builder {
	b.notifier = n
	return b
}

// WithSignatureVerifier overrides the EIP-191 recovery used for wallet logins.
func (b *Builder) WithSignatureVerifier(v SignatureVerifier) *Builder {
	b.verifier = v
	return b
}

func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = &l
	return b
}

// WithRateLimiter replaces the limiter selected by RateLimitConfig.Backend.
func (b *Builder) WithRateLimiter(l RateLimiter) *Builder {
	b.limiter = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user repository required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}
	logger = logger.With().Str("component", "tenantauth").Logger()

	verifier := b.verifier
	if verifier == nil {
		verifier = wallet.Verifier{}
	}

	engine := &Engine{
		config:   cfg,
		logger:   logger,
		clock:    clock,
		redis:    b.redis,
		users:    b.users,
		tenants:  b.tenants,
		notifier: b.notifier,
		verifier: verifier,
	}

	// -------- PASSWORDS --------
	hasher, err := password.NewHasher(cfg.Password.BcryptCost)
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher
	engine.policy = password.Policy{
		MinLength:         cfg.Password.MinLength,
		MinScore:          cfg.Password.MinScore,
		RequireAllClasses: cfg.Password.RequireAllClasses,
	}
	engine.lockout = limiters.LockoutPolicy{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	}

	// -------- REDIS STORES --------
	ns := cfg.Redis.Prefix
	engine.sessions = session.NewStore(b.redis, cfg.Redis.Key(cfg.Session.RedisPrefix), clock.Now)
	engine.challenges = challenge.NewStore(b.redis, cfg.Redis.Key(cfg.Challenge.RedisPrefix), clock.Now)
	engine.verifications = stores.NewEmailVerificationStore(b.redis, ns, clock.Now)
	engine.resets = stores.NewPasswordResetStore(b.redis, ns, clock.Now)
	engine.walletSeq = stores.NewWalletUserSequence(b.redis, ns)

	// -------- LIMITERS --------
	switch {
	case b.limiter != nil:
		engine.limiter = b.limiter
	case cfg.RateLimit.Enabled:
		rc := rate.Config{
			Window:    cfg.RateLimit.Window,
			GlobalMax: cfg.RateLimit.GlobalMax,
			AuthMax:   cfg.RateLimit.AuthMax,
			KeyPrefix: cfg.Redis.Key("rl"),
		}
		if cfg.RateLimit.Backend == RateLimitMemory {
			engine.limiter = rate.NewMemory(rc, clock.Now)
		} else {
			engine.limiter = rate.New(b.redis, rc)
		}
	}
	engine.registration = limiters.NewRegistrationLimiter(b.redis, limiters.RegistrationConfig{
		KeyPrefix:                ns,
		EnableIdentifierThrottle: cfg.Registration.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.Registration.EnableIPThrottle,
		MaxAttempts:              cfg.Registration.MaxAttempts,
		Cooldown:                 cfg.Registration.Cooldown,
	})
	engine.resetLimiter = limiters.NewPasswordResetLimiter(b.redis, limiters.PasswordResetConfig{
		KeyPrefix:                ns,
		EnableIdentifierThrottle: cfg.PasswordReset.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
		MaxAttempts:              cfg.PasswordReset.MaxAttempts,
		Cooldown:                 cfg.PasswordReset.Cooldown,
	})

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		Lifetime:   cfg.Token.Lifetime,
		SigningKey: cloneBytes(cfg.Token.SigningKey),
		Issuer:     cfg.Token.Issuer,
		Now:        clock.Now,
	}, engine.sessions)
	if err != nil {
		return nil, err
	}
	engine.tokens = tokens

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

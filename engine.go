package tenantauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/tenantauth/challenge"
	"github.com/MrEthical07/tenantauth/internal/audit"
	"github.com/MrEthical07/tenantauth/internal/flows"
	"github.com/MrEthical07/tenantauth/internal/limiters"
	"github.com/MrEthical07/tenantauth/internal/rate"
	"github.com/MrEthical07/tenantauth/internal/stores"
	"github.com/MrEthical07/tenantauth/jwt"
	"github.com/MrEthical07/tenantauth/password"
	"github.com/MrEthical07/tenantauth/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Engine is the identity service. Build one with [New] and share it across
// request handlers; every method is safe for concurrent use.
type Engine struct {
	config Config
	logger zerolog.Logger
	clock  Clock

	redis    redis.UniversalClient
	users    UserRepository
	tenants  TenantRepository
	notifier EmailNotifier
	verifier SignatureVerifier

	hasher  *password.Hasher
	policy  password.Policy
	lockout limiters.LockoutPolicy
	tokens  *jwt.Manager

	sessions      *session.Store
	challenges    *challenge.Store
	limiter       rate.Limiter
	registration  *limiters.RegistrationLimiter
	resetLimiter  *limiters.PasswordResetLimiter
	verifications *stores.TokenStore
	resets        *stores.TokenStore
	walletSeq     *stores.WalletUserSequence

	audit   *audit.Dispatcher
	metrics *Metrics
	flows   flows.Deps
}

// Close drains the audit dispatcher. The Redis client and repositories belong
// to the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration without the signing key.
func (e *Engine) Config() Config {
	cfg := cloneConfig(e.config)
	cfg.Token.SigningKey = nil
	return cfg
}

func (e *Engine) ready() bool {
	return e != nil && e.users != nil && e.sessions != nil && e.tokens != nil
}

func (e *Engine) metricInc(id int) {
	e.metrics.Inc(MetricID(id))
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn().Msgf(msg, args...)
}

// kvContext bounds one Redis call.
func (e *Engine) kvContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Timeouts.KV)
}

// relContext bounds one repository call.
func (e *Engine) relContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Timeouts.Relational)
}

// fail converts whatever a flow returned into an *AuthError and logs the
// server-side cause of storage and internal failures, tagged with the tenant
// and user involved when they are known.
func (e *Engine) fail(op, tenantID, userID string, err error) error {
	if err == nil {
		return nil
	}

	var ae *AuthError
	switch {
	case errors.As(err, &ae):
	case errors.Is(err, context.DeadlineExceeded):
		ae = ErrPersistenceTimeout.withCause(err)
	case errors.Is(err, context.Canceled):
		ae = ErrPersistence.withCause(err)
	default:
		ae = ErrInternal.withCause(err)
	}

	var msg string
	switch ae.Kind {
	case KindPersistenceTimeout:
		e.metrics.Inc(MetricPersistenceTimeout)
		msg = "storage deadline exceeded"
	case KindPersistenceError:
		e.metrics.Inc(MetricPersistenceError)
		msg = "storage failure"
	case KindInternal:
		msg = "internal failure"
	default:
		return ae
	}

	ev := e.logger.Error().Err(ae.Unwrap()).Str("op", op).Str("code", ae.Code)
	if tenantID != "" {
		ev = ev.Str("tenant_id", tenantID)
	}
	if userID != "" {
		ev = ev.Str("user_id", userID)
	}
	ev.Msg(msg)
	return ae
}

package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tenantauth/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	ErrRegistrationUnavailable = errors.New("registration limiter unavailable")
)

type RegistrationConfig struct {
	// KeyPrefix, when set, namespaces every throttle key.
	KeyPrefix                string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// RegistrationLimiter throttles account creation per tenant.
type RegistrationLimiter struct {
	window *rate.Window
	config RegistrationConfig
}

func NewRegistrationLimiter(redisClient redis.UniversalClient, cfg RegistrationConfig) *RegistrationLimiter {
	return &RegistrationLimiter{
		window: rate.NewWindow(redisClient),
		config: cfg,
	}
}

func (l *RegistrationLimiter) Enforce(ctx context.Context, tenantID, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle && identifier != "" {
		if err := l.enforceKey(ctx, namespaced(l.config.KeyPrefix, registrationIdentifierKey(tenantID, identifier))); err != nil {
			return err
		}
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceKey(ctx, namespaced(l.config.KeyPrefix, registrationIPKey(tenantID, ip))); err != nil {
			return err
		}
	}

	return nil
}

func (l *RegistrationLimiter) enforceKey(ctx context.Context, key string) error {
	_, err := l.window.Enforce(ctx, key, l.config.Cooldown, l.config.MaxAttempts)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRegistrationRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrRegistrationUnavailable, err)
	}
}

func namespaced(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

func registrationIdentifierKey(tenantID, identifier string) string {
	return "aca:" + normalizeTenantID(tenantID) + ":" + identifier
}

func registrationIPKey(tenantID, ip string) string {
	return "acaip:" + normalizeTenantID(tenantID) + ":" + ip
}

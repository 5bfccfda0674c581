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
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

type PasswordResetConfig struct {
	KeyPrefix                string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Cooldown                 time.Duration
	MaxAttempts              int
}

type PasswordResetLimiter struct {
	window *rate.Window
	config PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		window: rate.NewWindow(redisClient),
		config: cfg,
	}
}

func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, tenantID, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle && identifier != "" {
		if err := l.enforceFixedWindow(ctx, namespaced(l.config.KeyPrefix, requestIdentifierKey(tenantID, identifier))); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, namespaced(l.config.KeyPrefix, requestIPKey(tenantID, ip))); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) CheckConfirm(ctx context.Context, tenantID, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, namespaced(l.config.KeyPrefix, confirmIPKey(tenantID, ip))); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	_, err := l.window.Enforce(ctx, key, l.config.Cooldown, l.config.MaxAttempts)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrResetRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
}

func requestIdentifierKey(tenantID, identifier string) string {
	return "apri:" + normalizeTenantID(tenantID) + ":" + identifier
}

func requestIPKey(tenantID, ip string) string {
	return "aprip:" + normalizeTenantID(tenantID) + ":" + ip
}

func confirmIPKey(tenantID, ip string) string {
	return "aprcip:" + normalizeTenantID(tenantID) + ":" + ip
}

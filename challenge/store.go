package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrMissing reports that no challenge is stored for the key.
	ErrMissing = errors.New("challenge missing")
	// ErrExpired reports a stored challenge whose expiry has passed. The record
	// is removed before this is returned.
	ErrExpired = errors.New("challenge expired")
	// ErrRedisUnavailable wraps transport failures.
	ErrRedisUnavailable = errors.New("challenge redis unavailable")
)

const consumeScript = `
local value = redis.call("GET", KEYS[1])
if not value then
  return false
end
redis.call("DEL", KEYS[1])
return value
`

var consumeLua = redis.NewScript(consumeScript)

// Challenge is a pending proof-of-ownership request.
type Challenge struct {
	TenantID      string    `json:"tenantId"`
	WalletAddress string    `json:"walletAddress"`
	Nonce         string    `json:"nonce"`
	Message       string    `json:"message"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// BuildMessage renders the exact text a wallet signs.
func BuildMessage(address, nonce, tenantLabel string) string {
	var b strings.Builder
	b.Grow(96 + len(address) + len(nonce) + len(tenantLabel))
	b.WriteString("Sign this message to authenticate\nWallet: ")
	b.WriteString(address)
	b.WriteString("\nNonce: ")
	b.WriteString(nonce)
	b.WriteString("\nTenant: ")
	b.WriteString(tenantLabel)
	return b.String()
}

// NewNonce returns a random version-4 UUID.
func NewNonce() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Store is a Redis-backed challenge store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a challenge [Store]. prefix defaults to "challenge" and now
// to time.Now.
func NewStore(rdb redis.UniversalClient, prefix string, now func() time.Time) *Store {
	if prefix == "" {
		prefix = "challenge"
	}
	if now == nil {
		now = time.Now
	}
	return &Store{redis: rdb, prefix: prefix, now: now}
}

func (s *Store) key(tenantID, address string) string {
	return s.prefix + ":" + tenantID + ":" + strings.ToLower(address)
}

// Issue builds a fresh challenge for address and stores it, replacing any
// pending one. address must already be normalized.
func (s *Store) Issue(ctx context.Context, tenantID, tenantLabel, address string, lifetime time.Duration) (*Challenge, error) {
	if lifetime <= 0 {
		return nil, errors.New("challenge lifetime must be positive")
	}
	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	now := s.now()
	address = strings.ToLower(address)
	c := &Challenge{
		TenantID:      tenantID,
		WalletAddress: address,
		Nonce:         nonce,
		Message:       BuildMessage(address, nonce, tenantLabel),
		IssuedAt:      now,
		ExpiresAt:     now.Add(lifetime),
	}
	if err := s.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Put stores c under (TenantID, WalletAddress) with TTL equal to its remaining
// lifetime.
func (s *Store) Put(ctx context.Context, c *Challenge) error {
	ttl := c.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrExpired
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(c.TenantID, c.WalletAddress), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Peek returns the pending challenge without consuming it.
func (s *Store) Peek(ctx context.Context, tenantID, address string) (*Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID, address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMissing
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	c, err := decode(data)
	if err != nil {
		return nil, err
	}
	if !c.ExpiresAt.After(s.now()) {
		return nil, ErrExpired
	}
	return c, nil
}

// Consume atomically reads and deletes the pending challenge.
//
//	Performance: 1 EVALSHA.
func (s *Store) Consume(ctx context.Context, tenantID, address string) (*Challenge, error) {
	raw, err := consumeLua.Run(ctx, s.redis, []string{s.key(tenantID, address)}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMissing
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("%w: invalid consume script response", ErrRedisUnavailable)
	}

	c, err := decode(data)
	if err != nil {
		return nil, err
	}
	if !c.ExpiresAt.After(s.now()) {
		return nil, ErrExpired
	}
	return c, nil
}

func decode(data []byte) (*Challenge, error) {
	var c Challenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}

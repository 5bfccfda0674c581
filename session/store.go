package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tenantauth/internal"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when a session is absent or its lifetime has elapsed.
var ErrNotFound = errors.New("session not found")

// ErrCorrupt is returned when a stored session blob cannot be decoded.
var ErrCorrupt = errors.New("session corrupt")

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
  local count = tonumber(redis.call("GET", KEYS[3]) or "0")
  if count > 1 then
    redis.call("DECR", KEYS[3])
  elseif count == 1 then
    redis.call("DEL", KEYS[3])
  end
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// CreateInput describes a new session.
type CreateInput struct {
	UserID        string
	TenantID      string
	WalletAddress string
	Origin        Origin
}

// Store is a Redis-backed session registry that handles persistence,
// clock-driven expiry and token revocation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
// Every key the store writes starts with prefix, so registries with different
// prefixes can share one Redis. now defaults to time.Now.
func NewStore(rdb redis.UniversalClient, prefix string, now func() time.Time) *Store {
	if prefix == "" {
		prefix = "session"
	}
	if now == nil {
		now = time.Now
	}
	return &Store{redis: rdb, prefix: prefix, now: now}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(tenantID, userID string) string {
	return s.prefix + ":u:" + normalizeTenantID(tenantID) + ":" + userID
}

func (s *Store) tenantCountKey(tenantID string) string {
	return s.prefix + ":c:" + normalizeTenantID(tenantID)
}

func (s *Store) revokedKey(userID, fingerprint string) string {
	return s.prefix + ":revoked:" + userID + ":" + fingerprint
}

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}

// Create generates a session ID, stamps createdAt/expiresAt from the store
// clock and persists the record with TTL equal to lifetime.
//
//	Performance: 1 MULTI/EXEC (SET + SADD + PEXPIRE + INCR).
func (s *Store) Create(ctx context.Context, in CreateInput, lifetime time.Duration) (*Session, error) {
	if in.UserID == "" || in.TenantID == "" {
		return nil, errors.New("session requires user and tenant")
	}
	if lifetime <= 0 {
		return nil, errors.New("session lifetime must be positive")
	}
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		SessionID:     sid.String(),
		UserID:        in.UserID,
		TenantID:      in.TenantID,
		WalletAddress: in.WalletAddress,
		Origin:        in.Origin,
		CreatedAt:     now.UnixMilli(),
		ExpiresAt:     now.Add(lifetime).UnixMilli(),
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save persists sess with TTL equal to its remaining lifetime.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	ttl := time.UnixMilli(sess.ExpiresAt).Sub(s.now())
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	userKey := s.userKey(sess.TenantID, sess.UserID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		pipe.PExpire(ctx, userKey, ttl)
		pipe.Incr(ctx, s.tenantCountKey(sess.TenantID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the session if it exists and is unexpired by the store clock.
// An expired record is removed and reported as [ErrNotFound].
//
//	Performance: 1 Redis GET; expired records add 1 EVALSHA.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sess.SessionID = sessionID

	if sess.Expired(s.now()) {
		if err := s.deleteSessionAndIndex(ctx, sess.TenantID, sess.UserID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// Delete removes a session and its index entry. Deleting an absent session is
// not an error.
//
//	Performance: 1 GET + 1 EVALSHA.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		if delErr := s.redis.Del(ctx, s.key(sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return nil
	}

	return s.deleteSessionAndIndex(ctx, sess.TenantID, sess.UserID, sessionID)
}

// DeleteAllForUser removes all sessions for a user within a tenant and returns
// how many records were removed.
//
// A session created between the index read and the delete survives this call
// and expires by TTL.
func (s *Store) DeleteAllForUser(ctx context.Context, tenantID, userID string) (int, error) {
	userKey := s.userKey(tenantID, userID)
	countKey := s.tenantCountKey(tenantID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessionKeys := make([]string, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		sessionKeys = append(sessionKeys, s.key(sessionID))
	}

	var removed int64
	var delCmd *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(sessionKeys) > 0 {
			delCmd = pipe.Del(ctx, sessionKeys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if delCmd != nil {
		removed = delCmd.Val()
	}

	if removed > 0 {
		if err := s.decrementCount(ctx, countKey, removed); err != nil {
			return int(removed), err
		}
	}
	return int(removed), nil
}

func (s *Store) decrementCount(ctx context.Context, countKey string, by int64) error {
	next, err := s.redis.DecrBy(ctx, countKey, by).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if next <= 0 {
		if err := s.redis.Del(ctx, countKey).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// TenantSessionCount returns the tracked tenant-wide session counter. Records
// evicted by TTL are not subtracted, so the value is an upper bound.
func (s *Store) TenantSessionCount(ctx context.Context, tenantID string) (int, error) {
	count, err := s.redis.Get(ctx, s.tenantCountKey(tenantID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// ActiveSessionIDs returns the user's live session IDs and prunes index
// entries whose records were evicted.
func (s *Store) ActiveSessionIDs(ctx context.Context, tenantID, userID string) ([]string, error) {
	userKey := s.userKey(tenantID, userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		existsCmds[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	stale := make([]interface{}, 0)
	for i, cmd := range existsCmds {
		if cmd.Val() == 1 {
			live = append(live, ids[i])
			continue
		}
		stale = append(stale, ids[i])
	}
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return live, nil
}

// ActiveSessionCount returns the number of live sessions for a user in a tenant.
func (s *Store) ActiveSessionCount(ctx context.Context, tenantID, userID string) (int, error) {
	ids, err := s.ActiveSessionIDs(ctx, tenantID, userID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Revoke marks a token fingerprint as revoked for ttl. A non-positive ttl means
// the token has already expired and nothing is written. Repeated calls are
// idempotent.
func (s *Store) Revoke(ctx context.Context, userID, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if userID == "" || fingerprint == "" {
		return errors.New("revocation requires user and fingerprint")
	}
	if err := s.redis.Set(ctx, s.revokedKey(userID, fingerprint), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether fingerprint was revoked for userID.
func (s *Store) IsRevoked(ctx context.Context, userID, fingerprint string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.revokedKey(userID, fingerprint)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, tenantID, userID, sessionID string) error {
	_, err := deleteSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID), s.userKey(tenantID, userID), s.tenantCountKey(tenantID)},
		sessionID,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenRecordVersionV1 = 1

var (
	ErrTokenNotFound         = errors.New("token record not found")
	ErrTokenRedisUnavailable = errors.New("token redis unavailable")
)

var consumeTokenLua = redis.NewScript(`
local data = redis.call("GET", KEYS[1])
if not data then
  return false
end
redis.call("DEL", KEYS[1])
return data
`)

// TokenRecord is what a stored token resolves to. ExpiresAt is Unix
// milliseconds.
type TokenRecord struct {
	UserID    string
	ExpiresAt int64
}

// TokenStore maps hashed opaque tokens to users.
type TokenStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func newTokenStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{redis: redisClient, prefix: prefix, now: now}
}

func namespaced(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}

func (s *TokenStore) key(tenantID, tokenHash string) string {
	return s.prefix + ":" + normalizeTenantID(tenantID) + ":" + tokenHash
}

func (s *TokenStore) userKey(tenantID, userID string) string {
	return s.prefix + "u:" + normalizeTenantID(tenantID) + ":" + userID
}

// Save stores tokenHash for userID with TTL ttl and drops the user's previous
// outstanding token, if any.
func (s *TokenStore) Save(ctx context.Context, tenantID, userID, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("token ttl must be positive")
	}
	encoded, err := encodeTokenRecord(&TokenRecord{
		UserID:    userID,
		ExpiresAt: s.now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		return err
	}

	userKey := s.userKey(tenantID, userID)
	prev, err := s.redis.Get(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != "" && prev != tokenHash {
			pipe.Del(ctx, s.key(tenantID, prev))
		}
		pipe.Set(ctx, s.key(tenantID, tokenHash), encoded, ttl)
		pipe.Set(ctx, userKey, tokenHash, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return nil
}

// Consume returns and deletes the record for tokenHash. Expired or absent
// records yield [ErrTokenNotFound].
func (s *TokenStore) Consume(ctx context.Context, tenantID, tokenHash string) (*TokenRecord, error) {
	raw, err := consumeTokenLua.Run(ctx, s.redis, []string{s.key(tenantID, tokenHash)}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("%w: invalid consume script response", ErrTokenRedisUnavailable)
	}

	record, err := decodeTokenRecord(data)
	if err != nil {
		return nil, ErrTokenNotFound
	}
	if s.now().UnixMilli() >= record.ExpiresAt {
		return nil, ErrTokenNotFound
	}
	if err := s.redis.Del(ctx, s.userKey(tenantID, record.UserID)).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return record, nil
}

// Outstanding reports whether userID has an unconsumed token.
func (s *TokenStore) Outstanding(ctx context.Context, tenantID, userID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.userKey(tenantID, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}
	return n == 1, nil
}

func encodeTokenRecord(record *TokenRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("token record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (*TokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenRecordVersionV1 {
		return nil, errors.New("invalid token record version")
	}

	record := &TokenRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}
	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	return record, nil
}

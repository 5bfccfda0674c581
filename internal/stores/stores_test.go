package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

func TestTokenStoreSaveConsume(t *testing.T) {
	rdb, mr := newRedis(t)
	store := NewEmailVerificationStore(rdb, "", nil)
	ctx := context.Background()

	if err := store.Save(ctx, "t1", "u1", "hash-1", time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("aev:t1:hash-1") {
		t.Fatal("expected hashed key")
	}
	if ok, _ := store.Outstanding(ctx, "t1", "u1"); !ok {
		t.Fatal("expected outstanding token")
	}

	rec, err := store.Consume(ctx, "t1", "hash-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if rec.UserID != "u1" {
		t.Fatalf("unexpected user %q", rec.UserID)
	}
	if _, err := store.Consume(ctx, "t1", "hash-1"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("second consume: expected ErrTokenNotFound, got %v", err)
	}
	if ok, _ := store.Outstanding(ctx, "t1", "u1"); ok {
		t.Fatal("consume must clear the outstanding marker")
	}
}

func TestTokenStoreNewTokenReplacesOld(t *testing.T) {
	rdb, _ := newRedis(t)
	store := NewPasswordResetStore(rdb, "", nil)
	ctx := context.Background()

	_ = store.Save(ctx, "t1", "u1", "old", time.Hour)
	_ = store.Save(ctx, "t1", "u1", "new", time.Hour)

	if _, err := store.Consume(ctx, "t1", "old"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("old token must be invalidated, got %v", err)
	}
	if _, err := store.Consume(ctx, "t1", "new"); err != nil {
		t.Fatalf("new token must be valid: %v", err)
	}
}

func TestTokenStoreExpiry(t *testing.T) {
	rdb, _ := newRedis(t)
	now := time.Unix(1_700_000_000, 0)
	store := NewPasswordResetStore(rdb, "", func() time.Time { return now })
	ctx := context.Background()

	_ = store.Save(ctx, "t1", "u1", "h", 30*time.Minute)
	now = now.Add(30 * time.Minute)
	if _, err := store.Consume(ctx, "t1", "h"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expired token must not resolve, got %v", err)
	}
}

func TestTokenStoreTenantScoped(t *testing.T) {
	rdb, _ := newRedis(t)
	store := NewEmailVerificationStore(rdb, "", nil)
	ctx := context.Background()

	_ = store.Save(ctx, "t1", "u1", "h", time.Hour)
	if _, err := store.Consume(ctx, "t2", "h"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("token must not resolve in another tenant, got %v", err)
	}
}

func TestTokenStoreConcurrentConsume(t *testing.T) {
	rdb, _ := newRedis(t)
	store := NewPasswordResetStore(rdb, "", nil)
	ctx := context.Background()
	_ = store.Save(ctx, "t1", "u1", "h", time.Hour)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "t1", "h"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one consume to win, got %d", wins.Load())
	}
}

func TestWalletUserSequence(t *testing.T) {
	rdb, _ := newRedis(t)
	seq := NewWalletUserSequence(rdb, "")
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, "t1")
		if err != nil || got != want {
			t.Fatalf("Next = %d (%v), want %d", got, err, want)
		}
	}
	if got, _ := seq.Next(ctx, "t2"); got != 1 {
		t.Fatalf("sequences must be per tenant, got %d", got)
	}
}

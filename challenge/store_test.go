package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const testAddr = "0x52908400098527886e0f7030069857d2e4169ee7"

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newChallengeStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, *manualClock) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, "challenge", clock.Now), mr, clock
}

func TestBuildMessageFormat(t *testing.T) {
	got := BuildMessage(testAddr, "n-1", "T1")
	want := "Sign this message to authenticate\nWallet: " + testAddr + "\nNonce: n-1\nTenant: T1"
	if got != want {
		t.Fatalf("BuildMessage = %q, want %q", got, want)
	}
}

func TestIssueStoresUnderTenantAndAddress(t *testing.T) {
	store, mr, _ := newChallengeStoreTest(t)

	c, err := store.Issue(context.Background(), "t1", "T1", strings.ToUpper(testAddr[:2])+testAddr[2:], 5*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := uuid.Parse(c.Nonce); err != nil {
		t.Fatalf("nonce is not a uuid: %v", err)
	}
	if !strings.Contains(c.Message, "Nonce: "+c.Nonce) {
		t.Fatalf("message does not embed nonce: %q", c.Message)
	}

	key := "challenge:t1:" + testAddr
	if !mr.Exists(key) {
		t.Fatalf("expected key %s", key)
	}
	if ttl := mr.TTL(key); ttl != 5*time.Minute {
		t.Fatalf("expected 5m TTL, got %v", ttl)
	}

	raw, _ := mr.Get(key)
	var stored Challenge
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.Nonce != c.Nonce {
		t.Fatalf("stored record mismatch: %v %+v", err, stored)
	}
}

func TestIssueOverwritesPrevious(t *testing.T) {
	store, _, _ := newChallengeStoreTest(t)
	ctx := context.Background()

	first, _ := store.Issue(ctx, "t1", "T1", testAddr, 5*time.Minute)
	second, _ := store.Issue(ctx, "t1", "T1", testAddr, 5*time.Minute)
	if first.Nonce == second.Nonce {
		t.Fatal("nonces must differ")
	}

	got, err := store.Consume(ctx, "t1", testAddr)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.Nonce != second.Nonce {
		t.Fatal("consume must return the most recent challenge")
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	store, _, _ := newChallengeStoreTest(t)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "t1", "T1", testAddr, 5*time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := store.Consume(ctx, "t1", testAddr); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := store.Consume(ctx, "t1", testAddr); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestConsumeConcurrentExactlyOneWins(t *testing.T) {
	store, _, _ := newChallengeStoreTest(t)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		if _, err := store.Issue(ctx, "t1", "T1", testAddr, 5*time.Minute); err != nil {
			t.Fatalf("issue: %v", err)
		}

		var wins, misses atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Consume(ctx, "t1", testAddr)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrMissing):
					misses.Add(1)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 || misses.Load() != 7 {
			t.Fatalf("round %d: wins=%d misses=%d", round, wins.Load(), misses.Load())
		}
	}
}

func TestConsumeExpiredByClock(t *testing.T) {
	store, mr, clock := newChallengeStoreTest(t)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "t1", "T1", testAddr, 5*time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(5 * time.Minute)

	if _, err := store.Peek(ctx, "t1", testAddr); !errors.Is(err, ErrExpired) {
		t.Fatalf("peek: expected ErrExpired, got %v", err)
	}
	if _, err := store.Consume(ctx, "t1", testAddr); !errors.Is(err, ErrExpired) {
		t.Fatalf("consume: expected ErrExpired, got %v", err)
	}
	if mr.Exists("challenge:t1:" + testAddr) {
		t.Fatal("expired challenge must be removed")
	}
}

func TestChallengeIsTenantScoped(t *testing.T) {
	store, _, _ := newChallengeStoreTest(t)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "t1", "T1", testAddr, 5*time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := store.Consume(ctx, "t2", testAddr); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected other tenant to miss, got %v", err)
	}
	if _, err := store.Peek(ctx, "t1", testAddr); err != nil {
		t.Fatalf("t1 challenge must remain: %v", err)
	}
}

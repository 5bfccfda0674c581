package tenantauth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/storage/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newPrefixedEngine(t *testing.T, mr *miniredis.Miniredis, prefix string) *tenantauth.Engine {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := tenantauth.DefaultConfig()
	cfg.Token.SigningKey = []byte(testSigningKey)
	cfg.Redis.Prefix = prefix
	cfg.Registration.EnableIdentifierThrottle = true

	engine, err := tenantauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserRepository(memory.NewUserStore()).
		WithTenantRepository(memory.NewTenantStore()).
		WithNotifier(&captureNotifier{}).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestRedisPrefixIsolatesEngines(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newPrefixedEngine(t, mr, "a")
	b := newPrefixedEngine(t, mr, "b")
	ctx := context.Background()
	const tenant = tenantauth.DefaultTenantSlug

	if _, err := a.RegisterWithPassword(ctx, tenant, "u@x.io", "Abcdef1!", ""); err != nil {
		t.Fatalf("register error: %v", err)
	}
	res, err := a.LoginWithPassword(ctx, tenant, "u@x.io", "Abcdef1!", "10.0.0.1")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if err := a.RequestPasswordReset(ctx, tenant, "u@x.io", "10.0.0.1"); err != nil {
		t.Fatalf("reset request error: %v", err)
	}

	w := newWallet(t)
	ch, err := a.GenerateWalletChallenge(ctx, tenant, w.addr)
	if err != nil {
		t.Fatalf("challenge error: %v", err)
	}
	if _, err := a.VerifyWalletSignature(ctx, tenant, w.addr, w.sign(t, ch.Message), "10.0.0.1"); err != nil {
		t.Fatalf("wallet login error: %v", err)
	}
	if err := a.Logout(ctx, res.User.ID, res.Token); err != nil {
		t.Fatalf("logout error: %v", err)
	}

	keys := mr.Keys()
	if len(keys) == 0 {
		t.Fatal("expected keys to be written")
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, "a:") {
			t.Fatalf("key %q escapes the a: namespace", k)
		}
	}

	// The same signing key does not let b see a's sessions.
	res, err = a.LoginWithPassword(ctx, tenant, "u@x.io", "Abcdef1!", "10.0.0.1")
	if err != nil {
		t.Fatalf("second login error: %v", err)
	}
	if _, err := a.VerifyBearer(ctx, res.Token); err != nil {
		t.Fatalf("token must verify on its own engine: %v", err)
	}
	if _, err := b.VerifyBearer(ctx, res.Token); !errors.Is(err, tenantauth.ErrInvalidToken) {
		t.Fatalf("expected invalid_token on the other namespace, got %v", err)
	}
	if n, err := b.TenantSessionCount(ctx, tenant); err != nil || n != 0 {
		t.Fatalf("b tenant session count = %d (%v)", n, err)
	}
}

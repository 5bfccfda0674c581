package tenantauth_test

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/storage/memory"
	"github.com/MrEthical07/tenantauth/wallet"
	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

type captureNotifier struct {
	mu            sync.Mutex
	verifications []tenantauth.VerificationMessage
	resets        []tenantauth.PasswordResetMessage
}

func (n *captureNotifier) SendVerification(_ context.Context, msg tenantauth.VerificationMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifications = append(n.verifications, msg)
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, msg tenantauth.PasswordResetMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, msg)
	return nil
}

func (n *captureNotifier) lastVerification(t *testing.T) tenantauth.VerificationMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.verifications) == 0 {
		t.Fatal("no verification message sent")
	}
	return n.verifications[len(n.verifications)-1]
}

func (n *captureNotifier) lastReset(t *testing.T) tenantauth.PasswordResetMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resets) == 0 {
		t.Fatal("no reset message sent")
	}
	return n.resets[len(n.resets)-1]
}

func (n *captureNotifier) resetCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.resets)
}

type fixture struct {
	engine   *tenantauth.Engine
	clock    *manualClock
	redis    *miniredis.Miniredis
	users    *memory.UserStore
	tenants  *memory.TenantStore
	notifier *captureNotifier
	audit    *tenantauth.ChannelSink
}

type fixtureOption func(*tenantauth.Config, *tenantauth.Builder)

func withConfig(mutate func(*tenantauth.Config)) fixtureOption {
	return func(cfg *tenantauth.Config, _ *tenantauth.Builder) { mutate(cfg) }
}

func withUsers(repo tenantauth.UserRepository) fixtureOption {
	return func(_ *tenantauth.Config, b *tenantauth.Builder) { b.WithUserRepository(repo) }
}

func newFixture(t testing.TB, opts ...fixtureOption) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		clock:    newManualClock(),
		redis:    mr,
		users:    memory.NewUserStore(),
		tenants:  memory.NewTenantStore(),
		notifier: &captureNotifier{},
		audit:    tenantauth.NewChannelSink(256),
	}
	for _, id := range []string{"t1", "t2"} {
		if _, err := f.tenants.Put(tenantauth.Tenant{
			ID:       id,
			Slug:     id,
			Name:     strings.ToUpper(id),
			Domain:   id + ".example.com",
			Features: []string{tenantauth.FeaturePasswordAuth, tenantauth.FeatureWalletAuth},
			Active:   true,
		}); err != nil {
			t.Fatalf("Put tenant error: %v", err)
		}
	}

	cfg := tenantauth.DefaultConfig()
	cfg.Token.SigningKey = []byte(testSigningKey)
	cfg.Audit.Enabled = true

	b := tenantauth.New().
		WithRedis(rdb).
		WithUserRepository(f.users).
		WithTenantRepository(f.tenants).
		WithNotifier(f.notifier).
		WithClock(f.clock).
		WithAuditSink(f.audit).
		WithMetricsEnabled(true)
	for _, opt := range opts {
		opt(&cfg, b)
	}

	engine, err := b.WithConfig(cfg).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)
	f.engine = engine
	return f
}

type testWallet struct {
	key  *ecdsa.PrivateKey
	addr string
}

func newWallet(t testing.TB) testWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	return testWallet{key: key, addr: wallet.AddressOf(key)}
}

func (w testWallet) sign(t testing.TB, msg string) string {
	t.Helper()
	sig, err := wallet.SignPersonal(msg, w.key)
	if err != nil {
		t.Fatalf("SignPersonal error: %v", err)
	}
	return sig
}

func (f *fixture) walletLogin(t testing.TB, tenantID string, w testWallet) *tenantauth.AuthResult {
	t.Helper()
	ctx := context.Background()
	ch, err := f.engine.GenerateWalletChallenge(ctx, tenantID, w.addr)
	if err != nil {
		t.Fatalf("GenerateWalletChallenge error: %v", err)
	}
	res, err := f.engine.VerifyWalletSignature(ctx, tenantID, w.addr, w.sign(t, ch.Message), "")
	if err != nil {
		t.Fatalf("VerifyWalletSignature error: %v", err)
	}
	return res
}

func (f *fixture) register(t testing.TB, tenantID, email, pw string) tenantauth.PublicUser {
	t.Helper()
	u, err := f.engine.RegisterWithPassword(context.Background(), tenantID, email, pw, "Test User")
	if err != nil {
		t.Fatalf("RegisterWithPassword error: %v", err)
	}
	return u
}

func (f *fixture) login(t testing.TB, tenantID, email, pw string) *tenantauth.AuthResult {
	t.Helper()
	res, err := f.engine.LoginWithPassword(context.Background(), tenantID, email, pw, "10.0.0.1")
	if err != nil {
		t.Fatalf("LoginWithPassword error: %v", err)
	}
	return res
}

// drainAudit closes the engine so every queued event reaches the sink.
func (f *fixture) drainAudit() []tenantauth.AuditEvent {
	f.engine.Close()
	var out []tenantauth.AuditEvent
	for {
		select {
		case e := <-f.audit.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func wantKind(t *testing.T, err error, want tenantauth.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := tenantauth.KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}

package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/middleware"
	"github.com/MrEthical07/tenantauth/storage/memory"
	"github.com/MrEthical07/tenantauth/wallet"
	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
)

func newEngine(t *testing.T) *tenantauth.Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := tenantauth.DefaultConfig()
	cfg.Token.SigningKey = []byte("0123456789abcdef0123456789abcdef")

	engine, err := tenantauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserRepository(memory.NewUserStore()).
		WithTenantRepository(memory.NewTenantStore()).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func walletLogin(t *testing.T, engine *tenantauth.Engine, tenantID string) *tenantauth.AuthResult {
	t.Helper()
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	addr := wallet.AddressOf(key)

	ch, err := engine.GenerateWalletChallenge(ctx, tenantID, addr)
	if err != nil {
		t.Fatalf("GenerateWalletChallenge error: %v", err)
	}
	sig, err := wallet.SignPersonal(ch.Message, key)
	if err != nil {
		t.Fatalf("SignPersonal error: %v", err)
	}
	res, err := engine.VerifyWalletSignature(ctx, tenantID, addr, sig, "203.0.113.7")
	if err != nil {
		t.Fatalf("VerifyWalletSignature error: %v", err)
	}
	return res
}

func identityHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(id)
	})
}

func TestGuardRejectsMissingAndMalformedHeaders(t *testing.T) {
	engine := newEngine(t)
	h := middleware.Guard(engine)(identityHandler(t))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if body.Error.Code != "invalid_token" {
			t.Fatalf("header %q: expected invalid_token, got %q", header, body.Error.Code)
		}
	}
}

func TestGuardAttachesIdentity(t *testing.T) {
	engine := newEngine(t)
	res := walletLogin(t, engine, tenantauth.DefaultTenantSlug)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "bearer "+res.Token)
	rec := httptest.NewRecorder()
	middleware.Guard(engine)(identityHandler(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var id tenantauth.Identity
	if err := json.Unmarshal(rec.Body.Bytes(), &id); err != nil {
		t.Fatalf("decode identity: %v", err)
	}
	if id.UserID != res.User.ID || id.TenantID != tenantauth.DefaultTenantSlug {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestGuardRejectsLoggedOutToken(t *testing.T) {
	engine := newEngine(t)
	res := walletLogin(t, engine, tenantauth.DefaultTenantSlug)
	if err := engine.Logout(context.Background(), res.User.ID, res.Token); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec := httptest.NewRecorder()
	middleware.Guard(engine)(identityHandler(t)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
}

func TestRequireTenantRejectsOtherTenant(t *testing.T) {
	engine := newEngine(t)
	res := walletLogin(t, engine, tenantauth.DefaultTenantSlug)

	pinned := func(tenantID string) func(*http.Request) string {
		return func(*http.Request) string { return tenantID }
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)

	rec := httptest.NewRecorder()
	middleware.RequireTenant(engine, pinned("other"))(identityHandler(t)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign tenant, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	middleware.RequireTenant(engine, pinned(tenantauth.DefaultTenantSlug))(identityHandler(t)).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own tenant, got %d", rec.Code)
	}
}

func TestOptionalPassesAnonymousRequests(t *testing.T) {
	engine := newEngine(t)
	h := middleware.Optional(engine)(identityHandler(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected anonymous pass-through, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected invalid token pass-through, got %d", rec.Code)
	}
}

func TestGuardWithNilEngine(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.Guard(nil)(identityHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc ": "abc",
		"BEARER  abc": "abc",
		"Token abc":   "",
		"Bearer":      "",
		"Bearer     ": "",
	}
	for in, want := range cases {
		got, ok := middleware.BearerToken(in)
		if got != want || ok != (want != "") {
			t.Fatalf("BearerToken(%q) = %q, %v", in, got, ok)
		}
	}
}

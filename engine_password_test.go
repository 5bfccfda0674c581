package tenantauth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/tenantauth"
)

func TestRegisterWithPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "t1", "  U@X.io ", "Abcdef1!")
	if u.Email != "u@x.io" || u.IsVerified || u.IsWalletOnly || u.TenantID != "t1" {
		t.Fatalf("unexpected user: %+v", u)
	}

	msg := f.notifier.lastVerification(t)
	if msg.UserID != u.ID || msg.TenantID != "t1" || len(msg.Token) != 64 {
		t.Fatalf("unexpected verification message: %+v", msg)
	}
	if want := f.clock.Now().Add(24 * time.Hour).Unix(); msg.ExpiresAt != want {
		t.Fatalf("verification expiresAt = %d, want %d", msg.ExpiresAt, want)
	}

	_, err := f.engine.RegisterWithPassword(ctx, "t1", "u@x.io", "Abcdef1!", "Dup")
	if !errors.Is(err, tenantauth.ErrEmailTaken) {
		t.Fatalf("expected email_taken, got %v", err)
	}

	// Uniqueness is per tenant.
	f.register(t, "t2", "u@x.io", "Zyxwvu9?")
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		email, password, rule string
	}{
		{"not-an-email", "Abcdef1!", "email"},
		{"a b@x.io", "Abcdef1!", "email"},
		{"v@x.io", "short1!", "password_min_length"},
		{"v@x.io", "abcdefgh", "password_uppercase"},
	}
	for _, tc := range cases {
		_, err := f.engine.RegisterWithPassword(ctx, "t1", tc.email, tc.password, "V")
		wantKind(t, err, tenantauth.KindValidation)
		if _, ok := tenantauth.AsAuthError(err).Details[tc.rule]; !ok {
			t.Fatalf("%q/%q: expected %s in details, got %v", tc.email, tc.password, tc.rule, tenantauth.AsAuthError(err).Details)
		}
	}
	if f.users.Len() != 0 {
		t.Fatal("invalid registrations must not persist users")
	}
}

func TestLoginWithPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "t1", "u@x.io", "Abcdef1!")

	res := f.login(t, "t1", "U@X.IO", "Abcdef1!")
	if res.User.ID != u.ID || res.SessionID == "" {
		t.Fatalf("unexpected login result: %+v", res)
	}

	stored, err := f.users.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(f.clock.Now()) {
		t.Fatalf("lastLoginAt not recorded: %v", stored.LastLoginAt)
	}

	_, err = f.engine.LoginWithPassword(ctx, "t1", "nobody@x.io", "Abcdef1!", "10.0.0.1")
	if !errors.Is(err, tenantauth.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected invalid_credentials, got %v", err)
	}
	_, err = f.engine.LoginWithPassword(ctx, "t2", "u@x.io", "Abcdef1!", "10.0.0.1")
	if !errors.Is(err, tenantauth.ErrInvalidCredentials) {
		t.Fatalf("other tenant: expected invalid_credentials, got %v", err)
	}
}

func TestLoginRejectsWalletOnlyUser(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	f.walletLogin(t, "t1", w)

	_, err := f.engine.LoginWithPassword(context.Background(), "t1", "", "Abcdef1!", "")
	if !errors.Is(err, tenantauth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid_credentials, got %v", err)
	}
}

func TestLockoutAfterFiveFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "t1", "u@x.io", "Abcdef1!")

	for i := 1; i <= 5; i++ {
		_, err := f.engine.LoginWithPassword(ctx, "t1", "u@x.io", "Wrong123!", "10.0.0.1")
		if !errors.Is(err, tenantauth.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid_credentials, got %v", i, err)
		}
	}

	_, err := f.engine.LoginWithPassword(ctx, "t1", "u@x.io", "Abcdef1!", "10.0.0.1")
	if !errors.Is(err, tenantauth.ErrAccountLocked) {
		t.Fatalf("expected account_locked with correct password, got %v", err)
	}

	f.clock.Advance(15*time.Minute + time.Second)
	res := f.login(t, "t1", "u@x.io", "Abcdef1!")

	stored, err := f.users.FindByID(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if stored.LoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("successful login must reset the counter: %+v", stored)
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[tenantauth.MetricLockoutApplied] != 1 || snap.Counters[tenantauth.MetricLoginLocked] != 1 {
		t.Fatalf("unexpected lockout metrics: %+v", snap.Counters)
	}
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "t1", "u@x.io", "Abcdef1!")

	for round := 0; round < 2; round++ {
		for i := 0; i < 4; i++ {
			_, err := f.engine.LoginWithPassword(ctx, "t1", "u@x.io", "Wrong123!", "")
			if !errors.Is(err, tenantauth.ErrInvalidCredentials) {
				t.Fatalf("round %d attempt %d: %v", round, i, err)
			}
		}
		f.login(t, "t1", "u@x.io", "Abcdef1!")
	}
}

func TestEmailVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "t1", "u@x.io", "Abcdef1!")
	token := f.notifier.lastVerification(t).Token

	_, err := f.engine.ConfirmEmailVerification(ctx, "t2", token)
	if !errors.Is(err, tenantauth.ErrInvalidToken) {
		t.Fatalf("token of t1 must not verify in t2, got %v", err)
	}

	verified, err := f.engine.ConfirmEmailVerification(ctx, "t1", token)
	if err != nil {
		t.Fatalf("ConfirmEmailVerification error: %v", err)
	}
	if verified.ID != u.ID || !verified.IsVerified {
		t.Fatalf("unexpected user: %+v", verified)
	}

	_, err = f.engine.ConfirmEmailVerification(ctx, "t1", token)
	if !errors.Is(err, tenantauth.ErrInvalidToken) {
		t.Fatalf("reused token must fail, got %v", err)
	}
}

func TestPasswordResetClearsLockoutAndSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "t1", "u@x.io", "Abcdef1!")
	before := f.login(t, "t1", "u@x.io", "Abcdef1!")

	for i := 0; i < 5; i++ {
		_, _ = f.engine.LoginWithPassword(ctx, "t1", "u@x.io", "Wrong123!", "")
	}

	if err := f.engine.RequestPasswordReset(ctx, "t1", "u@x.io", "10.0.0.2"); err != nil {
		t.Fatalf("RequestPasswordReset error: %v", err)
	}
	token := f.notifier.lastReset(t).Token

	err := f.engine.ConfirmPasswordReset(ctx, "t1", token, "weak")
	wantKind(t, err, tenantauth.KindValidation)

	if err := f.engine.ConfirmPasswordReset(ctx, "t1", token, "Newpass9#"); err != nil {
		t.Fatalf("ConfirmPasswordReset error: %v", err)
	}

	if _, err := f.engine.VerifyBearer(ctx, before.Token); !errors.Is(err, tenantauth.ErrInvalidToken) {
		t.Fatalf("sessions must end after a reset, got %v", err)
	}
	f.login(t, "t1", "u@x.io", "Newpass9#")

	err = f.engine.ConfirmPasswordReset(ctx, "t1", token, "Another9#")
	if !errors.Is(err, tenantauth.ErrInvalidToken) {
		t.Fatalf("reset token must be single-use, got %v", err)
	}
}

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.RequestPasswordReset(context.Background(), "t1", "ghost@x.io", ""); err != nil {
		t.Fatalf("unknown email must not error, got %v", err)
	}
	if f.notifier.resetCount() != 0 {
		t.Fatal("no reset message may be sent for unknown emails")
	}
}

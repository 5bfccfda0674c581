package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/tenantauth/session"
)

var (
	errNotReady     = errors.New("not ready")
	errInvalidCreds = errors.New("invalid credentials")
	errLocked       = errors.New("locked")
	errRateLimited  = errors.New("rate limited")
	errNotFound     = errors.New("not found")
	errInternal     = errors.New("internal")
)

type loginHarness struct {
	user      UserRecord
	now       time.Time
	failures  int
	successes int
	burned    int
	upgraded  string
	rate      error
	opened    []session.Origin
	metrics   map[int]int
}

func newLoginHarness() *loginHarness {
	return &loginHarness{
		user: UserRecord{
			ID:           "u1",
			TenantID:     "t1",
			Email:        "u@x.io",
			PasswordHash: "hash:Abcdef1!",
		},
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		metrics: map[int]int{},
	}
}

func (h *loginHarness) deps() LoginDeps {
	return LoginDeps{
		UpgradeOnLogin: true,
		Now:            func() time.Time { return h.now },
		CheckRate: func(context.Context, string, string) error {
			return h.rate
		},
		FindUserByEmail: func(_ context.Context, tenantID, email string) (UserRecord, error) {
			if tenantID != h.user.TenantID || email != h.user.Email {
				return UserRecord{}, errNotFound
			}
			return h.user, nil
		},
		RecordFailure: func(_ context.Context, _ string, now time.Time) (UserRecord, error) {
			h.failures++
			h.user.LoginAttempts++
			if h.user.LoginAttempts >= 5 {
				until := now.Add(15 * time.Minute)
				h.user.LockedUntil = &until
			}
			return h.user, nil
		},
		RecordSuccess: func(context.Context, string, time.Time) error {
			h.successes++
			h.user.LoginAttempts = 0
			h.user.LockedUntil = nil
			return nil
		},
		UpdatePassword: func(_ context.Context, _ string, hash string) error {
			h.upgraded = hash
			return nil
		},
		IsLocked: func(lockedUntil *time.Time, now time.Time) bool {
			return lockedUntil != nil && lockedUntil.After(now)
		},
		VerifyPassword: func(password, hash string) (bool, error) {
			if hash == "corrupt" {
				return false, errors.New("bad hash")
			}
			return hash == "hash:"+password || hash == "old:"+password, nil
		},
		BurnPassword: func(string) { h.burned++ },
		PasswordNeedsUpgrade: func(hash string) (bool, error) {
			return hash[:4] == "old:", nil
		},
		HashPassword: func(password string) (string, error) {
			return "hash:" + password, nil
		},
		OpenSession: func(_ context.Context, user UserRecord, origin session.Origin, _ string) (*SessionGrant, error) {
			h.opened = append(h.opened, origin)
			return &SessionGrant{User: user, SessionID: "s1", Token: "tok"}, nil
		},
		MetricInc: func(id int) { h.metrics[id]++ },
		Metrics: LoginMetrics{
			LoginSuccess:     1,
			LoginFailure:     2,
			LoginLocked:      3,
			LoginRateLimited: 4,
			LockoutApplied:   5,
			PasswordUpgraded: 6,
		},
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errInvalidCreds,
			AccountLocked:      errLocked,
			RateLimited:        errRateLimited,
			UserNotFound:       errNotFound,
			Internal:           errInternal,
		},
	}
}

func login(h *loginHarness, email, password string) (*SessionGrant, error) {
	return RunLoginWithPassword(context.Background(), LoginInput{
		TenantID: "t1",
		Email:    email,
		Password: password,
		ClientIP: "10.0.0.1",
	}, h.deps())
}

func TestLoginSuccessOpensPasswordSession(t *testing.T) {
	h := newLoginHarness()
	grant, err := login(h, " U@X.IO ", "Abcdef1!")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if grant.SessionID != "s1" || len(h.opened) != 1 || h.opened[0] != session.OriginPassword {
		t.Fatalf("unexpected grant %+v, origins %v", grant, h.opened)
	}
	if h.successes != 1 || h.metrics[1] != 1 {
		t.Fatalf("success not recorded: %d %v", h.successes, h.metrics)
	}
}

func TestLoginUnknownEmailDoesNotCount(t *testing.T) {
	h := newLoginHarness()
	_, err := login(h, "ghost@x.io", "Abcdef1!")
	if !errors.Is(err, errInvalidCreds) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if h.failures != 0 || h.burned != 1 {
		t.Fatalf("unknown email: failures=%d burned=%d", h.failures, h.burned)
	}
}

func TestLoginLocksOnFifthFailure(t *testing.T) {
	h := newLoginHarness()
	for i := 0; i < 5; i++ {
		if _, err := login(h, "u@x.io", "wrong"); !errors.Is(err, errInvalidCreds) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if h.metrics[5] != 1 {
		t.Fatalf("lockout applied %d times", h.metrics[5])
	}

	if _, err := login(h, "u@x.io", "Abcdef1!"); !errors.Is(err, errLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	if h.failures != 5 {
		t.Fatalf("a locked attempt must not count, failures=%d", h.failures)
	}

	h.now = h.now.Add(15*time.Minute + time.Second)
	if _, err := login(h, "u@x.io", "Abcdef1!"); err != nil {
		t.Fatalf("login after lock elapsed: %v", err)
	}
}

func TestLoginRateLimitedBeforeLookup(t *testing.T) {
	h := newLoginHarness()
	h.rate = errRateLimited
	if _, err := login(h, "u@x.io", "Abcdef1!"); !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if h.metrics[4] != 1 || h.successes != 0 {
		t.Fatalf("unexpected state: %v successes=%d", h.metrics, h.successes)
	}
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	h := newLoginHarness()
	h.user.PasswordHash = "old:Abcdef1!"
	if _, err := login(h, "u@x.io", "Abcdef1!"); err != nil {
		t.Fatalf("login error: %v", err)
	}
	if h.upgraded != "hash:Abcdef1!" || h.metrics[6] != 1 {
		t.Fatalf("hash not upgraded: %q %v", h.upgraded, h.metrics)
	}
}

func TestLoginCorruptHashIsInternal(t *testing.T) {
	h := newLoginHarness()
	h.user.PasswordHash = "corrupt"
	if _, err := login(h, "u@x.io", "Abcdef1!"); !errors.Is(err, errInternal) {
		t.Fatalf("expected internal, got %v", err)
	}
	if h.failures != 0 {
		t.Fatal("a hash error must not count as a failure")
	}
}

func TestLoginCanceledContextStopsBeforeMutation(t *testing.T) {
	h := newLoginHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunLoginWithPassword(ctx, LoginInput{TenantID: "t1", Email: "u@x.io", Password: "wrong"}, h.deps())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if h.failures != 0 || h.successes != 0 {
		t.Fatalf("canceled login mutated state: failures=%d successes=%d", h.failures, h.successes)
	}
}

func TestLoginMissingDepsIsNotReady(t *testing.T) {
	if _, err := RunLoginWithPassword(context.Background(), LoginInput{}, LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

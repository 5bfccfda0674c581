package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/tenantauth/session"
)

var errSessionGone = errors.New("session not found")

func validateDeps(claims BearerClaims, sess *session.Session, now time.Time) ValidateDeps {
	return ValidateDeps{
		Now: func() time.Time { return now },
		VerifyToken: func(_ context.Context, token string) (BearerClaims, error) {
			if token != "good" {
				return BearerClaims{}, errToken
			}
			return claims, nil
		},
		GetSession: func(context.Context, string) (*session.Session, error) {
			if sess == nil {
				return nil, errSessionGone
			}
			return sess, nil
		},
		Errors: ValidateErrors{
			EngineNotReady:  errNotReady,
			InvalidToken:    errToken,
			SessionNotFound: errSessionGone,
		},
	}
}

func TestVerifyBearer(t *testing.T) {
	now := time.Unix(1700000000, 0)
	claims := BearerClaims{UserID: "u1", TenantID: "t1", SessionID: "s1"}
	live := &session.Session{SessionID: "s1", UserID: "u1", TenantID: "t1", ExpiresAt: now.Add(time.Hour).UnixMilli()}
	ctx := context.Background()

	if got, err := RunVerifyBearer(ctx, "good", "", validateDeps(claims, live, now)); err != nil || got.UserID != "u1" {
		t.Fatalf("VerifyBearer = %+v, %v", got, err)
	}
	if _, err := RunVerifyBearer(ctx, "good", "t1", validateDeps(claims, live, now)); err != nil {
		t.Fatalf("matching tenant rejected: %v", err)
	}

	cases := []struct {
		name   string
		token  string
		tenant string
		sess   *session.Session
		now    time.Time
	}{
		{"bad token", "bad", "", live, now},
		{"other tenant", "good", "t2", live, now},
		{"missing session", "good", "", nil, now},
		{"expired session", "good", "", live, now.Add(time.Hour)},
		{"session of another user", "good", "", &session.Session{UserID: "u2", TenantID: "t1", ExpiresAt: live.ExpiresAt}, now},
		{"session of another tenant", "good", "", &session.Session{UserID: "u1", TenantID: "t2", ExpiresAt: live.ExpiresAt}, now},
	}
	for _, tc := range cases {
		_, err := RunVerifyBearer(ctx, tc.token, tc.tenant, validateDeps(claims, tc.sess, tc.now))
		if !errors.Is(err, errToken) {
			t.Fatalf("%s: expected invalid token, got %v", tc.name, err)
		}
	}
}

func TestVerifyBearerPassesStorageErrors(t *testing.T) {
	storage := errors.New("redis down")
	deps := validateDeps(BearerClaims{SessionID: "s1"}, nil, time.Now())
	deps.GetSession = func(context.Context, string) (*session.Session, error) { return nil, storage }
	if _, err := RunVerifyBearer(context.Background(), "good", "", deps); !errors.Is(err, storage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

type logoutHarness struct {
	revoked   map[string]time.Duration
	deleted   []string
	now       time.Time
	claims    BearerClaims
	expired   bool
	sessions  int
	userFound bool
}

var errExpired = errors.New("token expired")

func (h *logoutHarness) deps() LogoutDeps {
	return LogoutDeps{
		Now: func() time.Time { return h.now },
		ParseToken: func(token string) (BearerClaims, error) {
			if h.expired {
				return BearerClaims{}, errExpired
			}
			if token != "tok" {
				return BearerClaims{}, errToken
			}
			return h.claims, nil
		},
		Fingerprint: func(token string) (string, error) { return "fp-" + token, nil },
		RevokeToken: func(_ context.Context, _ string, fp string, ttl time.Duration) error {
			h.revoked[fp] = ttl
			return nil
		},
		DeleteSession: func(_ context.Context, id string) error {
			h.deleted = append(h.deleted, id)
			return nil
		},
		DeleteAllSessions: func(context.Context, string, string) (int, error) {
			return h.sessions, nil
		},
		FindUserByID: func(_ context.Context, id string) (UserRecord, error) {
			if !h.userFound {
				return UserRecord{}, errNotFound
			}
			return UserRecord{ID: id, TenantID: "t1"}, nil
		},
		Errors: LogoutErrors{
			EngineNotReady: errNotReady,
			InvalidToken:   errToken,
			TokenExpired:   errExpired,
			UserNotFound:   errNotFound,
		},
	}
}

func TestLogout(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h := &logoutHarness{
		revoked: map[string]time.Duration{},
		now:     now,
		claims:  BearerClaims{UserID: "u1", TenantID: "t1", SessionID: "s1", ExpiresAt: now.Add(10 * time.Minute)},
	}
	ctx := context.Background()

	if err := RunLogout(ctx, "u1", "tok", h.deps()); err != nil {
		t.Fatalf("logout error: %v", err)
	}
	if h.revoked["fp-tok"] != 10*time.Minute || len(h.deleted) != 1 || h.deleted[0] != "s1" {
		t.Fatalf("revoked=%v deleted=%v", h.revoked, h.deleted)
	}

	if err := RunLogout(ctx, "u2", "tok", h.deps()); !errors.Is(err, errToken) {
		t.Fatalf("foreign token: expected invalid token, got %v", err)
	}
	if err := RunLogout(ctx, "", "junk", h.deps()); !errors.Is(err, errToken) {
		t.Fatalf("junk token: expected invalid token, got %v", err)
	}

	h.expired = true
	if err := RunLogout(ctx, "u1", "tok", h.deps()); err != nil {
		t.Fatalf("expired token must be a no-op, got %v", err)
	}
	if len(h.deleted) != 1 {
		t.Fatal("expired token must not touch sessions")
	}
}

func TestLogoutAll(t *testing.T) {
	h := &logoutHarness{revoked: map[string]time.Duration{}, sessions: 3, userFound: true}
	n, err := RunLogoutAll(context.Background(), "u1", h.deps())
	if err != nil || n != 3 {
		t.Fatalf("LogoutAll = %d, %v", n, err)
	}

	h.userFound = false
	if _, err := RunLogoutAll(context.Background(), "u1", h.deps()); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOpenSessionDeletesOrphanOnTokenFailure(t *testing.T) {
	var deleted string
	issueErr := errors.New("sign failed")
	deps := SessionDeps{
		CreateSession: func(_ context.Context, in session.CreateInput) (*session.Session, error) {
			return &session.Session{SessionID: "s9", UserID: in.UserID, TenantID: in.TenantID, Origin: in.Origin}, nil
		},
		DeleteSession: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
		IssueToken: func(*session.Session) (string, time.Time, error) {
			return "", time.Time{}, issueErr
		},
		EngineNotReady: errNotReady,
	}

	_, err := RunOpenSession(context.Background(), UserRecord{ID: "u1", TenantID: "t1"}, session.OriginPassword, "", deps)
	if !errors.Is(err, issueErr) || deleted != "s9" {
		t.Fatalf("err=%v deleted=%q", err, deleted)
	}
}

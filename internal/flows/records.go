package flows

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// UserRecord is the flow-local user model.
type UserRecord struct {
	ID            string
	TenantID      string
	Email         string
	PasswordHash  string
	WalletAddress string
	DisplayName   string
	IsVerified    bool
	IsWalletOnly  bool
	LoginAttempts int
	LockedUntil   *time.Time
}

// NewUserRecord is the flow-local insert payload.
type NewUserRecord struct {
	TenantID      string
	Email         string
	PasswordHash  string
	WalletAddress string
	DisplayName   string
	IsVerified    bool
	IsWalletOnly  bool
}

// SessionGrant is returned by every flow that opens a session.
type SessionGrant struct {
	User      UserRecord
	SessionID string
	Token     string
	ExpiresAt time.Time
}

// BearerClaims is the verified content of a bearer token.
type BearerClaims struct {
	UserID        string
	TenantID      string
	SessionID     string
	WalletAddress string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// AuditFunc matches the Engine's audit emitter.
type AuditFunc func(ctx context.Context, event string, success bool, userID, tenantID, sessionID string, err error, metadata func() map[string]string)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lower-cases email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func noopMetric(int) {}

func noopAudit(context.Context, string, bool, string, string, string, error, func() map[string]string) {
}

func noopWarn(string, ...any) {}

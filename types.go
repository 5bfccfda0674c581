package tenantauth

import (
	"context"
	"time"
)

// User is the persisted account record. Email is empty for wallet-only users and
// WalletAddress is empty for users that never linked a wallet. Addresses are
// always stored in lower-case 0x form.
type User struct {
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
	LastLoginAt   *time.Time
	CreatedAt     time.Time
}

// Public strips credential material from the record.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		TenantID:      u.TenantID,
		Email:         u.Email,
		WalletAddress: u.WalletAddress,
		DisplayName:   u.DisplayName,
		IsVerified:    u.IsVerified,
		IsWalletOnly:  u.IsWalletOnly,
	}
}

// PublicUser is the user view returned to callers.
type PublicUser struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	Email         string `json:"email,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
	DisplayName   string `json:"displayName"`
	IsVerified    bool   `json:"isVerified"`
	IsWalletOnly  bool   `json:"isWalletOnly"`
}

// Tenant is an isolated namespace of users. Exactly one tenant carries the
// DefaultTenantSlug.
type Tenant struct {
	ID       string
	Slug     string
	Name     string
	Domain   string
	Features []string
	Active   bool
}

// HasFeature reports whether name is enabled for the tenant.
func (t Tenant) HasFeature(name string) bool {
	for _, f := range t.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Label is the value embedded in wallet challenge messages.
func (t Tenant) Label() string {
	if t.Slug != "" {
		return t.Slug
	}
	return t.ID
}

const (
	// DefaultTenantSlug is the slug of the tenant used when a request names none.
	DefaultTenantSlug = "default"
	// FeaturePasswordAuth gates email and password operations when tenancy features are enforced.
	FeaturePasswordAuth = "password_auth"
	// FeatureWalletAuth gates wallet operations when tenancy features are enforced.
	FeatureWalletAuth = "wallet_auth"
)

// CreateUserInput is the insert payload for [UserRepository.Create].
type CreateUserInput struct {
	TenantID      string
	Email         string
	PasswordHash  string
	WalletAddress string
	DisplayName   string
	IsVerified    bool
	IsWalletOnly  bool
	CreatedAt     time.Time
}

// UserPatch lists the mutable fields of a user. Nil pointers are left unchanged.
type UserPatch struct {
	PasswordHash  *string
	WalletAddress *string
	IsVerified    *bool
	IsWalletOnly  *bool
	LastLoginAt   *time.Time
	ClearLockout  bool
}

// LockoutRule tells [UserRepository.IncrementFailed] when to apply a lock.
// A stored lock that already elapsed at Now restarts the counter at one.
type LockoutRule struct {
	Threshold int
	LockUntil time.Time
	Now       time.Time
}

// UserRepository is the relational port for user records. Every method must
// honor ctx cancellation. Missing rows are reported as [ErrNotFound], uniqueness
// violations as [ErrDuplicateEmail] or [ErrDuplicateWallet].
type UserRepository interface {
	FindByEmail(ctx context.Context, tenantID, email string) (User, error)
	FindByWallet(ctx context.Context, tenantID, address string) (User, error)
	FindByID(ctx context.Context, userID string) (User, error)
	Create(ctx context.Context, input CreateUserInput) (User, error)
	Update(ctx context.Context, userID string, patch UserPatch) (User, error)
	// IncrementFailed atomically bumps loginAttempts and sets lockedUntil when the
	// new count reaches the threshold.
	IncrementFailed(ctx context.Context, userID string, rule LockoutRule) (User, error)
	// ResetFailed clears loginAttempts and lockedUntil and records the login time.
	ResetFailed(ctx context.Context, userID string, at time.Time) error
}

// TenantRepository resolves tenants by id, slug or custom domain.
type TenantRepository interface {
	FindByID(ctx context.Context, id string) (Tenant, error)
	FindBySlug(ctx context.Context, slug string) (Tenant, error)
	FindByDomain(ctx context.Context, domain string) (Tenant, error)
}

// VerificationMessage is handed to the notifier after a password registration.
type VerificationMessage struct {
	TenantID  string `json:"tenantId"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// PasswordResetMessage is handed to the notifier when a reset is requested.
type PasswordResetMessage struct {
	TenantID  string `json:"tenantId"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// EmailNotifier delivers out-of-band tokens. Delivery failures are logged and
// never fail the calling operation.
type EmailNotifier interface {
	SendVerification(ctx context.Context, msg VerificationMessage) error
	SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error
}

// SignatureVerifier recovers the signer address of an EIP-191 personal message.
type SignatureVerifier interface {
	Recover(message, signature string) (string, error)
}

// Clock is the time source for every expiry decision.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// AuthResult is returned by every operation that opens a session.
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	SessionID string     `json:"-"`
	User      PublicUser `json:"user"`
}

// WalletChallenge is the message a wallet must sign to log in.
type WalletChallenge struct {
	Message       string    `json:"message"`
	Nonce         string    `json:"nonce"`
	ExpiresAt     time.Time `json:"expiresAt"`
	WalletAddress string    `json:"walletAddress"`
	TenantID      string    `json:"tenantId"`
}

// Identity is the verified content of a bearer token.
type Identity struct {
	UserID        string    `json:"userId"`
	TenantID      string    `json:"tenantId"`
	SessionID     string    `json:"sessionId"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// SessionInfo is a read-only view of a live session.
type SessionInfo struct {
	SessionID     string
	UserID        string
	TenantID      string
	WalletAddress string
	Origin        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// HealthStatus reports KV availability.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

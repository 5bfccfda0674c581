// Package memory provides process-local user and tenant repositories for
// tests, demos and the load generator. Data does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/storage"
)

type tenantKey struct {
	tenantID string
	value    string
}

// UserStore is a map-backed [tenantauth.UserRepository]. All methods are safe
// for concurrent use; counter updates are serialized by one mutex.
type UserStore struct {
	mu       sync.RWMutex
	users    map[string]tenantauth.User
	byEmail  map[tenantKey]string
	byWallet map[tenantKey]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:    make(map[string]tenantauth.User),
		byEmail:  make(map[tenantKey]string),
		byWallet: make(map[tenantKey]string),
	}
}

// Len reports the number of stored users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *UserStore) FindByEmail(ctx context.Context, tenantID, email string) (tenantauth.User, error) {
	if err := ctx.Err(); err != nil {
		return tenantauth.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[tenantKey{tenantID, email}]
	if !ok {
		return tenantauth.User{}, tenantauth.ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *UserStore) FindByWallet(ctx context.Context, tenantID, address string) (tenantauth.User, error) {
	if err := ctx.Err(); err != nil {
		return tenantauth.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byWallet[tenantKey{tenantID, address}]
	if !ok {
		return tenantauth.User{}, tenantauth.ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *UserStore) FindByID(ctx context.Context, userID string) (tenantauth.User, error) {
	if err := ctx.Err(); err != nil {
		return tenantauth.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return tenantauth.User{}, tenantauth.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *UserStore) Create(ctx context.Context, in tenantauth.CreateUserInput) (tenantauth.User, error) {
	if err := ctx.Err(); err != nil {
		return tenantauth.User{}, err
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Email != "" {
		if _, taken := s.byEmail[tenantKey{in.TenantID, in.Email}]; taken {
			return tenantauth.User{}, tenantauth.ErrDuplicateEmail
		}
	}
	if in.WalletAddress != "" {
		if _, taken := s.byWallet[tenantKey{in.TenantID, in.WalletAddress}]; taken {
			return tenantauth.User{}, tenantauth.ErrDuplicateWallet
		}
	}

	u := tenantauth.User{
		ID:            storage.NewID(createdAt),
		TenantID:      in.TenantID,
		Email:         in.Email,
		PasswordHash:  in.PasswordHash,
		WalletAddress: in.WalletAddress,
		DisplayName:   in.DisplayName,
		IsVerified:    in.IsVerified,
		IsWalletOnly:  in.IsWalletOnly,
		CreatedAt:     createdAt,
	}
	s.users[u.ID] = u
	if u.Email != "" {
		s.byEmail[tenantKey{u.TenantID, u.Email}] = u.ID
	}
	if u.WalletAddress != "" {
		s.byWallet[tenantKey{u.TenantID, u.WalletAddress}] = u.ID
	}
	return copyUser(u), nil
}

func (s *UserStore) Update(ctx context.Context, userID string, patch tenantauth.UserPatch) (tenantauth.User, error) {
	if err := ctx.Err(); err != nil {
		return tenantauth.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return tenantauth.User{}, tenantauth.ErrNotFound
	}

	if patch.WalletAddress != nil && *patch.WalletAddress != u.WalletAddress {
		next := *patch.WalletAddress
		if next != "" {
			if owner, taken := s.byWallet[tenantKey{u.TenantID, next}]; taken && owner != u.ID {
				return tenantauth.User{}, tenantauth.ErrDuplicateWallet
			}
		}
		if u.WalletAddress != "" {
			delete(s.byWallet, tenantKey{u.TenantID, u.WalletAddress})
		}
		if next != "" {
			s.byWallet[tenantKey{u.TenantID, next}] = u.ID
		}
		u.WalletAddress = next
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.IsVerified != nil {
		u.IsVerified = *patch.IsVerified
	}
	if patch.IsWalletOnly != nil {
		u.IsWalletOnly = *patch.IsWalletOnly
	}
	if patch.LastLoginAt != nil {
		at := *patch.LastLoginAt
		u.LastLoginAt = &at
	}
	if patch.ClearLockout {
		u.LoginAttempts = 0
		u.LockedUntil = nil
	}

	s.users[userID] = u
	return copyUser(u), nil
}

func (s *UserStore) IncrementFailed(ctx context.Context, userID string, rule tenantauth.LockoutRule) (tenantauth.User, error) {
	if err := ctx.Err(); err != nil {
		return tenantauth.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return tenantauth.User{}, tenantauth.ErrNotFound
	}

	if u.LockedUntil != nil && !u.LockedUntil.After(rule.Now) {
		u.LoginAttempts = 1
		u.LockedUntil = nil
	} else {
		u.LoginAttempts++
	}
	if rule.Threshold > 0 && u.LoginAttempts >= rule.Threshold {
		until := rule.LockUntil
		u.LockedUntil = &until
	}

	s.users[userID] = u
	return copyUser(u), nil
}

func (s *UserStore) ResetFailed(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return tenantauth.ErrNotFound
	}
	u.LoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	s.users[userID] = u
	return nil
}

func copyUser(u tenantauth.User) tenantauth.User {
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		u.LockedUntil = &t
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return u
}

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStoreUniquenessIsPerTenant(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	a, err := s.Create(ctx, tenantauth.CreateUserInput{TenantID: "t1", Email: "u@x.io", PasswordHash: "h"})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)

	_, err = s.Create(ctx, tenantauth.CreateUserInput{TenantID: "t1", Email: "u@x.io"})
	require.ErrorIs(t, err, tenantauth.ErrDuplicateEmail)

	b, err := s.Create(ctx, tenantauth.CreateUserInput{TenantID: "t2", Email: "u@x.io"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := s.FindByEmail(ctx, "t2", "u@x.io")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = s.FindByEmail(ctx, "t3", "u@x.io")
	require.ErrorIs(t, err, tenantauth.ErrNotFound)
}

func TestUserStoreWalletRebind(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	const wallet = "0x52908400098527886e0f7030069857d2e4169ee7"

	owner, err := s.Create(ctx, tenantauth.CreateUserInput{TenantID: "t1", WalletAddress: wallet, IsWalletOnly: true})
	require.NoError(t, err)
	other, err := s.Create(ctx, tenantauth.CreateUserInput{TenantID: "t1", Email: "o@x.io"})
	require.NoError(t, err)

	addr := wallet
	_, err = s.Update(ctx, other.ID, tenantauth.UserPatch{WalletAddress: &addr})
	require.ErrorIs(t, err, tenantauth.ErrDuplicateWallet)

	_, err = s.Create(ctx, tenantauth.CreateUserInput{TenantID: "t1", WalletAddress: wallet})
	require.ErrorIs(t, err, tenantauth.ErrDuplicateWallet)

	found, err := s.FindByWallet(ctx, "t1", wallet)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, found.ID)
}

func TestUserStoreIncrementFailedLocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	u, err := s.Create(ctx, tenantauth.CreateUserInput{TenantID: "t1", Email: "u@x.io"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rule := tenantauth.LockoutRule{Threshold: 3, LockUntil: now.Add(15 * time.Minute), Now: now}

	for i := 1; i <= 2; i++ {
		got, err := s.IncrementFailed(ctx, u.ID, rule)
		require.NoError(t, err)
		assert.Equal(t, i, got.LoginAttempts)
		assert.Nil(t, got.LockedUntil)
	}
	got, err := s.IncrementFailed(ctx, u.ID, rule)
	require.NoError(t, err)
	require.NotNil(t, got.LockedUntil)
	assert.True(t, got.LockedUntil.Equal(rule.LockUntil))

	later := now.Add(16 * time.Minute)
	got, err = s.IncrementFailed(ctx, u.ID, tenantauth.LockoutRule{Threshold: 3, LockUntil: later.Add(15 * time.Minute), Now: later})
	require.NoError(t, err)
	assert.Equal(t, 1, got.LoginAttempts)
	assert.Nil(t, got.LockedUntil)

	require.NoError(t, s.ResetFailed(ctx, u.ID, later))
	got, err = s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LoginAttempts)
	require.NotNil(t, got.LastLoginAt)
}

func TestUserStoreConcurrentFailuresAreCounted(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	u, err := s.Create(ctx, tenantauth.CreateUserInput{TenantID: "t1", Email: "u@x.io"})
	require.NoError(t, err)

	now := time.Now()
	rule := tenantauth.LockoutRule{Threshold: 1000, LockUntil: now.Add(time.Minute), Now: now}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrementFailed(ctx, u.ID, rule)
		}()
	}
	wg.Wait()

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.LoginAttempts)
}

func TestUserStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	u, err := s.Create(ctx, tenantauth.CreateUserInput{TenantID: "t1", Email: "u@x.io"})
	require.NoError(t, err)
	_, err = s.IncrementFailed(ctx, u.ID, tenantauth.LockoutRule{Threshold: 1, LockUntil: time.Now().Add(time.Hour), Now: time.Now()})
	require.NoError(t, err)

	a, _ := s.FindByID(ctx, u.ID)
	*a.LockedUntil = time.Time{}
	b, _ := s.FindByID(ctx, u.ID)
	assert.False(t, b.LockedUntil.IsZero())
}

func TestUserStoreHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewUserStore().FindByID(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
}

func TestTenantStoreLookups(t *testing.T) {
	ctx := context.Background()
	s := NewTenantStore()

	def, err := s.FindBySlug(ctx, "DEFAULT")
	require.NoError(t, err)
	assert.True(t, def.Active)
	assert.True(t, def.HasFeature(tenantauth.FeatureWalletAuth))

	acme, err := s.Put(tenantauth.Tenant{Slug: "Acme", Domain: "Auth.Acme.io", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "acme", acme.Slug)

	byDomain, err := s.FindByDomain(ctx, "auth.acme.io")
	require.NoError(t, err)
	assert.Equal(t, acme.ID, byDomain.ID)

	byID, err := s.FindByID(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", byID.Slug)

	_, err = s.Put(tenantauth.Tenant{Slug: "acme"})
	require.ErrorIs(t, err, ErrTenantConflict)

	_, err = s.FindByDomain(ctx, "nope.io")
	require.ErrorIs(t, err, tenantauth.ErrNotFound)
}

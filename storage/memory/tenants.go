package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/storage"
)

// ErrTenantConflict reports a tenant whose slug or domain is already used.
var ErrTenantConflict = errors.New("tenant slug or domain already registered")

// TenantStore is a map-backed [tenantauth.TenantRepository].
type TenantStore struct {
	mu       sync.RWMutex
	byID     map[string]tenantauth.Tenant
	bySlug   map[string]string
	byDomain map[string]string
}

// NewTenantStore returns a store holding only the default tenant, active and
// with every authentication feature enabled. Its ID equals its slug, matching
// the seed row of the SQL schemas.
func NewTenantStore() *TenantStore {
	s := &TenantStore{
		byID:     make(map[string]tenantauth.Tenant),
		bySlug:   make(map[string]string),
		byDomain: make(map[string]string),
	}
	_, _ = s.Put(tenantauth.Tenant{
		ID:       tenantauth.DefaultTenantSlug,
		Slug:     tenantauth.DefaultTenantSlug,
		Name:     "Default",
		Features: []string{tenantauth.FeaturePasswordAuth, tenantauth.FeatureWalletAuth},
		Active:   true,
	})
	return s
}

// Put inserts t, or replaces the tenant with the same ID. An empty ID is
// assigned a new ULID.
func (s *TenantStore) Put(t tenantauth.Tenant) (tenantauth.Tenant, error) {
	t.Slug = storage.NormalizeSlug(t.Slug)
	t.Domain = storage.NormalizeSlug(t.Domain)
	if t.ID == "" {
		t.ID = storage.NewID(time.Now())
	}
	if t.Slug == "" {
		t.Slug = t.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.bySlug[t.Slug]; ok && owner != t.ID {
		return tenantauth.Tenant{}, ErrTenantConflict
	}
	if t.Domain != "" {
		if owner, ok := s.byDomain[t.Domain]; ok && owner != t.ID {
			return tenantauth.Tenant{}, ErrTenantConflict
		}
	}

	if prev, ok := s.byID[t.ID]; ok {
		delete(s.bySlug, prev.Slug)
		if prev.Domain != "" {
			delete(s.byDomain, prev.Domain)
		}
	}
	t.Features = append([]string(nil), t.Features...)
	s.byID[t.ID] = t
	s.bySlug[t.Slug] = t.ID
	if t.Domain != "" {
		s.byDomain[t.Domain] = t.ID
	}
	return t, nil
}

func (s *TenantStore) FindByID(ctx context.Context, id string) (tenantauth.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return tenantauth.Tenant{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return tenantauth.Tenant{}, tenantauth.ErrNotFound
	}
	return t, nil
}

func (s *TenantStore) FindBySlug(ctx context.Context, slug string) (tenantauth.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return tenantauth.Tenant{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[storage.NormalizeSlug(slug)]
	if !ok {
		return tenantauth.Tenant{}, tenantauth.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *TenantStore) FindByDomain(ctx context.Context, domain string) (tenantauth.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return tenantauth.Tenant{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDomain[storage.NormalizeSlug(domain)]
	if !ok {
		return tenantauth.Tenant{}, tenantauth.ErrNotFound
	}
	return s.byID[id], nil
}

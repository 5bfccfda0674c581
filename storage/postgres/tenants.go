package postgres

import (
	"context"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/storage"
	"github.com/jackc/pgx/v5"
)

const tenantColumns = `id, slug, name, domain, features, active`

// TenantRepository implements [tenantauth.TenantRepository].
type TenantRepository struct {
	db DB
}

func NewTenantRepository(db DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func scanTenant(row pgx.Row) (tenantauth.Tenant, error) {
	var (
		t      tenantauth.Tenant
		domain *string
	)
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &domain, &t.Features, &t.Active); err != nil {
		return tenantauth.Tenant{}, mapError(err)
	}
	t.Domain = deref(domain)
	return t, nil
}

func (r *TenantRepository) FindByID(ctx context.Context, id string) (tenantauth.Tenant, error) {
	return scanTenant(r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (tenantauth.Tenant, error) {
	return scanTenant(r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, storage.NormalizeSlug(slug)))
}

func (r *TenantRepository) FindByDomain(ctx context.Context, domain string) (tenantauth.Tenant, error) {
	return scanTenant(r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE domain = $1`, storage.NormalizeSlug(domain)))
}

// Upsert creates or updates a tenant by id. An empty id is assigned a new ULID.
func (r *TenantRepository) Upsert(ctx context.Context, t tenantauth.Tenant) (tenantauth.Tenant, error) {
	if t.ID == "" {
		t.ID = storage.NewID(time.Now())
	}
	if t.Features == nil {
		t.Features = []string{}
	}
	return scanTenant(r.db.QueryRow(ctx, `
		INSERT INTO tenants (id, slug, name, domain, features, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug, name = EXCLUDED.name, domain = EXCLUDED.domain,
			features = EXCLUDED.features, active = EXCLUDED.active
		RETURNING `+tenantColumns,
		t.ID, storage.NormalizeSlug(t.Slug), t.Name, nullable(storage.NormalizeSlug(t.Domain)), t.Features, t.Active,
	))
}

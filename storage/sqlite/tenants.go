package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/storage"
)

const tenantColumns = `id, slug, name, domain, features, active`

// TenantRepository implements [tenantauth.TenantRepository]. Features are kept
// as a comma separated list.
type TenantRepository struct {
	db *sql.DB
}

func scanTenant(row *sql.Row) (tenantauth.Tenant, error) {
	var (
		t        tenantauth.Tenant
		domain   sql.NullString
		features string
	)
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &domain, &features, &t.Active); err != nil {
		return tenantauth.Tenant{}, mapError(err)
	}
	t.Domain = domain.String
	t.Features = splitFeatures(features)
	return t, nil
}

func splitFeatures(s string) []string {
	out := []string{}
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (r *TenantRepository) FindByID(ctx context.Context, id string) (tenantauth.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id))
}

func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (tenantauth.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = ?`, storage.NormalizeSlug(slug)))
}

func (r *TenantRepository) FindByDomain(ctx context.Context, domain string) (tenantauth.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE domain = ?`, storage.NormalizeSlug(domain)))
}

// Upsert creates or updates a tenant by id. An empty id is assigned a new ULID.
func (r *TenantRepository) Upsert(ctx context.Context, t tenantauth.Tenant) (tenantauth.Tenant, error) {
	if t.ID == "" {
		t.ID = storage.NewID(time.Now())
	}
	return scanTenant(r.db.QueryRowContext(ctx, `
		INSERT INTO tenants (id, slug, name, domain, features, active)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6)
		ON CONFLICT (id) DO UPDATE SET
			slug = excluded.slug, name = excluded.name, domain = excluded.domain,
			features = excluded.features, active = excluded.active
		RETURNING `+tenantColumns,
		t.ID, storage.NormalizeSlug(t.Slug), t.Name, nullString(storage.NormalizeSlug(t.Domain)),
		strings.Join(t.Features, ","), t.Active,
	))
}

package tenantauth

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ResolveTenant picks the tenant of an inbound request: a tenant whose domain
// matches host wins, then the tenant named by header (id or slug), then the
// default tenant. Unknown or inactive tenants yield [ErrTenantAccessDenied].
func (e *Engine) ResolveTenant(ctx context.Context, host, header string) (Tenant, error) {
	if !e.ready() {
		return Tenant{}, ErrEngineNotReady
	}

	if e.tenants != nil {
		if domain := hostOnly(host); domain != "" {
			t, err := e.findTenant(ctx, func(ctx context.Context) (Tenant, error) {
				return e.tenants.FindByDomain(ctx, domain)
			})
			switch {
			case err == nil:
				return e.admitTenant(ctx, t, "")
			case !errors.Is(err, ErrNotFound):
				return Tenant{}, e.fail("resolve_tenant", "", "", err)
			}
		}
	}

	ref := strings.TrimSpace(header)
	if ref == "" {
		ref = e.config.Tenancy.DefaultSlug
	}
	t, err := e.resolveTenant(ctx, ref, "")
	if err != nil {
		return Tenant{}, e.fail("resolve_tenant", ref, "", err)
	}
	return t, nil
}

// resolveTenant looks ref up by id and then by slug and checks that the tenant
// may use feature. An empty ref means the default tenant.
func (e *Engine) resolveTenant(ctx context.Context, ref, feature string) (Tenant, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = e.config.Tenancy.DefaultSlug
	}
	if e.tenants == nil {
		return Tenant{ID: ref, Slug: ref, Active: true}, nil
	}

	t, err := e.findTenant(ctx, func(ctx context.Context) (Tenant, error) {
		return e.tenants.FindByID(ctx, ref)
	})
	if errors.Is(err, ErrNotFound) {
		t, err = e.findTenant(ctx, func(ctx context.Context) (Tenant, error) {
			return e.tenants.FindBySlug(ctx, strings.ToLower(ref))
		})
	}
	switch {
	case err == nil:
		return e.admitTenant(ctx, t, feature)
	case errors.Is(err, ErrNotFound):
		return Tenant{}, e.denyTenant(ctx, ref, "unknown", ErrTenantAccessDenied)
	default:
		return Tenant{}, err
	}
}

func (e *Engine) findTenant(ctx context.Context, find func(context.Context) (Tenant, error)) (Tenant, error) {
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	t, err := find(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, persistenceError(err)
	}
	return t, nil
}

func (e *Engine) admitTenant(ctx context.Context, t Tenant, feature string) (Tenant, error) {
	if !t.Active {
		return Tenant{}, e.denyTenant(ctx, t.ID, "inactive", ErrTenantAccessDenied)
	}
	if feature != "" && e.config.Tenancy.RequireFeatures && !t.HasFeature(feature) {
		return Tenant{}, e.denyTenant(ctx, t.ID, "feature:"+feature, ErrFeatureDisabled)
	}
	return t, nil
}

func (e *Engine) denyTenant(ctx context.Context, ref, reason string, err *AuthError) error {
	e.metrics.Inc(MetricTenantDenied)
	e.emitAudit(ctx, auditEventTenantDenied, false, "", ref, "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return err
}

func hostOnly(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

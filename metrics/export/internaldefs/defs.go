package internaldefs

import (
	"github.com/MrEthical07/tenantauth"
)

// Label is one fixed name/value pair on a series.
type Label struct {
	Name  string
	Value string
}

// Series binds an engine counter to its labels within a family.
type Series struct {
	ID     tenantauth.MetricID
	Labels []Label
}

// Family is one exported counter name. Outcomes of the same operation share
// a family and differ by label.
type Family struct {
	Name   string
	Help   string
	Series []Series
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   tenantauth.MetricID
	Name string
	Help string
}

func one(id tenantauth.MetricID) []Series { return []Series{{ID: id}} }

func by(name string, pairs ...any) []Series {
	out := make([]Series, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Series{
			ID:     pairs[i].(tenantauth.MetricID),
			Labels: []Label{{Name: name, Value: pairs[i+1].(string)}},
		})
	}
	return out
}

func login(method string, pairs ...any) []Series {
	out := by("outcome", pairs...)
	for i := range out {
		out[i].Labels = append([]Label{{Name: "method", Value: method}}, out[i].Labels...)
	}
	return out
}

// AuditDroppedName is the family for events the audit dispatcher dropped.
const AuditDroppedName = "tenantauth_audit_dropped_total"

// Families lists every counter family in export order.
var Families = []Family{
	{
		Name: "tenantauth_registrations_total",
		Help: "Password registration attempts by outcome.",
		Series: by("outcome",
			tenantauth.MetricRegisterSuccess, "success",
			tenantauth.MetricRegisterDuplicate, "duplicate",
			tenantauth.MetricRegisterRateLimited, "rate_limited",
		),
	},
	{
		Name: "tenantauth_logins_total",
		Help: "Login attempts by method and outcome.",
		Series: append(
			login("password",
				tenantauth.MetricLoginSuccess, "success",
				tenantauth.MetricLoginFailure, "failure",
				tenantauth.MetricLoginLocked, "locked",
				tenantauth.MetricLoginRateLimited, "rate_limited",
			),
			login("wallet",
				tenantauth.MetricWalletLoginSuccess, "success",
				tenantauth.MetricWalletLoginFailure, "failure",
				tenantauth.MetricWalletRateLimited, "rate_limited",
			)...,
		),
	},
	{Name: "tenantauth_lockouts_total", Help: "Accounts locked after consecutive failures.", Series: one(tenantauth.MetricLockoutApplied)},
	{Name: "tenantauth_password_upgrades_total", Help: "Password hashes rehashed on login.", Series: one(tenantauth.MetricPasswordUpgraded)},
	{Name: "tenantauth_wallet_challenges_total", Help: "Wallet challenges issued.", Series: one(tenantauth.MetricChallengeIssued)},
	{Name: "tenantauth_wallet_users_created_total", Help: "Wallet-only users created on first login.", Series: one(tenantauth.MetricWalletUserCreated)},
	{Name: "tenantauth_wallet_links_total", Help: "Wallets linked to existing users.", Series: one(tenantauth.MetricWalletLinked)},
	{Name: "tenantauth_sessions_created_total", Help: "Created sessions.", Series: one(tenantauth.MetricSessionCreated)},
	{Name: "tenantauth_sessions_invalidated_total", Help: "Password resets that ended live sessions.", Series: one(tenantauth.MetricSessionInvalidated)},
	{
		Name: "tenantauth_logouts_total",
		Help: "Logouts by scope.",
		Series: by("scope",
			tenantauth.MetricLogout, "session",
			tenantauth.MetricLogoutAll, "all",
		),
	},
	{
		Name: "tenantauth_bearer_verifications_total",
		Help: "Bearer token verifications by outcome.",
		Series: by("outcome",
			tenantauth.MetricValidateSuccess, "success",
			tenantauth.MetricValidateFailure, "failure",
		),
	},
	{Name: "tenantauth_rate_limit_denials_total", Help: "Requests denied by the per-IP limiter.", Series: one(tenantauth.MetricRateLimitHit)},
	{Name: "tenantauth_verification_tokens_issued_total", Help: "Email verification tokens issued.", Series: one(tenantauth.MetricVerificationIssued)},
	{Name: "tenantauth_email_verifications_total", Help: "Confirmed email verifications.", Series: one(tenantauth.MetricEmailVerificationSuccess)},
	{
		Name: "tenantauth_password_resets_total",
		Help: "Password reset activity by outcome.",
		Series: by("outcome",
			tenantauth.MetricPasswordResetRequest, "requested",
			tenantauth.MetricPasswordResetConfirmSuccess, "confirmed",
			tenantauth.MetricPasswordResetConfirmFailure, "failed",
			tenantauth.MetricPasswordResetRateLimited, "rate_limited",
		),
	},
	{Name: "tenantauth_tenant_denials_total", Help: "Requests rejected for an inactive tenant or disabled feature.", Series: one(tenantauth.MetricTenantDenied)},
	{
		Name: "tenantauth_persistence_failures_total",
		Help: "Storage calls that failed, by kind.",
		Series: by("kind",
			tenantauth.MetricPersistenceTimeout, "timeout",
			tenantauth.MetricPersistenceError, "error",
		),
	},
}

var HistogramDefs = []HistogramDef{
	{ID: tenantauth.MetricValidateLatency, Name: "tenantauth_bearer_verification_seconds", Help: "Bearer verification latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's latency
// buckets, formatted for the le label.
var HistogramBounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// Cumulative folds the engine's per-bucket counts into le-style running
// totals. Missing buckets count as zero.
func Cumulative(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}

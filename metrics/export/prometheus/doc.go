// Package prometheus renders engine counters in the Prometheus text exposition
// format without a client library or global registry. Outcomes of one
// operation share a family, for example
// tenantauth_logins_total{method="wallet",outcome="success"}.
package prometheus

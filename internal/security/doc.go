// Package security derives the posture report exposed by
// tenantauth.Engine.SecurityReport from raw configuration values.
//
// It holds no state and performs no I/O.
package security

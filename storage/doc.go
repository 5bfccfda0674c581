// Package storage holds helpers shared by the repository adapters in its
// sub-packages: memory, postgres and sqlite.
//
// Every adapter implements tenantauth.UserRepository and
// tenantauth.TenantRepository and reports missing rows as
// tenantauth.ErrNotFound and uniqueness violations as
// tenantauth.ErrDuplicateEmail or tenantauth.ErrDuplicateWallet.
package storage

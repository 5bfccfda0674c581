package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/storage"
)

const userColumns = `id, tenant_id, email, password_hash, wallet_address, display_name,
	is_verified, is_wallet_only, login_attempts, locked_until, last_login_at, created_at`

// UserRepository implements [tenantauth.UserRepository].
type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func scanUser(row *sql.Row) (tenantauth.User, error) {
	var (
		u                      tenantauth.User
		email, hash, wallet    sql.NullString
		lockedUntil, lastLogin sql.NullInt64
		createdAt              int64
	)
	err := row.Scan(
		&u.ID, &u.TenantID, &email, &hash, &wallet, &u.DisplayName,
		&u.IsVerified, &u.IsWalletOnly, &u.LoginAttempts, &lockedUntil, &lastLogin, &createdAt,
	)
	if err != nil {
		return tenantauth.User{}, mapError(err)
	}
	u.Email = email.String
	u.PasswordHash = hash.String
	u.WalletAddress = wallet.String
	u.LockedUntil = timePtr(lockedUntil)
	u.LastLoginAt = timePtr(lastLogin)
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, tenantID, email string) (tenantauth.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? AND email = ?`, tenantID, email))
}

func (r *UserRepository) FindByWallet(ctx context.Context, tenantID, address string) (tenantauth.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? AND wallet_address = ?`, tenantID, address))
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (tenantauth.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
}

func (r *UserRepository) Create(ctx context.Context, in tenantauth.CreateUserInput) (tenantauth.User, error) {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}
	return scanUser(r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, tenant_id, email, password_hash, wallet_address, display_name,
			is_verified, is_wallet_only, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?9)
		RETURNING `+userColumns,
		storage.NewID(createdAt), in.TenantID, nullString(in.Email), nullString(in.PasswordHash),
		nullString(in.WalletAddress), in.DisplayName, in.IsVerified, in.IsWalletOnly, createdAt.UnixMilli(),
	))
}

func (r *UserRepository) Update(ctx context.Context, userID string, patch tenantauth.UserPatch) (tenantauth.User, error) {
	var hash, wallet sql.NullString
	if patch.PasswordHash != nil {
		hash = sql.NullString{String: *patch.PasswordHash, Valid: true}
	}
	if patch.WalletAddress != nil {
		wallet = nullString(*patch.WalletAddress)
	}
	var verified, walletOnly sql.NullBool
	if patch.IsVerified != nil {
		verified = sql.NullBool{Bool: *patch.IsVerified, Valid: true}
	}
	if patch.IsWalletOnly != nil {
		walletOnly = sql.NullBool{Bool: *patch.IsWalletOnly, Valid: true}
	}

	return scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET
			password_hash  = COALESCE(?2, password_hash),
			wallet_address = COALESCE(?3, wallet_address),
			is_verified    = COALESCE(?4, is_verified),
			is_wallet_only = COALESCE(?5, is_wallet_only),
			last_login_at  = COALESCE(?6, last_login_at),
			login_attempts = CASE WHEN ?7 THEN 0 ELSE login_attempts END,
			locked_until   = CASE WHEN ?7 THEN NULL ELSE locked_until END,
			updated_at     = ?8
		WHERE id = ?1
		RETURNING `+userColumns,
		userID, hash, wallet, verified, walletOnly, nullMillis(patch.LastLoginAt),
		patch.ClearLockout, r.now().UnixMilli(),
	))
}

// IncrementFailed counts a failure and applies the lock in one statement.
func (r *UserRepository) IncrementFailed(ctx context.Context, userID string, rule tenantauth.LockoutRule) (tenantauth.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET
			login_attempts = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= ?3 THEN 1
				ELSE login_attempts + 1
			END,
			locked_until = CASE
				WHEN (CASE WHEN locked_until IS NOT NULL AND locked_until <= ?3 THEN 1 ELSE login_attempts + 1 END) >= ?2 THEN ?4
				WHEN locked_until IS NOT NULL AND locked_until <= ?3 THEN NULL
				ELSE locked_until
			END,
			updated_at = ?3
		WHERE id = ?1
		RETURNING `+userColumns,
		userID, rule.Threshold, rule.Now.UnixMilli(), rule.LockUntil.UnixMilli(),
	))
}

func (r *UserRepository) ResetFailed(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET login_attempts = 0, locked_until = NULL, last_login_at = ?2, updated_at = ?2
		WHERE id = ?1`,
		userID, at.UnixMilli())
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tenantauth.ErrNotFound
	}
	return nil
}

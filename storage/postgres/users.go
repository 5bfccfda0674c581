package postgres

import (
	"context"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/storage"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, tenant_id, email, password_hash, wallet_address, display_name,
	is_verified, is_wallet_only, login_attempts, locked_until, last_login_at, created_at`

// UserRepository implements [tenantauth.UserRepository].
type UserRepository struct {
	db  DB
	now func() time.Time
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

func scanUser(row pgx.Row) (tenantauth.User, error) {
	var (
		u                      tenantauth.User
		email, hash, wallet    *string
		lockedUntil, lastLogin *time.Time
	)
	err := row.Scan(
		&u.ID, &u.TenantID, &email, &hash, &wallet, &u.DisplayName,
		&u.IsVerified, &u.IsWalletOnly, &u.LoginAttempts, &lockedUntil, &lastLogin, &u.CreatedAt,
	)
	if err != nil {
		return tenantauth.User{}, mapError(err)
	}
	u.Email = deref(email)
	u.PasswordHash = deref(hash)
	u.WalletAddress = deref(wallet)
	u.LockedUntil = lockedUntil
	u.LastLoginAt = lastLogin
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, tenantID, email string) (tenantauth.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2`,
		tenantID, email))
}

func (r *UserRepository) FindByWallet(ctx context.Context, tenantID, address string) (tenantauth.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND wallet_address = $2`,
		tenantID, address))
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (tenantauth.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		userID))
}

func (r *UserRepository) Create(ctx context.Context, in tenantauth.CreateUserInput) (tenantauth.User, error) {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}
	return scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (id, tenant_id, email, password_hash, wallet_address, display_name,
			is_verified, is_wallet_only, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING `+userColumns,
		storage.NewID(createdAt), in.TenantID, nullable(in.Email), nullable(in.PasswordHash),
		nullable(in.WalletAddress), in.DisplayName, in.IsVerified, in.IsWalletOnly, createdAt,
	))
}

func (r *UserRepository) Update(ctx context.Context, userID string, patch tenantauth.UserPatch) (tenantauth.User, error) {
	var wallet *string
	if patch.WalletAddress != nil {
		wallet = nullable(*patch.WalletAddress)
	}
	return scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET
			password_hash  = COALESCE($2, password_hash),
			wallet_address = COALESCE($3, wallet_address),
			is_verified    = COALESCE($4, is_verified),
			is_wallet_only = COALESCE($5, is_wallet_only),
			last_login_at  = COALESCE($6, last_login_at),
			login_attempts = CASE WHEN $7 THEN 0 ELSE login_attempts END,
			locked_until   = CASE WHEN $7 THEN NULL ELSE locked_until END,
			updated_at     = $8
		WHERE id = $1
		RETURNING `+userColumns,
		userID, patch.PasswordHash, wallet, patch.IsVerified, patch.IsWalletOnly,
		patch.LastLoginAt, patch.ClearLockout, r.now().UTC(),
	))
}

// IncrementFailed bumps the counter in one statement so concurrent failures
// serialize on the row lock.
func (r *UserRepository) IncrementFailed(ctx context.Context, userID string, rule tenantauth.LockoutRule) (tenantauth.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET
			login_attempts = CASE
				WHEN locked_until IS NOT NULL AND locked_until <= $3 THEN 1
				ELSE login_attempts + 1
			END,
			locked_until = CASE
				WHEN (CASE WHEN locked_until IS NOT NULL AND locked_until <= $3 THEN 1 ELSE login_attempts + 1 END) >= $2 THEN $4
				WHEN locked_until IS NOT NULL AND locked_until <= $3 THEN NULL
				ELSE locked_until
			END,
			updated_at = $3
		WHERE id = $1
		RETURNING `+userColumns,
		userID, rule.Threshold, rule.Now, rule.LockUntil,
	))
}

func (r *UserRepository) ResetFailed(ctx context.Context, userID string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET login_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = $2
		WHERE id = $1`,
		userID, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return tenantauth.ErrNotFound
	}
	return nil
}

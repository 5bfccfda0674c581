package tenantauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/tenantauth/challenge"
	"github.com/MrEthical07/tenantauth/internal/flows"
	"github.com/MrEthical07/tenantauth/internal/limiters"
	"github.com/MrEthical07/tenantauth/internal/rate"
	"github.com/MrEthical07/tenantauth/internal/stores"
	"github.com/MrEthical07/tenantauth/jwt"
	"github.com/MrEthical07/tenantauth/session"
)

// The methods in this file adapt ports and stores to the flow dependency
// signatures. Each bounds its call with the matching timeout and translates
// storage errors. Sentinels the flows branch on (ErrNotFound, the store
// not-found values) pass through unchanged.

func recordFromUser(u User) flows.UserRecord {
	return flows.UserRecord{
		ID:            u.ID,
		TenantID:      u.TenantID,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		WalletAddress: u.WalletAddress,
		DisplayName:   u.DisplayName,
		IsVerified:    u.IsVerified,
		IsWalletOnly:  u.IsWalletOnly,
		LoginAttempts: u.LoginAttempts,
		LockedUntil:   u.LockedUntil,
	}
}

func publicFromRecord(r flows.UserRecord) PublicUser {
	return PublicUser{
		ID:            r.ID,
		TenantID:      r.TenantID,
		Email:         r.Email,
		WalletAddress: r.WalletAddress,
		DisplayName:   r.DisplayName,
		IsVerified:    r.IsVerified,
		IsWalletOnly:  r.IsWalletOnly,
	}
}

func repoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrDuplicateEmail):
		return ErrEmailTaken
	case errors.Is(err, ErrDuplicateWallet):
		return ErrWalletTaken
	default:
		return persistenceError(err)
	}
}

/*
====================================
USER REPOSITORY
====================================
*/

func (e *Engine) findUserByEmail(ctx context.Context, tenantID, email string) (flows.UserRecord, error) {
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	u, err := e.users.FindByEmail(ctx, tenantID, email)
	if err != nil {
		return flows.UserRecord{}, repoError(err)
	}
	return recordFromUser(u), nil
}

func (e *Engine) findUserByWallet(ctx context.Context, tenantID, address string) (flows.UserRecord, error) {
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	u, err := e.users.FindByWallet(ctx, tenantID, address)
	if err != nil {
		return flows.UserRecord{}, repoError(err)
	}
	return recordFromUser(u), nil
}

func (e *Engine) findUserByID(ctx context.Context, userID string) (flows.UserRecord, error) {
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	u, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return flows.UserRecord{}, repoError(err)
	}
	return recordFromUser(u), nil
}

func (e *Engine) createUser(ctx context.Context, in flows.NewUserRecord) (flows.UserRecord, error) {
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	u, err := e.users.Create(ctx, CreateUserInput{
		TenantID:      in.TenantID,
		Email:         in.Email,
		PasswordHash:  in.PasswordHash,
		WalletAddress: in.WalletAddress,
		DisplayName:   in.DisplayName,
		IsVerified:    in.IsVerified,
		IsWalletOnly:  in.IsWalletOnly,
		CreatedAt:     e.now().UTC(),
	})
	if err != nil {
		return flows.UserRecord{}, repoError(err)
	}
	return recordFromUser(u), nil
}

func (e *Engine) updateUser(ctx context.Context, userID string, patch UserPatch) (flows.UserRecord, error) {
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	u, err := e.users.Update(ctx, userID, patch)
	if err != nil {
		return flows.UserRecord{}, repoError(err)
	}
	return recordFromUser(u), nil
}

func (e *Engine) linkWallet(ctx context.Context, userID, address string) (flows.UserRecord, error) {
	walletOnly := false
	return e.updateUser(ctx, userID, UserPatch{WalletAddress: &address, IsWalletOnly: &walletOnly})
}

func (e *Engine) updatePassword(ctx context.Context, userID, hash string) error {
	_, err := e.updateUser(ctx, userID, UserPatch{PasswordHash: &hash})
	return err
}

// setPassword stores hash and clears any lockout.
func (e *Engine) setPassword(ctx context.Context, userID, hash string) (flows.UserRecord, error) {
	return e.updateUser(ctx, userID, UserPatch{PasswordHash: &hash, ClearLockout: true})
}

func (e *Engine) markVerified(ctx context.Context, userID string) (flows.UserRecord, error) {
	verified := true
	return e.updateUser(ctx, userID, UserPatch{IsVerified: &verified})
}

func (e *Engine) touchLogin(ctx context.Context, userID string, at time.Time) error {
	at = at.UTC()
	_, err := e.updateUser(ctx, userID, UserPatch{LastLoginAt: &at})
	return err
}

func (e *Engine) recordFailure(ctx context.Context, userID string, now time.Time) (flows.UserRecord, error) {
	threshold, lockUntil := e.lockout.Rule(now)
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	u, err := e.users.IncrementFailed(ctx, userID, LockoutRule{
		Threshold: threshold,
		LockUntil: lockUntil.UTC(),
		Now:       now.UTC(),
	})
	if err != nil {
		return flows.UserRecord{}, repoError(err)
	}
	return recordFromUser(u), nil
}

func (e *Engine) recordSuccess(ctx context.Context, userID string, now time.Time) error {
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	return repoError(e.users.ResetFailed(ctx, userID, now.UTC()))
}

/*
====================================
SESSIONS AND TOKENS
====================================
*/

func (e *Engine) createSession(ctx context.Context, in session.CreateInput) (*session.Session, error) {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	sess, err := e.sessions.Create(ctx, in, e.config.Session.Lifetime)
	if err != nil {
		return nil, persistenceError(err)
	}
	return sess, nil
}

func (e *Engine) getSession(ctx context.Context, sessionID string) (*session.Session, error) {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	sess, err := e.sessions.Get(ctx, sessionID)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, session.ErrNotFound):
		return nil, session.ErrNotFound
	case errors.Is(err, session.ErrCorrupt):
		e.warn("tenantauth: corrupt session record %s", sessionID)
		return nil, session.ErrNotFound
	default:
		return nil, persistenceError(err)
	}
}

func (e *Engine) deleteSession(ctx context.Context, sessionID string) error {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return persistenceError(err)
	}
	return nil
}

func (e *Engine) deleteAllSessions(ctx context.Context, tenantID, userID string) (int, error) {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	n, err := e.sessions.DeleteAllForUser(ctx, tenantID, userID)
	if err != nil {
		return 0, persistenceError(err)
	}
	return n, nil
}

func (e *Engine) revokeToken(ctx context.Context, userID, fingerprint string, ttl time.Duration) error {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	if err := e.sessions.Revoke(ctx, userID, fingerprint, ttl); err != nil {
		return persistenceError(err)
	}
	return nil
}

func (e *Engine) issueToken(sess *session.Session) (string, time.Time, error) {
	token, exp, err := e.tokens.Issue(jwt.Subject{
		UserID:        sess.UserID,
		TenantID:      sess.TenantID,
		SessionID:     sess.SessionID,
		WalletAddress: sess.WalletAddress,
	})
	if err != nil {
		return "", time.Time{}, ErrInternal.withCause(err)
	}
	return token, exp, nil
}

func claimsFromJWT(c *jwt.Claims) flows.BearerClaims {
	out := flows.BearerClaims{
		UserID:        c.UserID,
		TenantID:      c.TenantID,
		SessionID:     c.SessionID,
		WalletAddress: c.WalletAddress,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// verifyToken checks signature, expiry and revocation.
func (e *Engine) verifyToken(ctx context.Context, token string) (flows.BearerClaims, error) {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	claims, err := e.tokens.Verify(ctx, token)
	switch {
	case err == nil:
		return claimsFromJWT(claims), nil
	case errors.Is(err, jwt.ErrTokenInvalid), errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenRevoked):
		return flows.BearerClaims{}, ErrInvalidToken
	default:
		return flows.BearerClaims{}, persistenceError(err)
	}
}

// parseToken checks signature and expiry only. Expired tokens report
// jwt.ErrTokenExpired so logout can treat them as already gone.
func (e *Engine) parseToken(token string) (flows.BearerClaims, error) {
	claims, err := e.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return flows.BearerClaims{}, jwt.ErrTokenExpired
		}
		return flows.BearerClaims{}, ErrInvalidToken
	}
	return claimsFromJWT(claims), nil
}

/*
====================================
CHALLENGES
====================================
*/

func (e *Engine) issueChallenge(ctx context.Context, tenantID, tenantLabel, address string) (*challenge.Challenge, error) {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	c, err := e.challenges.Issue(ctx, tenantID, tenantLabel, address, e.config.Challenge.Lifetime)
	if err != nil {
		if errors.Is(err, challenge.ErrRedisUnavailable) {
			return nil, persistenceError(err)
		}
		return nil, ErrInternal.withCause(err)
	}
	return c, nil
}

func (e *Engine) consumeChallenge(ctx context.Context, tenantID, address string) (*challenge.Challenge, error) {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	c, err := e.challenges.Consume(ctx, tenantID, address)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, challenge.ErrMissing):
		return nil, ErrChallengeInvalid.WithDetails(map[string]string{"reason": "missing"})
	case errors.Is(err, challenge.ErrExpired):
		return nil, ErrChallengeInvalid.WithDetails(map[string]string{"reason": "expired"})
	default:
		return nil, persistenceError(err)
	}
}

func (e *Engine) nextWalletOrdinal(ctx context.Context, tenantID string) (int64, error) {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	n, err := e.walletSeq.Next(ctx, tenantID)
	if err != nil {
		return 0, persistenceError(err)
	}
	return n, nil
}

/*
====================================
RATE LIMITS
====================================
*/

func rateLimitedError(retry time.Duration) *AuthError {
	secs := int(retry.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return ErrRateLimited.WithDetails(map[string]string{"retry_after": strconv.Itoa(secs)})
}

// checkRate applies the per-IP fixed window of class. Requests without a
// known client IP are not limited.
func (e *Engine) checkRate(ctx context.Context, ip, class string) error {
	if e.limiter == nil || ip == "" {
		return nil
	}
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	retry, err := e.limiter.Check(ctx, ip, class)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metrics.Inc(MetricRateLimitHit)
		return rateLimitedError(retry)
	default:
		return persistenceError(err)
	}
}

func (e *Engine) throttleRegistration(ctx context.Context, tenantID, email, ip string) error {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	err := e.registration.Enforce(ctx, tenantID, email, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrRegistrationRateLimited):
		e.metrics.Inc(MetricRateLimitHit)
		return ErrRateLimited
	default:
		return persistenceError(err)
	}
}

func (e *Engine) resetLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrResetRateLimited):
		e.metrics.Inc(MetricRateLimitHit)
		return ErrRateLimited
	default:
		return persistenceError(err)
	}
}

func (e *Engine) checkResetRequest(ctx context.Context, tenantID, email, ip string) error {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	return e.resetLimiterError(e.resetLimiter.CheckRequest(ctx, tenantID, email, ip))
}

func (e *Engine) checkResetConfirm(ctx context.Context, tenantID, ip string) error {
	ctx, cancel := e.kvContext(ctx)
	defer cancel()
	return e.resetLimiterError(e.resetLimiter.CheckConfirm(ctx, tenantID, ip))
}

/*
====================================
ONE-TIME TOKENS
====================================
*/

func (e *Engine) saveOneTimeToken(store *stores.TokenStore) func(context.Context, string, string, string, time.Duration) error {
	return func(ctx context.Context, tenantID, userID, tokenHash string, ttl time.Duration) error {
		ctx, cancel := e.kvContext(ctx)
		defer cancel()
		if err := store.Save(ctx, tenantID, userID, tokenHash, ttl); err != nil {
			return persistenceError(err)
		}
		return nil
	}
}

func (e *Engine) consumeOneTimeToken(store *stores.TokenStore) func(context.Context, string, string) (string, error) {
	return func(ctx context.Context, tenantID, tokenHash string) (string, error) {
		ctx, cancel := e.kvContext(ctx)
		defer cancel()
		rec, err := store.Consume(ctx, tenantID, tokenHash)
		switch {
		case err == nil:
			return rec.UserID, nil
		case errors.Is(err, stores.ErrTokenNotFound):
			return "", stores.ErrTokenNotFound
		default:
			return "", persistenceError(err)
		}
	}
}

/*
====================================
NOTIFIER
====================================
*/

func (e *Engine) sendVerificationNotice(ctx context.Context, n flows.VerificationNotice) error {
	if e.notifier == nil {
		return nil
	}
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	err := e.notifier.SendVerification(ctx, VerificationMessage{
		TenantID:  n.TenantID,
		UserID:    n.UserID,
		Email:     n.Email,
		Token:     n.Token,
		ExpiresAt: n.ExpiresAt.Unix(),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("tenant_id", n.TenantID).Str("user_id", n.UserID).Msg("verification notice failed")
	}
	return err
}

func (e *Engine) sendResetNotice(ctx context.Context, n flows.ResetNotice) error {
	if e.notifier == nil {
		return nil
	}
	ctx, cancel := e.relContext(ctx)
	defer cancel()
	err := e.notifier.SendPasswordReset(ctx, PasswordResetMessage{
		TenantID:  n.TenantID,
		UserID:    n.UserID,
		Email:     n.Email,
		Token:     n.Token,
		ExpiresAt: n.ExpiresAt.Unix(),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("tenant_id", n.TenantID).Str("user_id", n.UserID).Msg("password reset notice failed")
	}
	return err
}

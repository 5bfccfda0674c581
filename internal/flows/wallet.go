package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/tenantauth/challenge"
	"github.com/MrEthical07/tenantauth/internal/rate"
	"github.com/MrEthical07/tenantauth/session"
)

// WalletUserNamePrefix precedes the per-tenant ordinal of auto-created users.
const WalletUserNamePrefix = "Wallet User "

// ChallengeInput is the wallet challenge request.
type ChallengeInput struct {
	TenantID    string
	TenantLabel string
	Address     string
	ClientIP    string
}

// WalletVerifyInput is the wallet login request.
type WalletVerifyInput struct {
	TenantID  string
	Address   string
	Signature string
	ClientIP  string
}

// LinkWalletInput binds a wallet to an authenticated user.
type LinkWalletInput struct {
	UserID          string
	TenantID        string
	Address         string
	Signature       string
	OriginalMessage string
	ClientIP        string
}

type WalletMetrics struct {
	ChallengeIssued   int
	WalletSuccess     int
	WalletFailure     int
	WalletRateLimited int
	WalletUserCreated int
	WalletLinked      int
}

type WalletEvents struct {
	ChallengeIssued   string
	WalletSuccess     string
	WalletFailure     string
	WalletRateLimited string
	WalletUserCreated string
	WalletLinked      string
	WalletLinkFailure string
}

type WalletErrors struct {
	EngineNotReady   error
	InvalidAddress   error
	InvalidSignature error
	ChallengeInvalid error
	RateLimited      error
	UserNotFound     error
	WalletTaken      error
	InvalidToken     error
	Validation       func(rules ...string) error
}

// WalletDeps captures challenge, wallet login and link dependencies.
type WalletDeps struct {
	Now       func() time.Time
	CheckRate func(ctx context.Context, ip, class string) error

	NormalizeAddress func(string) (string, error)
	RecoverAddress   func(message, signature string) (string, error)

	IssueChallenge   func(ctx context.Context, tenantID, tenantLabel, address string) (*challenge.Challenge, error)
	ConsumeChallenge func(ctx context.Context, tenantID, address string) (*challenge.Challenge, error)

	FindUserByID      func(ctx context.Context, userID string) (UserRecord, error)
	FindUserByWallet  func(ctx context.Context, tenantID, address string) (UserRecord, error)
	CreateUser        func(ctx context.Context, in NewUserRecord) (UserRecord, error)
	LinkWallet        func(ctx context.Context, userID, address string) (UserRecord, error)
	TouchLogin        func(ctx context.Context, userID string, now time.Time) error
	NextWalletOrdinal func(ctx context.Context, tenantID string) (int64, error)

	OpenSession func(ctx context.Context, user UserRecord, origin session.Origin, walletAddress string) (*SessionGrant, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics WalletMetrics
	Events  WalletEvents
	Errors  WalletErrors
}

func normalizeWalletDeps(deps *WalletDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.Errors.Validation == nil {
		invalid := deps.Errors.InvalidAddress
		deps.Errors.Validation = func(...string) error { return invalid }
	}
}

func (deps *WalletDeps) checkRate(ctx context.Context, ip, class, tenantID, address string) error {
	if deps.CheckRate == nil {
		return nil
	}
	err := deps.CheckRate(ctx, ip, class)
	if err != nil && errors.Is(err, deps.Errors.RateLimited) {
		deps.MetricInc(deps.Metrics.WalletRateLimited)
		deps.EmitAudit(ctx, deps.Events.WalletRateLimited, false, "", tenantID, "", err, func() map[string]string {
			return map[string]string{
				"wallet": address,
				"class":  class,
			}
		})
	}
	return err
}

// RunGenerateChallenge issues a fresh challenge for address, replacing any
// pending one for the same tenant and address.
func RunGenerateChallenge(ctx context.Context, in ChallengeInput, deps WalletDeps) (*challenge.Challenge, error) {
	normalizeWalletDeps(&deps)
	if deps.NormalizeAddress == nil || deps.IssueChallenge == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if err := deps.checkRate(ctx, in.ClientIP, rate.ClassWalletChallenge, in.TenantID, in.Address); err != nil {
		return nil, err
	}
	address, err := deps.NormalizeAddress(in.Address)
	if err != nil {
		return nil, deps.Errors.Validation("wallet_address")
	}

	label := in.TenantLabel
	if label == "" {
		label = in.TenantID
	}
	c, err := deps.IssueChallenge(ctx, in.TenantID, label, address)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.ChallengeIssued)
	deps.EmitAudit(ctx, deps.Events.ChallengeIssued, true, "", in.TenantID, "", nil, func() map[string]string {
		return map[string]string{
			"wallet": address,
		}
	})
	return c, nil
}

// RunVerifyWalletSignature consumes the pending challenge for address, checks
// the signature against it and opens a wallet-origin session. Unknown wallets
// get a wallet-only account on first login.
//
// The challenge is consumed before the signature is checked, so a bad
// signature burns it and the client must request a new one.
func RunVerifyWalletSignature(ctx context.Context, in WalletVerifyInput, deps WalletDeps) (*SessionGrant, error) {
	normalizeWalletDeps(&deps)
	if deps.NormalizeAddress == nil ||
		deps.RecoverAddress == nil ||
		deps.ConsumeChallenge == nil ||
		deps.FindUserByWallet == nil ||
		deps.CreateUser == nil ||
		deps.NextWalletOrdinal == nil ||
		deps.OpenSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if err := deps.checkRate(ctx, in.ClientIP, rate.ClassWalletVerify, in.TenantID, in.Address); err != nil {
		return nil, err
	}

	address, err := deps.NormalizeAddress(in.Address)
	if err != nil {
		return nil, deps.Errors.Validation("wallet_address")
	}
	if in.Signature == "" {
		return nil, deps.Errors.Validation("signature")
	}

	failure := func(userID, reason string, err error) error {
		deps.MetricInc(deps.Metrics.WalletFailure)
		deps.EmitAudit(ctx, deps.Events.WalletFailure, false, userID, in.TenantID, "", err, func() map[string]string {
			return map[string]string{
				"wallet": address,
				"reason": reason,
			}
		})
		return err
	}

	c, err := deps.ConsumeChallenge(ctx, in.TenantID, address)
	if err != nil {
		if errors.Is(err, deps.Errors.ChallengeInvalid) {
			return nil, failure("", "challenge_invalid", err)
		}
		return nil, err
	}

	recovered, err := deps.RecoverAddress(c.Message, in.Signature)
	if err != nil || recovered != address {
		return nil, failure("", "signature_mismatch", deps.Errors.InvalidSignature)
	}

	user, err := deps.FindUserByWallet(ctx, in.TenantID, address)
	switch {
	case err == nil:
	case errors.Is(err, deps.Errors.UserNotFound):
		user, err = createWalletUser(ctx, in.TenantID, address, deps)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if deps.TouchLogin != nil {
		if err := deps.TouchLogin(ctx, user.ID, deps.Now()); err != nil {
			deps.Warn("tenantauth: last login update failed")
		}
	}

	grant, err := deps.OpenSession(ctx, user, session.OriginWallet, address)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.WalletSuccess)
	deps.EmitAudit(ctx, deps.Events.WalletSuccess, true, user.ID, in.TenantID, grant.SessionID, nil, func() map[string]string {
		return map[string]string{
			"wallet": address,
		}
	})
	return grant, nil
}

// createWalletUser inserts a wallet-only account. Losing a concurrent insert
// race for the same wallet falls back to the winner's row.
func createWalletUser(ctx context.Context, tenantID, address string, deps WalletDeps) (UserRecord, error) {
	n, err := deps.NextWalletOrdinal(ctx, tenantID)
	if err != nil {
		return UserRecord{}, err
	}

	user, err := deps.CreateUser(ctx, NewUserRecord{
		TenantID:      tenantID,
		WalletAddress: address,
		DisplayName:   WalletUserNamePrefix + strconv.FormatInt(n, 10),
		IsVerified:    true,
		IsWalletOnly:  true,
	})
	if err != nil {
		if errors.Is(err, deps.Errors.WalletTaken) {
			return deps.FindUserByWallet(ctx, tenantID, address)
		}
		return UserRecord{}, err
	}

	deps.MetricInc(deps.Metrics.WalletUserCreated)
	deps.EmitAudit(ctx, deps.Events.WalletUserCreated, true, user.ID, tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"wallet": address,
		}
	})
	return user, nil
}

// RunLinkWallet binds address to an already authenticated user after proving
// ownership with a signature over OriginalMessage.
func RunLinkWallet(ctx context.Context, in LinkWalletInput, deps WalletDeps) (UserRecord, error) {
	normalizeWalletDeps(&deps)
	if deps.NormalizeAddress == nil ||
		deps.RecoverAddress == nil ||
		deps.FindUserByID == nil ||
		deps.FindUserByWallet == nil ||
		deps.LinkWallet == nil {
		return UserRecord{}, deps.Errors.EngineNotReady
	}

	address, err := deps.NormalizeAddress(in.Address)
	if err != nil {
		return UserRecord{}, deps.Errors.Validation("wallet_address")
	}
	var missing []string
	if in.Signature == "" {
		missing = append(missing, "signature")
	}
	if in.OriginalMessage == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return UserRecord{}, deps.Errors.Validation(missing...)
	}

	failure := func(reason string, err error) error {
		deps.EmitAudit(ctx, deps.Events.WalletLinkFailure, false, in.UserID, in.TenantID, "", err, func() map[string]string {
			return map[string]string{
				"wallet": address,
				"reason": reason,
			}
		})
		return err
	}

	if err := deps.checkRate(ctx, in.ClientIP, rate.ClassLink, in.TenantID, address); err != nil {
		return UserRecord{}, err
	}

	recovered, err := deps.RecoverAddress(in.OriginalMessage, in.Signature)
	if err != nil || recovered != address {
		return UserRecord{}, failure("signature_mismatch", deps.Errors.InvalidSignature)
	}

	user, err := deps.FindUserByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return UserRecord{}, failure("user_not_found", deps.Errors.InvalidToken)
		}
		return UserRecord{}, err
	}
	if in.TenantID != "" && user.TenantID != in.TenantID {
		return UserRecord{}, failure("tenant_mismatch", deps.Errors.InvalidToken)
	}
	if user.WalletAddress == address {
		return user, nil
	}

	owner, err := deps.FindUserByWallet(ctx, user.TenantID, address)
	switch {
	case err == nil:
		if owner.ID != user.ID {
			return UserRecord{}, failure("wallet_taken", deps.Errors.WalletTaken)
		}
	case errors.Is(err, deps.Errors.UserNotFound):
	default:
		return UserRecord{}, err
	}

	updated, err := deps.LinkWallet(ctx, user.ID, address)
	if err != nil {
		if errors.Is(err, deps.Errors.WalletTaken) {
			return UserRecord{}, failure("wallet_taken", err)
		}
		return UserRecord{}, err
	}

	deps.MetricInc(deps.Metrics.WalletLinked)
	deps.EmitAudit(ctx, deps.Events.WalletLinked, true, user.ID, user.TenantID, "", nil, func() map[string]string {
		return map[string]string{
			"wallet": address,
		}
	})
	return updated, nil
}

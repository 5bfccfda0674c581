package tenantauth

import (
	"context"

	"github.com/MrEthical07/tenantauth/internal/flows"
)

// GenerateWalletChallenge issues the message address must sign to log in to
// tenantID. A new challenge replaces any pending one for the same wallet.
func (e *Engine) GenerateWalletChallenge(ctx context.Context, tenantID, address string) (*WalletChallenge, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	tenant, err := e.resolveTenant(ctx, tenantID, FeatureWalletAuth)
	if err != nil {
		return nil, e.fail("wallet_challenge", tenantID, "", err)
	}

	c, err := flows.RunGenerateChallenge(ctx, flows.ChallengeInput{
		TenantID:    tenant.ID,
		TenantLabel: tenant.Label(),
		Address:     address,
		ClientIP:    clientIPFromContext(ctx),
	}, e.flows.Wallet)
	if err != nil {
		return nil, e.fail("wallet_challenge", tenant.ID, "", err)
	}
	return &WalletChallenge{
		Message:       c.Message,
		Nonce:         c.Nonce,
		ExpiresAt:     c.ExpiresAt,
		WalletAddress: c.WalletAddress,
		TenantID:      c.TenantID,
	}, nil
}

// VerifyWalletSignature consumes the pending challenge of address and, when
// signature recovers to address, opens a wallet session. Unknown wallets get
// a new verified wallet-only account. A challenge is usable exactly once,
// even when the signature is wrong.
func (e *Engine) VerifyWalletSignature(ctx context.Context, tenantID, address, signature, clientIP string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, clientIP = withRequestIP(ctx, clientIP)

	tenant, err := e.resolveTenant(ctx, tenantID, FeatureWalletAuth)
	if err != nil {
		return nil, e.fail("wallet_verify", tenantID, "", err)
	}

	grant, err := flows.RunVerifyWalletSignature(ctx, flows.WalletVerifyInput{
		TenantID:  tenant.ID,
		Address:   address,
		Signature: signature,
		ClientIP:  clientIP,
	}, e.flows.Wallet)
	if err != nil {
		return nil, e.fail("wallet_verify", tenant.ID, "", err)
	}
	return authResult(grant), nil
}

// LinkWallet binds address to the authenticated userID after checking that
// signature over originalMessage recovers to address. Callers verify the
// bearer token first; a tenant attached with [WithTenantID] must match the
// user's tenant. Linking the wallet the user already holds is a no-op.
func (e *Engine) LinkWallet(ctx context.Context, userID, address, signature, originalMessage string) (PublicUser, error) {
	if !e.ready() {
		return PublicUser{}, ErrEngineNotReady
	}

	tenantID := tenantIDFromContext(ctx)
	if tenantID != "" {
		tenant, err := e.resolveTenant(ctx, tenantID, FeatureWalletAuth)
		if err != nil {
			return PublicUser{}, e.fail("wallet_link", tenantID, userID, err)
		}
		tenantID = tenant.ID
	}

	user, err := flows.RunLinkWallet(ctx, flows.LinkWalletInput{
		UserID:          userID,
		TenantID:        tenantID,
		Address:         address,
		Signature:       signature,
		OriginalMessage: originalMessage,
		ClientIP:        clientIPFromContext(ctx),
	}, e.flows.Wallet)
	if err != nil {
		return PublicUser{}, e.fail("wallet_link", tenantID, userID, err)
	}
	return publicFromRecord(user), nil
}

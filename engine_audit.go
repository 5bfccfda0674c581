package tenantauth

import (
	"context"

	"github.com/MrEthical07/tenantauth/internal/audit"
)

const (
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterFailure      = "register_failure"
	auditEventRegisterRateLimited  = "register_rate_limited"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventAccountLocked        = "account_locked"
	auditEventChallengeIssued      = "wallet_challenge_issued"
	auditEventWalletLoginSuccess   = "wallet_login_success"
	auditEventWalletLoginFailure   = "wallet_login_failure"
	auditEventWalletRateLimited    = "wallet_rate_limited"
	auditEventWalletUserCreated    = "wallet_user_created"
	auditEventWalletLinked         = "wallet_linked"
	auditEventWalletLinkFailure    = "wallet_link_failure"
	auditEventLogoutSession        = "logout_session"
	auditEventLogoutAll            = "logout_all"
	auditEventEmailVerified        = "email_verification_confirm"
	auditEventEmailVerifyFailure   = "email_verification_failure"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventTenantDenied         = "tenant_access_denied"
)

// emitAudit hands one event to the dispatcher. The "wallet" metadata key is
// lifted into the event's WalletAddress field.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tenantID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		TenantID:  tenantID,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if wallet, ok := metadata["wallet"]; ok {
		event.WalletAddress = wallet
		delete(metadata, "wallet")
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}
	if len(metadata) > 0 {
		event.Metadata = metadata
	}
	if err != nil {
		event.Code = AsAuthError(err).Code
	}

	e.audit.Emit(ctx, event)
}

// AuditDropped reports events lost to dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

package tenantauth

import (
	"context"
	"time"

	"github.com/MrEthical07/tenantauth/internal"
	"github.com/MrEthical07/tenantauth/internal/flows"
	"github.com/MrEthical07/tenantauth/internal/stores"
	"github.com/MrEthical07/tenantauth/jwt"
	"github.com/MrEthical07/tenantauth/session"
	"github.com/MrEthical07/tenantauth/wallet"
)

func validationFunc(rules ...string) error {
	return validationError(rules...)
}

func (e *Engine) openSession(ctx context.Context, user flows.UserRecord, origin session.Origin, walletAddress string) (*flows.SessionGrant, error) {
	return flows.RunOpenSession(ctx, user, origin, walletAddress, flows.SessionDeps{
		CreateSession:  e.createSession,
		DeleteSession:  e.deleteSession,
		IssueToken:     e.issueToken,
		Warn:           e.warn,
		MetricInc:      e.metricInc,
		SessionCreated: int(MetricSessionCreated),
		EngineNotReady: ErrEngineNotReady,
	})
}

// sessionIntrospector bounds the read-only session queries with the KV timeout.
type sessionIntrospector struct {
	e *Engine
}

func (s sessionIntrospector) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	return s.e.getSession(ctx, sessionID)
}

func (s sessionIntrospector) ActiveSessionCount(ctx context.Context, tenantID, userID string) (int, error) {
	ctx, cancel := s.e.kvContext(ctx)
	defer cancel()
	n, err := s.e.sessions.ActiveSessionCount(ctx, tenantID, userID)
	if err != nil {
		return 0, persistenceError(err)
	}
	return n, nil
}

func (s sessionIntrospector) TenantSessionCount(ctx context.Context, tenantID string) (int, error) {
	ctx, cancel := s.e.kvContext(ctx)
	defer cancel()
	n, err := s.e.sessions.TenantSessionCount(ctx, tenantID)
	if err != nil {
		return 0, persistenceError(err)
	}
	return n, nil
}

func (s sessionIntrospector) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.e.kvContext(ctx)
	defer cancel()
	return s.e.sessions.Ping(ctx)
}

// buildFlowDeps binds every flow to the engine's ports. It runs once from
// Build after all components exist.
func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Register: flows.RegisterDeps{
			VerificationTTL:        e.config.EmailVerification.TokenTTL,
			Now:                    e.now,
			CheckRate:              e.checkRate,
			ThrottleRegistration:   e.throttleRegistration,
			CheckPasswordPolicy:    e.policy.Check,
			HashPassword:           e.hasher.Hash,
			CreateUser:             e.createUser,
			NewToken:               internal.NewOpaqueToken,
			HashToken:              internal.HashToken,
			SaveVerificationToken:  e.saveOneTimeToken(e.verifications),
			SendVerificationNotice: e.sendVerificationNotice,
			MetricInc:              e.metricInc,
			EmitAudit:              e.emitAudit,
			Warn:                   e.warn,
			Metrics: flows.RegisterMetrics{
				RegisterSuccess:     int(MetricRegisterSuccess),
				RegisterDuplicate:   int(MetricRegisterDuplicate),
				RegisterRateLimited: int(MetricRegisterRateLimited),
				VerificationIssued:  int(MetricVerificationIssued),
			},
			Events: flows.RegisterEvents{
				RegisterSuccess:     auditEventRegisterSuccess,
				RegisterFailure:     auditEventRegisterFailure,
				RegisterRateLimited: auditEventRegisterRateLimited,
			},
			Errors: flows.RegisterErrors{
				EngineNotReady: ErrEngineNotReady,
				EmailTaken:     ErrEmailTaken,
				RateLimited:    ErrRateLimited,
				Validation:     validationFunc,
			},
		},
		Login: flows.LoginDeps{
			UpgradeOnLogin:       e.config.Password.UpgradeOnLogin,
			Now:                  e.now,
			CheckRate:            e.checkRate,
			FindUserByEmail:      e.findUserByEmail,
			RecordFailure:        e.recordFailure,
			RecordSuccess:        e.recordSuccess,
			UpdatePassword:       e.updatePassword,
			IsLocked:             e.lockout.IsLocked,
			VerifyPassword:       e.hasher.Verify,
			BurnPassword:         e.hasher.Burn,
			PasswordNeedsUpgrade: e.hasher.NeedsUpgrade,
			HashPassword:         e.hasher.Hash,
			OpenSession:          e.openSession,
			MetricInc:            e.metricInc,
			EmitAudit:            e.emitAudit,
			Warn:                 e.warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess:     int(MetricLoginSuccess),
				LoginFailure:     int(MetricLoginFailure),
				LoginLocked:      int(MetricLoginLocked),
				LoginRateLimited: int(MetricLoginRateLimited),
				LockoutApplied:   int(MetricLockoutApplied),
				PasswordUpgraded: int(MetricPasswordUpgraded),
			},
			Events: flows.LoginEvents{
				LoginSuccess:     auditEventLoginSuccess,
				LoginFailure:     auditEventLoginFailure,
				LoginRateLimited: auditEventLoginRateLimited,
				AccountLocked:    auditEventAccountLocked,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				AccountLocked:      ErrAccountLocked,
				RateLimited:        ErrRateLimited,
				UserNotFound:       ErrNotFound,
				Internal:           ErrInternal,
			},
		},
		Wallet: flows.WalletDeps{
			Now:               e.now,
			CheckRate:         e.checkRate,
			NormalizeAddress:  wallet.NormalizeAddress,
			RecoverAddress:    e.verifier.Recover,
			IssueChallenge:    e.issueChallenge,
			ConsumeChallenge:  e.consumeChallenge,
			FindUserByID:      e.findUserByID,
			FindUserByWallet:  e.findUserByWallet,
			CreateUser:        e.createUser,
			LinkWallet:        e.linkWallet,
			TouchLogin:        e.touchLogin,
			NextWalletOrdinal: e.nextWalletOrdinal,
			OpenSession:       e.openSession,
			MetricInc:         e.metricInc,
			EmitAudit:         e.emitAudit,
			Warn:              e.warn,
			Metrics: flows.WalletMetrics{
				ChallengeIssued:   int(MetricChallengeIssued),
				WalletSuccess:     int(MetricWalletLoginSuccess),
				WalletFailure:     int(MetricWalletLoginFailure),
				WalletRateLimited: int(MetricWalletRateLimited),
				WalletUserCreated: int(MetricWalletUserCreated),
				WalletLinked:      int(MetricWalletLinked),
			},
			Events: flows.WalletEvents{
				ChallengeIssued:   auditEventChallengeIssued,
				WalletSuccess:     auditEventWalletLoginSuccess,
				WalletFailure:     auditEventWalletLoginFailure,
				WalletRateLimited: auditEventWalletRateLimited,
				WalletUserCreated: auditEventWalletUserCreated,
				WalletLinked:      auditEventWalletLinked,
				WalletLinkFailure: auditEventWalletLinkFailure,
			},
			Errors: flows.WalletErrors{
				EngineNotReady:   ErrEngineNotReady,
				InvalidAddress:   validationError("wallet_address"),
				InvalidSignature: ErrInvalidSignature,
				ChallengeInvalid: ErrChallengeInvalid,
				RateLimited:      ErrRateLimited,
				UserNotFound:     ErrNotFound,
				WalletTaken:      ErrWalletTaken,
				InvalidToken:     ErrInvalidToken,
				Validation:       validationFunc,
			},
		},
		Logout: flows.LogoutDeps{
			Now:               e.now,
			ParseToken:        e.parseToken,
			Fingerprint:       jwt.Fingerprint,
			RevokeToken:       e.revokeToken,
			DeleteSession:     e.deleteSession,
			DeleteAllSessions: e.deleteAllSessions,
			FindUserByID:      e.findUserByID,
			MetricInc:         e.metricInc,
			EmitAudit:         e.emitAudit,
			Metrics: flows.LogoutMetrics{
				Logout:    int(MetricLogout),
				LogoutAll: int(MetricLogoutAll),
			},
			Events: flows.LogoutEvents{
				Logout:    auditEventLogoutSession,
				LogoutAll: auditEventLogoutAll,
			},
			Errors: flows.LogoutErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidToken:   ErrInvalidToken,
				TokenExpired:   jwt.ErrTokenExpired,
				UserNotFound:   ErrNotFound,
			},
		},
		Validate: flows.ValidateDeps{
			Now:             e.now,
			VerifyToken:     e.verifyToken,
			GetSession:      e.getSession,
			MetricInc:       e.metricInc,
			ValidateSuccess: int(MetricValidateSuccess),
			ValidateFailure: int(MetricValidateFailure),
			Errors: flows.ValidateErrors{
				EngineNotReady:  ErrEngineNotReady,
				InvalidToken:    ErrInvalidToken,
				SessionNotFound: session.ErrNotFound,
			},
		},
		EmailVerification: flows.EmailVerificationDeps{
			CheckRate:    e.checkRate,
			ValidToken:   internal.ValidOpaqueToken,
			HashToken:    internal.HashToken,
			ConsumeToken: e.consumeOneTimeToken(e.verifications),
			FindUserByID: e.findUserByID,
			MarkVerified: e.markVerified,
			MetricInc:    e.metricInc,
			EmitAudit:    e.emitAudit,
			Confirmed:    int(MetricEmailVerificationSuccess),
			EventName:    auditEventEmailVerified,
			FailedName:   auditEventEmailVerifyFailure,
			Errors: flows.EmailVerificationErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidToken:   ErrInvalidToken,
				TokenNotFound:  stores.ErrTokenNotFound,
				UserNotFound:   ErrNotFound,
				RateLimited:    ErrRateLimited,
			},
		},
		PasswordReset: flows.PasswordResetDeps{
			Enabled:             e.config.PasswordReset.Enabled,
			TokenTTL:            e.config.PasswordReset.TokenTTL,
			Now:                 e.now,
			CheckRate:           e.checkRate,
			CheckRequestLimiter: e.checkResetRequest,
			CheckConfirmLimiter: e.checkResetConfirm,
			FindUserByEmail:     e.findUserByEmail,
			FindUserByID:        e.findUserByID,
			SetPassword:         e.setPassword,
			CheckPasswordPolicy: e.policy.Check,
			HashPassword:        e.hasher.Hash,
			BurnPassword:        e.hasher.Burn,
			NewToken:            internal.NewOpaqueToken,
			ValidToken:          internal.ValidOpaqueToken,
			HashToken:           internal.HashToken,
			SaveToken:           e.saveOneTimeToken(e.resets),
			ConsumeToken:        e.consumeOneTimeToken(e.resets),
			SendNotice:          e.sendResetNotice,
			DeleteAllSessions:   e.deleteAllSessions,
			MetricInc:           e.metricInc,
			EmitAudit:           e.emitAudit,
			Warn:                e.warn,
			Metrics: flows.PasswordResetMetrics{
				ResetRequested:      int(MetricPasswordResetRequest),
				ResetConfirmed:      int(MetricPasswordResetConfirmSuccess),
				ResetFailed:         int(MetricPasswordResetConfirmFailure),
				ResetRateLimited:    int(MetricPasswordResetRateLimited),
				SessionsInvalidated: int(MetricSessionInvalidated),
			},
			Events: flows.PasswordResetEvents{
				ResetRequest: auditEventPasswordResetRequest,
				ResetConfirm: auditEventPasswordResetConfirm,
			},
			Errors: flows.PasswordResetErrors{
				EngineNotReady:  ErrEngineNotReady,
				FeatureDisabled: ErrFeatureDisabled,
				InvalidToken:    ErrInvalidToken,
				TokenNotFound:   stores.ErrTokenNotFound,
				UserNotFound:    ErrNotFound,
				RateLimited:     ErrRateLimited,
				Validation:      validationFunc,
			},
		},
		Introspection: flows.IntrospectionDeps{
			SessionStore:      sessionIntrospector{e: e},
			EngineNotReadyErr: ErrEngineNotReady,
			ValidationErr:     validationFunc,
		},
	}
}

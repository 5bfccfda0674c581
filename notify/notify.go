// Package notify provides the out-of-band delivery adapters for verification
// and password reset tokens.
//
// The engine never fails an operation because delivery failed, so these
// adapters report errors only for logging.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/tenantauth"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	DefaultVerificationSubject  = "tenantauth.email.verification"
	DefaultPasswordResetSubject = "tenantauth.email.password_reset"

	// HeaderTenant carries the tenant id so consumers can route without decoding.
	HeaderTenant = "Tenant-Id"
)

// ErrPublish wraps broker failures.
var ErrPublish = errors.New("notify: publish failed")

// MsgPublisher is the part of *nats.Conn the publisher needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATS publishes notices as JSON onto two subjects. A mail worker subscribed
// to those subjects performs the actual delivery.
type NATS struct {
	conn          MsgPublisher
	verifySubject string
	resetSubject  string
}

// NATSOption customizes [NewNATS].
type NATSOption func(*NATS)

// WithSubjects overrides the default subjects. Empty values keep the default.
func WithSubjects(verification, reset string) NATSOption {
	return func(n *NATS) {
		if verification != "" {
			n.verifySubject = verification
		}
		if reset != "" {
			n.resetSubject = reset
		}
	}
}

func NewNATS(conn MsgPublisher, opts ...NATSOption) *NATS {
	n := &NATS{
		conn:          conn,
		verifySubject: DefaultVerificationSubject,
		resetSubject:  DefaultPasswordResetSubject,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *NATS) SendVerification(ctx context.Context, msg tenantauth.VerificationMessage) error {
	return n.publish(ctx, n.verifySubject, msg.TenantID, msg)
}

func (n *NATS) SendPasswordReset(ctx context.Context, msg tenantauth.PasswordResetMessage) error {
	return n.publish(ctx, n.resetSubject, msg.TenantID, msg)
}

func (n *NATS) publish(ctx context.Context, subject, tenantID string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}

	m := nats.NewMsg(subject)
	m.Data = data
	// JetStream deduplicates on this header when the subject is captured by a stream.
	m.Header.Set(nats.MsgIdHdr, uuid.NewString())
	m.Header.Set(HeaderTenant, tenantID)

	if err := n.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	return nil
}

// Log writes notices to a zerolog logger instead of delivering them. It is
// meant for local runs; the token is only logged when IncludeToken is set.
type Log struct {
	logger       zerolog.Logger
	IncludeToken bool
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notify").Logger()}
}

func (l *Log) SendVerification(_ context.Context, msg tenantauth.VerificationMessage) error {
	l.event("verification", msg.TenantID, msg.UserID, msg.Email, msg.Token, msg.ExpiresAt)
	return nil
}

func (l *Log) SendPasswordReset(_ context.Context, msg tenantauth.PasswordResetMessage) error {
	l.event("password_reset", msg.TenantID, msg.UserID, msg.Email, msg.Token, msg.ExpiresAt)
	return nil
}

func (l *Log) event(kind, tenantID, userID, email, token string, expiresAt int64) {
	ev := l.logger.Info().
		Str("kind", kind).
		Str("tenant_id", tenantID).
		Str("user_id", userID).
		Str("email", email).
		Int64("expires_at", expiresAt)
	if l.IncludeToken {
		ev = ev.Str("token", token)
	}
	ev.Msg("notice queued")
}

// Multi fans a notice out to every notifier and joins their errors.
type Multi []tenantauth.EmailNotifier

func (m Multi) SendVerification(ctx context.Context, msg tenantauth.VerificationMessage) error {
	var errs []error
	for _, n := range m {
		if err := n.SendVerification(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendPasswordReset(ctx context.Context, msg tenantauth.PasswordResetMessage) error {
	var errs []error
	for _, n := range m {
		if err := n.SendPasswordReset(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ tenantauth.EmailNotifier = (*NATS)(nil)
	_ tenantauth.EmailNotifier = (*Log)(nil)
	_ tenantauth.EmailNotifier = Multi(nil)
	_ MsgPublisher             = (*nats.Conn)(nil)
)

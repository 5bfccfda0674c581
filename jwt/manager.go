package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KindAccess is the only token kind the manager issues or accepts.
const KindAccess = "access"

// MinKeyLength is the shortest HS256 signing key accepted.
const MinKeyLength = 32

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and bad claims.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired reports exp <= now.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked reports a fingerprint present in the revocation set.
	ErrTokenRevoked = errors.New("token revoked")
)

// Config defines a public type used by tenantauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Lifetime   time.Duration
	SigningKey []byte
	Issuer     string
	Leeway     time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// RevocationChecker reports whether a token fingerprint was revoked for a user.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, userID, fingerprint string) (bool, error)
}

// Claims is the access-token payload.
type Claims struct {
	UserID        string `json:"userId"`
	TenantID      string `json:"tenantId"`
	SessionID     string `json:"sessionId"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Kind          string `json:"kind"`
	jwt.RegisteredClaims
}

// Subject describes who a token is issued for.
type Subject struct {
	UserID        string
	TenantID      string
	SessionID     string
	WalletAddress string
}

// Manager signs and validates access tokens. It is safe for concurrent use.
type Manager struct {
	config  Config
	revoked RevocationChecker
}

// NewManager validates cfg and returns a Manager. revoked may be nil, in which
// case Verify behaves like Parse.
func NewManager(cfg Config, revoked RevocationChecker) (*Manager, error) {
	if cfg.Lifetime <= 0 {
		return nil, errors.New("invalid token lifetime configuration")
	}
	if len(cfg.SigningKey) < MinKeyLength {
		return nil, fmt.Errorf("hs256 signing key must be at least %d bytes", MinKeyLength)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.SigningKey = append([]byte(nil), cfg.SigningKey...)
	return &Manager{config: cfg, revoked: revoked}, nil
}

// Lifetime returns the configured token lifetime.
func (j *Manager) Lifetime() time.Duration {
	return j.config.Lifetime
}

// Issue signs a new access token for sub and returns it with its expiry.
func (j *Manager) Issue(sub Subject) (string, time.Time, error) {
	if sub.UserID == "" || sub.TenantID == "" || sub.SessionID == "" {
		return "", time.Time{}, errors.New("token subject is incomplete")
	}

	// NumericDate has second precision; truncate so the returned expiry equals the encoded one.
	now := j.config.Now().Truncate(time.Second)
	exp := now.Add(j.config.Lifetime)

	claims := Claims{
		UserID:        sub.UserID,
		TenantID:      sub.TenantID,
		SessionID:     sub.SessionID,
		WalletAddress: sub.WalletAddress,
		Kind:          KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    j.config.Issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.config.SigningKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Parse checks signature, algorithm, exp and iat. It does not consult the
// revocation set.
func (j *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.config.Now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.config.SigningKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != KindAccess || claims.UserID == "" || claims.TenantID == "" || claims.SessionID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Verify is Parse followed by a revocation lookup on the token fingerprint.
// Lookup failures are returned unwrapped so callers can classify them.
func (j *Manager) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := j.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if j.revoked == nil {
		return claims, nil
	}
	fp, err := Fingerprint(tokenStr)
	if err != nil {
		return nil, err
	}
	revoked, err := j.revoked.IsRevoked(ctx, claims.UserID, fp)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Fingerprint returns the signature segment of a compact token.
func Fingerprint(tokenStr string) (string, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 || parts[2] == "" {
		return "", ErrTokenInvalid
	}
	return parts[2], nil
}

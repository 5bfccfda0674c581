package session

import "time"

// Origin records how a session was established.
type Origin uint8

const (
	OriginPassword Origin = 1
	OriginWallet   Origin = 2
	OriginLink     Origin = 3
)

func (o Origin) String() string {
	switch o {
	case OriginPassword:
		return "password"
	case OriginWallet:
		return "wallet"
	case OriginLink:
		return "link"
	default:
		return "unknown"
	}
}

func (o Origin) valid() bool {
	return o >= OriginPassword && o <= OriginLink
}

// Session is one authenticated principal. Timestamps are Unix milliseconds.
type Session struct {
	SessionID     string
	UserID        string
	TenantID      string
	WalletAddress string
	Origin        Origin

	CreatedAt int64
	ExpiresAt int64
}

// Expired reports whether the session's lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.UnixMilli() >= s.ExpiresAt
}

// ExpiresTime returns ExpiresAt as a time.Time.
func (s *Session) ExpiresTime() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// CreatedTime returns CreatedAt as a time.Time.
func (s *Session) CreatedTime() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

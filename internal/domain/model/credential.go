package model

import "time"

// Identity is the account a token authenticates as, as reported by the
// remote store's /user endpoint.
type Identity struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Session is a persisted credential: the token and its absolute expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *Identity
}

// Expired reports whether the session has passed its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionState is the lifecycle stage of the process-wide credential.
type SessionState string

const (
	SessionAnonymous     SessionState = "anonymous"
	SessionAuthenticated SessionState = "authenticated"
	SessionVerified      SessionState = "verified"
	SessionExpired       SessionState = "expired"
	SessionLoggedOut     SessionState = "logged_out"
)

// SessionEvent is delivered to subscribers on every credential transition.
type SessionEvent struct {
	State SessionState
	User  *Identity
}

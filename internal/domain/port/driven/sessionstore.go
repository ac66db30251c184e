package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by SessionStore operations when
// POLICYPANEL_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set POLICYPANEL_SECRET_KEY")

// SessionStore defines the driven port for persisting the session credential
// across restarts. The adapter encrypts the token at rest; this interface
// operates on plaintext at the domain boundary.
type SessionStore interface {
	// Save stores or replaces the session.
	Save(ctx context.Context, session model.Session) error

	// Load returns the persisted session, or (nil, nil) when none exists.
	Load(ctx context.Context) (*model.Session, error)

	// Clear removes any persisted session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port. The
// token is encrypted with AES-256-GCM before write and decrypted after read;
// expiry and identity are stored in the clear.
type SessionRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when persistence is disabled.
}

// NewSessionRepo creates a SessionRepo. key must be 32 bytes, or nil to
// disable persistence (Save and Load then return ErrEncryptionKeyNotSet).
func NewSessionRepo(db *DB, key []byte) *SessionRepo {
	return &SessionRepo{db: db, key: key}
}

// Save stores or replaces the single persisted session.
func (r *SessionRepo) Save(ctx context.Context, session model.Session) error {
	encrypted, err := r.encrypt(session.Token)
	if err != nil {
		return err
	}

	var user model.Identity
	if session.User != nil {
		user = *session.User
	}

	const query = `
		INSERT INTO session (id, token, expires_at, user_login, user_name, user_avatar_url, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			expires_at = excluded.expires_at,
			user_login = excluded.user_login,
			user_name = excluded.user_name,
			user_avatar_url = excluded.user_avatar_url,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = r.db.Writer.ExecContext(ctx, query,
		encrypted, formatTime(session.ExpiresAt), user.Login, user.Name, user.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns the persisted session, or (nil, nil) when none is stored.
func (r *SessionRepo) Load(ctx context.Context) (*model.Session, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `
		SELECT token, expires_at, user_login, user_name, user_avatar_url
		FROM session
		WHERE id = 1
	`
	var (
		encrypted, expiresAt string
		user                 model.Identity
	)
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(
		&encrypted, &expiresAt, &user.Login, &user.Name, &user.AvatarURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	token, err := r.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt session token: %w", err)
	}

	session := &model.Session{Token: token}
	session.ExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse session expiry: %w", err)
	}
	if user.Login != "" {
		session.User = &user
	}
	return session, nil
}

// Clear removes the persisted session, if any.
func (r *SessionRepo) Clear(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// encrypt seals plaintext with AES-256-GCM and returns base64(nonce || ciphertext || tag).
func (r *SessionRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (r *SessionRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func (r *SessionRepo) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

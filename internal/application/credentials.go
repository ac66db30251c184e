package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// DefaultSessionTTL is how long a session stays valid after login or resume.
const DefaultSessionTTL = 8 * time.Hour

const verifyTimeout = 10 * time.Second

// tokenPattern accepts classic (ghp_) and fine-grained (github_pat_) personal
// access tokens.
var tokenPattern = regexp.MustCompile(`^(ghp_[a-zA-Z0-9]{36,}|github_pat_[a-zA-Z0-9_]{22,})$`)

// ValidTokenFormat reports whether raw, once trimmed, has the shape of a
// personal access token.
func ValidTokenFormat(raw string) bool {
	return tokenPattern.MatchString(strings.TrimSpace(raw))
}

// ErrPromptCancelled is returned by a TokenPrompter when the person dismissed
// the credential prompt.
var ErrPromptCancelled = errors.New("authentication prompt cancelled")

// TokenPrompter presents a credential-entry surface and returns the entered
// token, or ErrPromptCancelled.
type TokenPrompter interface {
	PromptToken(ctx context.Context) (string, error)
}

// SessionOutcome distinguishes a flow that may continue from one the person
// chose to abort.
type SessionOutcome int

const (
	SessionContinue SessionOutcome = iota + 1
	SessionCancelled
)

func (o SessionOutcome) String() string {
	switch o {
	case SessionContinue:
		return "continue"
	case SessionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SessionObserver is notified of every credential transition.
type SessionObserver interface {
	ObserveSessionEvent(state string)
}

// CredentialOption configures a CredentialManager.
type CredentialOption func(*CredentialManager)

// WithSessionStore persists the session so it can be resumed after restart.
func WithSessionStore(store driven.SessionStore) CredentialOption {
	return func(c *CredentialManager) { c.store = store }
}

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) CredentialOption {
	return func(c *CredentialManager) { c.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CredentialOption {
	return func(c *CredentialManager) { c.now = now }
}

// WithSessionObserver reports transitions to obs.
func WithSessionObserver(obs SessionObserver) CredentialOption {
	return func(c *CredentialManager) { c.observer = obs }
}

// CredentialManager owns the process-wide session credential: the token, its
// expiry and the verified identity. Every component that needs the token
// reads it from here; nothing else holds a copy.
type CredentialManager struct {
	verifier driven.IdentityVerifier
	store    driven.SessionStore
	observer SessionObserver
	ttl      time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	user      *model.Identity
	// generation increments on every token change so a stale async
	// verification cannot overwrite a newer session.
	generation uint64
	subs       map[int]chan model.SessionEvent
	nextSub    int

	// baseCtx is cancelled by Close to stop in-flight verifications.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewCredentialManager creates a CredentialManager with no active session.
func NewCredentialManager(verifier driven.IdentityVerifier, opts ...CredentialOption) *CredentialManager {
	ctx, cancel := context.WithCancel(context.Background())
	c := &CredentialManager{
		verifier: verifier,
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		subs:     make(map[int]chan model.SessionEvent),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken accepts raw if it has the shape of a personal access token, stores
// it with a fresh expiry and starts identity verification in the background.
// A verification failure logs the session out. Malformed input is rejected
// with model.ErrInvalidToken and leaves the current session untouched.
func (c *CredentialManager) SetToken(ctx context.Context, raw string) error {
	token := strings.TrimSpace(raw)
	if !tokenPattern.MatchString(token) {
		return model.ErrInvalidToken
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(c.ttl)
	c.user = nil
	c.generation++
	gen := c.generation
	session := c.sessionLocked()
	c.publishLocked(model.SessionAuthenticated)
	c.mu.Unlock()

	c.persist(ctx, session)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.verify(gen, token)
	}()
	return nil
}

// Login validates raw and verifies it synchronously before storing it. It
// is used where the caller needs the identity immediately (the CLI, the API
// session endpoint). A rejected token is not stored and the previous session
// stays as it was.
func (c *CredentialManager) Login(ctx context.Context, raw string) (*model.Identity, error) {
	token := strings.TrimSpace(raw)
	if !tokenPattern.MatchString(token) {
		return nil, model.ErrInvalidToken
	}

	user, err := c.verifier.VerifyToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(c.ttl)
	c.user = user
	c.generation++
	session := c.sessionLocked()
	c.publishLocked(model.SessionVerified)
	c.mu.Unlock()

	c.persist(ctx, session)
	slog.Info("session started", "user", user.Login)
	return cloneIdentity(user), nil
}

// verify runs the identity check for the token set at generation gen.
func (c *CredentialManager) verify(gen uint64, token string) {
	ctx, cancel := context.WithTimeout(c.baseCtx, verifyTimeout)
	defer cancel()

	user, err := c.verifier.VerifyToken(ctx, token)
	if errors.Is(c.baseCtx.Err(), context.Canceled) {
		return
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		slog.Warn("token verification failed, logging out", "error", err)
		c.clear(context.WithoutCancel(ctx), gen, model.SessionLoggedOut)
		return
	}
	c.user = user
	session := c.sessionLocked()
	c.publishLocked(model.SessionVerified)
	c.mu.Unlock()

	c.persist(context.WithoutCancel(ctx), session)
	slog.Info("token verified", "user", user.Login)
}

// Resume restores a persisted session at startup. An expired session is
// discarded. A live one is re-verified and, if still accepted, its expiry is
// extended by a full TTL. Any verification failure logs out.
func (c *CredentialManager) Resume(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	session, err := c.store.Load(ctx)
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		slog.Info("session persistence disabled, no secret key configured")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil
	}

	if session.Expired(c.now()) {
		slog.Info("persisted session expired", "expired_at", session.ExpiresAt)
		c.mu.Lock()
		gen := c.generation
		c.mu.Unlock()
		c.clear(ctx, gen, model.SessionExpired)
		return nil
	}

	c.mu.Lock()
	c.token = session.Token
	c.expiresAt = session.ExpiresAt
	c.user = session.User
	c.generation++
	gen := c.generation
	c.publishLocked(model.SessionAuthenticated)
	c.mu.Unlock()

	user, err := c.verifier.VerifyToken(ctx, session.Token)
	if err != nil {
		slog.Warn("resumed session rejected, logging out", "error", err)
		c.clear(ctx, gen, model.SessionLoggedOut)
		return nil
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil
	}
	c.user = user
	c.expiresAt = c.now().Add(c.ttl)
	renewed := c.sessionLocked()
	c.publishLocked(model.SessionVerified)
	c.mu.Unlock()

	c.persist(ctx, renewed)
	slog.Info("session resumed", "user", user.Login, "expires_at", renewed.ExpiresAt)
	return nil
}

// IsAuthenticated reports whether a token is held and has not expired.
func (c *CredentialManager) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" && c.now().Before(c.expiresAt)
}

// CurrentUser returns the verified identity, or nil before verification.
func (c *CredentialManager) CurrentUser() *model.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneIdentity(c.user)
}

// ExpiresAt returns the session expiry, or the zero time when logged out.
func (c *CredentialManager) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

// Token returns the session token for outgoing requests. A session found to
// be past its expiry is destroyed and "" is returned.
func (c *CredentialManager) Token() string {
	c.mu.RLock()
	token, expiresAt, gen := c.token, c.expiresAt, c.generation
	c.mu.RUnlock()

	if token == "" {
		return ""
	}
	if !c.now().Before(expiresAt) {
		c.clear(context.Background(), gen, model.SessionExpired)
		return ""
	}
	return token
}

// Logout clears the token, expiry and user. It is idempotent.
func (c *CredentialManager) Logout(ctx context.Context) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	c.clear(ctx, gen, model.SessionLoggedOut)
}

// Expire destroys the session because the remote store rejected its token.
func (c *CredentialManager) Expire(ctx context.Context) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	c.clear(ctx, gen, model.SessionExpired)
}

// clear drops the session if it is still at generation gen. Persisted state
// is always removed so a stale row cannot be resumed later.
func (c *CredentialManager) clear(ctx context.Context, gen uint64, state model.SessionState) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	had := c.token != ""
	c.token = ""
	c.expiresAt = time.Time{}
	c.user = nil
	c.generation++
	if had {
		c.publishLocked(state)
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			slog.Warn("failed to clear persisted session", "error", err)
		}
	}
	if had {
		slog.Info("session ended", "reason", string(state))
	}
}

// EnsureSession returns SessionContinue when a session is active. Otherwise
// it suspends on prompter; a cancelled prompt yields SessionCancelled, and an
// entered token is verified before the flow continues.
func (c *CredentialManager) EnsureSession(ctx context.Context, prompter TokenPrompter) (SessionOutcome, error) {
	if c.IsAuthenticated() {
		return SessionContinue, nil
	}

	raw, err := prompter.PromptToken(ctx)
	if errors.Is(err, ErrPromptCancelled) {
		return SessionCancelled, nil
	}
	if err != nil {
		return 0, fmt.Errorf("prompt for token: %w", err)
	}

	if _, err := c.Login(ctx, raw); err != nil {
		return 0, err
	}
	return SessionContinue, nil
}

// Subscribe returns a channel of session transitions and a function that
// stops delivery. Slow subscribers miss events rather than block the session.
func (c *CredentialManager) Subscribe() (<-chan model.SessionEvent, func()) {
	ch := make(chan model.SessionEvent, 8)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Wait blocks until every background verification started so far finishes.
func (c *CredentialManager) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight verifications and waits for them to return.
func (c *CredentialManager) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *CredentialManager) publishLocked(state model.SessionState) {
	ev := model.SessionEvent{State: state, User: cloneIdentity(c.user)}
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	if c.observer != nil {
		c.observer.ObserveSessionEvent(string(state))
	}
}

func (c *CredentialManager) sessionLocked() model.Session {
	return model.Session{Token: c.token, ExpiresAt: c.expiresAt, User: cloneIdentity(c.user)}
}

func (c *CredentialManager) persist(ctx context.Context, session model.Session) {
	if c.store == nil {
		return
	}
	err := c.store.Save(ctx, session)
	switch {
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		slog.Debug("session not persisted, no secret key configured")
	case err != nil:
		slog.Warn("failed to persist session", "error", err)
	}
}

func cloneIdentity(id *model.Identity) *model.Identity {
	if id == nil {
		return nil
	}
	out := *id
	return &out
}

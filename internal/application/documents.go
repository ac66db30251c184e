package application

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// RemoteCallObserver records the outcome of remote store calls.
type RemoteCallObserver interface {
	ObserveRemoteCall(op, outcome string, d time.Duration)
}

// Compile-time interface satisfaction check.
var _ driven.DocumentStore = (*SessionAwareStore)(nil)

// SessionAwareStore decorates a DocumentStore so that a token rejected by the
// remote store ends the session, and every call is measured.
type SessionAwareStore struct {
	next     driven.DocumentStore
	creds    *CredentialManager
	observer RemoteCallObserver
}

// NewSessionAwareStore wraps next. observer may be nil.
func NewSessionAwareStore(next driven.DocumentStore, creds *CredentialManager, observer RemoteCallObserver) *SessionAwareStore {
	return &SessionAwareStore{next: next, creds: creds, observer: observer}
}

// GetFile delegates to the wrapped store.
func (s *SessionAwareStore) GetFile(ctx context.Context, path, branch string) (*model.RemoteFile, error) {
	start := time.Now()
	file, err := s.next.GetFile(ctx, path, branch)
	s.after(ctx, "get", start, err)
	return file, err
}

// PutFile delegates to the wrapped store.
func (s *SessionAwareStore) PutFile(ctx context.Context, req driven.PutFileRequest) (*model.WriteResult, error) {
	start := time.Now()
	res, err := s.next.PutFile(ctx, req)
	s.after(ctx, "put", start, err)
	return res, err
}

func (s *SessionAwareStore) after(ctx context.Context, op string, start time.Time, err error) {
	if errors.Is(err, model.ErrAuthenticationExpired) {
		s.creds.Expire(context.WithoutCancel(ctx))
	}
	if s.observer != nil {
		s.observer.ObserveRemoteCall(op, outcome(err), time.Since(start))
	}
}

// outcome labels err for metrics: "ok" or a stable error code.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return model.ErrorCode(err)
}

package driven

import (
	"context"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// PutFileRequest describes one write to the remote store. An empty
// Fingerprint asks the store to create the file; a non-empty one makes the
// write conditional on the file still being at that version.
type PutFileRequest struct {
	Path        string
	Branch      string
	Content     string
	Message     string
	Fingerprint string
}

// DocumentStore defines the driven port for reading and writing named files in
// the version-controlled remote store. Implementations return errors wrapping
// the model taxonomy (model.ErrNotFound, model.ErrConflictWriteRejected, ...).
type DocumentStore interface {
	// GetFile returns the decoded content and fingerprint of path on branch.
	// An empty branch means the configured default branch.
	GetFile(ctx context.Context, path, branch string) (*model.RemoteFile, error)

	// PutFile writes req.Content. A fingerprint mismatch is reported as
	// model.ErrConflictWriteRejected and is never retried.
	PutFile(ctx context.Context, req PutFileRequest) (*model.WriteResult, error)
}

// IdentityVerifier checks a token against the remote store's identity
// endpoint and returns the account it belongs to.
type IdentityVerifier interface {
	VerifyToken(ctx context.Context, token string) (*model.Identity, error)
}

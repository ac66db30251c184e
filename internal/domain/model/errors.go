package model

import (
	"errors"
	"strings"
)

// Failure taxonomy shared by the remote store, the mutation engine and the
// driving adapters. Adapters wrap these with context; callers match them with
// errors.Is.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAuthenticationExpired  = errors.New("authentication expired")
	ErrRateLimited            = errors.New("rate limited")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrNotFound               = errors.New("not found")
	ErrStructuralMismatch     = errors.New("document structure mismatch")
	ErrConflictWriteRejected  = errors.New("write rejected: file changed remotely")
	ErrValidationFailed       = errors.New("validation failed")
	ErrTransientServer        = errors.New("remote server error")
	ErrParseFailure           = errors.New("document could not be parsed")
	ErrInvalidToken           = errors.New("invalid token format")
)

// maxDisplayedFindings bounds how many sanitizer findings are joined into a
// ValidationError message.
const maxDisplayedFindings = 3

// ValidationError carries the sanitizer findings that blocked a submission.
type ValidationError struct {
	Findings []Finding
}

// Error joins the first findings, rejected values ahead of key rewrites.
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, maxDisplayedFindings)
	for _, rewrite := range []bool{false, true} {
		for _, f := range e.Findings {
			if len(msgs) == maxDisplayedFindings {
				break
			}
			if f.KeyRewrite == rewrite {
				msgs = append(msgs, f.String())
			}
		}
	}
	if len(msgs) == 0 {
		return ErrValidationFailed.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrValidationFailed) match a *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// UserMessage converts err into text suitable for showing to the person who
// triggered the operation.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrInvalidToken):
		return "Invalid token format. Please provide a valid GitHub personal access token."
	case errors.Is(err, ErrAuthenticationRequired):
		return "Not authenticated. Please log in with a GitHub token."
	case errors.Is(err, ErrAuthenticationExpired):
		return "Authentication expired. Please log in again."
	case errors.Is(err, ErrRateLimited):
		return "GitHub API rate limit exceeded. Please try again later."
	case errors.Is(err, ErrPermissionDenied):
		return "Permission denied. Your token may lack access to this repository."
	case errors.Is(err, ErrNotFound):
		return "Resource not found."
	case errors.Is(err, ErrStructuralMismatch):
		return "Could not find the end of the rows array in the stored document."
	case errors.Is(err, ErrConflictWriteRejected):
		return "The file was changed by someone else. Reload and try again."
	case errors.Is(err, ErrParseFailure):
		return "The stored document could not be parsed."
	case errors.Is(err, ErrTransientServer):
		return "GitHub server error. Please try again later."
	default:
		return err.Error()
	}
}

// ErrorCode returns a stable machine-readable code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrAuthenticationRequired):
		return "authentication_required"
	case errors.Is(err, ErrAuthenticationExpired):
		return "authentication_expired"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStructuralMismatch):
		return "structural_mismatch"
	case errors.Is(err, ErrConflictWriteRejected):
		return "conflict"
	case errors.Is(err, ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, ErrTransientServer):
		return "transient_server_error"
	default:
		return "internal"
	}
}

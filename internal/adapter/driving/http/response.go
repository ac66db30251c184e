package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ericfisherdev/policypanel/internal/application"
	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error","code":"internal"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: codeForStatus(status)})
}

// errorResponse is the standard error response body. Findings lists every
// sanitizer observation when a submission failed validation.
type errorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Findings []string `json:"findings,omitempty"`
}

// statusFor maps the failure taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidationFailed), errors.Is(err, model.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAuthenticationRequired), errors.Is(err, model.ErrAuthenticationExpired):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflictWriteRejected):
		return http.StatusConflict
	case errors.Is(err, model.ErrStructuralMismatch), errors.Is(err, model.ErrParseFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrTransientServer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "authentication_required"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal"
	}
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status        string           `json:"status"`
	Time          string           `json:"time"`
	Database      string           `json:"database"`
	Authenticated bool             `json:"authenticated"`
	Repo          model.RepoTarget `json:"repo"`
}

// SessionResponse describes the process-wide session.
type SessionResponse struct {
	Authenticated bool            `json:"authenticated"`
	User          *model.Identity `json:"user,omitempty"`
	ExpiresAt     string          `json:"expires_at,omitempty"`
}

// LoginRequest is the JSON body for starting a session.
type LoginRequest struct {
	Token string `json:"token"`
}

// RepoSettingsRequest is the JSON body for changing the repository target.
// Omitted fields keep their current override.
type RepoSettingsRequest struct {
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
	Reset  bool   `json:"reset,omitempty"`
}

// RepoSettingsResponse reports the target in effect and the configured defaults.
type RepoSettingsResponse struct {
	Current  model.RepoTarget `json:"current"`
	Defaults model.RepoTarget `json:"defaults"`
}

// SortResponse echoes the active sort of a table listing.
type SortResponse struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// TableResponse is one table document. Fingerprint is set only for documents
// fetched from the remote store.
type TableResponse struct {
	Table       string         `json:"table"`
	Columns     []model.Column `json:"columns"`
	Rows        []model.Row    `json:"rows"`
	Sort        *SortResponse  `json:"sort,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
}

// AddRowRequest is the JSON body for appending a row.
type AddRowRequest struct {
	Name   string    `json:"name"`
	Values model.Map `json:"values"`
}

// UpdateRowRequest is the JSON body for editing a row. Values replaces the
// row's values; Set overwrites individual keys. An id is accepted but ignored.
type UpdateRowRequest struct {
	ID     *string   `json:"id,omitempty"`
	Name   *string   `json:"name,omitempty"`
	Values model.Map `json:"values,omitempty"`
	Set    model.Map `json:"set,omitempty"`
}

// MutationResponse describes an accepted row mutation.
type MutationResponse struct {
	Table       string    `json:"table"`
	Row         model.Row `json:"row"`
	Fingerprint string    `json:"fingerprint"`
	Commit      string    `json:"commit"`
}

func toHealthResponse(r application.HealthReport) HealthResponse {
	return HealthResponse{
		Status:        r.Status,
		Time:          r.Time.UTC().Format(time.RFC3339),
		Database:      r.Database,
		Authenticated: r.Authenticated,
		Repo:          r.Repo,
	}
}

func toSessionResponse(creds *application.CredentialManager) SessionResponse {
	resp := SessionResponse{
		Authenticated: creds.IsAuthenticated(),
		User:          creds.CurrentUser(),
	}
	if resp.Authenticated {
		resp.ExpiresAt = creds.ExpiresAt().UTC().Format(time.RFC3339)
	}
	return resp
}

func toTableResponse(table model.TableID, doc *model.TableDocument) TableResponse {
	cols := doc.Columns
	if cols == nil {
		cols = []model.Column{}
	}
	rows := doc.Rows
	if rows == nil {
		rows = []model.Row{}
	}
	return TableResponse{Table: string(table), Columns: cols, Rows: rows}
}

func toMutationResponse(res *application.MutationResult) MutationResponse {
	return MutationResponse{
		Table:       string(res.Table),
		Row:         res.Row,
		Fingerprint: res.Write.Fingerprint,
		Commit:      res.Write.CommitSHA,
	}
}

package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ericfisherdev/policypanel/internal/application"
	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// maxBodyBytes bounds JSON request bodies. Row payloads are additionally
// bounded by the sanitizer.
const maxBodyBytes = 256 << 10

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	creds      *application.CredentialManager
	settings   *application.RepoSettingsService
	tables     *application.TableRegistry
	source     driven.TableSource
	engine     *application.RowMutationEngine
	comparator *application.ValueComparator
	health     *application.HealthService
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	creds *application.CredentialManager,
	settings *application.RepoSettingsService,
	tables *application.TableRegistry,
	source driven.TableSource,
	engine *application.RowMutationEngine,
	comparator *application.ValueComparator,
	health *application.HealthService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		creds:      creds,
		settings:   settings,
		tables:     tables,
		source:     source,
		engine:     engine,
		comparator: comparator,
		health:     health,
		logger:     logger,
	}
}

// Register adds the API routes to mux. Mutation routes only accept JSON
// bodies and pass through limiter when it is non-nil.
func Register(mux *http.ServeMux, h *Handler, limiter *RateLimiter) {
	throttle := func(next http.HandlerFunc) http.Handler {
		if limiter == nil {
			return requireJSON(next)
		}
		return requireJSON(limiter.Middleware(next))
	}

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/session", h.GetSession)
	mux.Handle("POST /api/v1/session", throttle(h.Login))
	mux.HandleFunc("DELETE /api/v1/session", h.Logout)

	mux.HandleFunc("GET /api/v1/settings/repo", h.GetRepoSettings)
	mux.Handle("PUT /api/v1/settings/repo", throttle(h.PutRepoSettings))

	mux.HandleFunc("GET /api/v1/tables/{table}", h.GetTable)
	mux.HandleFunc("GET /api/v1/tables/{table}/remote", h.GetRemoteTable)
	mux.Handle("POST /api/v1/tables/{table}/rows", throttle(h.AddRow))
	mux.Handle("PATCH /api/v1/tables/{table}/rows/{id}", throttle(h.UpdateRow))
}

// Wrap applies logging and recovery middleware.
func Wrap(next http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, next)
	return loggingMiddleware(logger, wrapped)
}

// NewServeMux creates an http.Handler with the API routes and metrics
// registered and wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, limiter *RateLimiter, metrics http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	Register(mux, h, limiter)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return Wrap(mux, logger)
}

// Health returns service health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != application.HealthOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, toHealthResponse(report))
}

// GetSession describes the current session.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.creds))
}

// Login verifies the submitted token and starts a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.creds.Login(r.Context(), req.Token); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.creds))
}

// Logout ends the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.creds.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// GetRepoSettings returns the repository target in effect.
func (h *Handler) GetRepoSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RepoSettingsResponse{
		Current:  h.settings.Current(),
		Defaults: h.settings.Defaults(),
	})
}

// PutRepoSettings changes or resets the repository target overrides.
func (h *Handler) PutRepoSettings(w http.ResponseWriter, r *http.Request) {
	var req RepoSettingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	var err error
	if req.Reset {
		_, err = h.settings.Reset(r.Context())
	} else {
		_, err = h.settings.Update(r.Context(), model.RepoOverrides{
			Owner:  strings.TrimSpace(req.Owner),
			Name:   strings.TrimSpace(req.Name),
			Branch: strings.TrimSpace(req.Branch),
		})
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.GetRepoSettings(w, r)
}

// GetTable returns a table from the static corpus, optionally sorted.
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	table, err := model.ParseTableID(r.PathValue("table"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dir, err := application.ParseSortDirection(r.URL.Query().Get("dir"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.source.Load(r.Context(), table)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := toTableResponse(table, doc)
	if col := r.URL.Query().Get("sort"); col != "" {
		resp.Rows = h.comparator.SortRows(doc.Rows, col, dir)
		resp.Sort = &SortResponse{Column: col, Direction: string(dir)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRemoteTable fetches the current version of a table from the remote store.
func (h *Handler) GetRemoteTable(w http.ResponseWriter, r *http.Request) {
	table, err := model.ParseTableID(r.PathValue("table"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !h.requireSession(w) {
		return
	}

	doc, file, err := h.engine.Fetch(r.Context(), table)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := toTableResponse(table, doc)
	resp.Fingerprint = file.Fingerprint
	writeJSON(w, http.StatusOK, resp)
}

// AddRow appends a row to a remote table.
func (h *Handler) AddRow(w http.ResponseWriter, r *http.Request) {
	table, err := model.ParseTableID(r.PathValue("table"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !h.requireSession(w) {
		return
	}

	var req AddRowRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.Append(r.Context(), table, application.RowInput{Name: req.Name, Values: req.Values})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMutationResponse(res))
}

// UpdateRow edits a row of a remote table.
func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	table, err := model.ParseTableID(r.PathValue("table"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	rowID := r.PathValue("id")
	if !application.ValidRowID(rowID) {
		writeError(w, http.StatusBadRequest, "invalid row id")
		return
	}
	if !h.requireSession(w) {
		return
	}

	var req UpdateRowRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.Update(r.Context(), table, rowID, application.RowPatch{
		ID:        req.ID,
		Name:      req.Name,
		Values:    req.Values,
		SetValues: req.Set,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(res))
}

func (h *Handler) requireSession(w http.ResponseWriter) bool {
	if h.creds.IsAuthenticated() {
		return true
	}
	writeJSON(w, http.StatusUnauthorized, errorResponse{
		Error: model.UserMessage(model.ErrAuthenticationRequired),
		Code:  model.ErrorCode(model.ErrAuthenticationRequired),
	})
	return false
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeDomainError writes err with the status its taxonomy maps to. Only
// unclassified failures are logged at error level.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, status, "internal server error")
		return
	}

	h.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	resp := errorResponse{Error: model.UserMessage(err), Code: model.ErrorCode(err)}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Findings {
			resp.Findings = append(resp.Findings, f.String())
		}
	}
	writeJSON(w, status, resp)
}

// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/policypanel/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/policypanel/internal/application"
	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	creds      *application.CredentialManager
	source     driven.TableSource
	engine     *application.RowMutationEngine
	comparator *application.ValueComparator
	sanitizer  *application.InputSanitizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	creds *application.CredentialManager,
	source driven.TableSource,
	engine *application.RowMutationEngine,
	comparator *application.ValueComparator,
	sanitizer *application.InputSanitizer,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		creds:      creds,
		source:     source,
		engine:     engine,
		comparator: comparator,
		sanitizer:  sanitizer,
		logger:     logger,
		now:        time.Now,
	}
}

// formPrompter answers the session prompt with the token submitted alongside
// a form. An empty field means the person has not signed in.
type formPrompter struct {
	token string
}

func (p formPrompter) PromptToken(context.Context) (string, error) {
	if strings.TrimSpace(p.token) == "" {
		return "", application.ErrPromptCancelled
	}
	return p.token, nil
}

// Index redirects to the first table.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, tablePath(model.Tables[0]), http.StatusFound)
}

// TablePage renders a table from the static corpus, sorted when requested.
func (h *Handler) TablePage(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	table, doc, ok := h.loadTable(w, r, session)
	if !ok {
		return
	}

	column := r.URL.Query().Get("sort")
	dir, err := application.ParseSortDirection(r.URL.Query().Get("dir"))
	if err != nil {
		dir = application.SortAsc
	}

	rows := doc.Rows
	if column != "" {
		rows = h.comparator.SortRows(doc.Rows, column, dir)
	}

	page := toTablePageViewModel(table, doc, rows, column, dir, session)
	h.render(w, r, http.StatusOK, pageTitle(table.Label()), session, TablePage(page))
}

// RowCard renders every field of one row.
func (h *Handler) RowCard(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	table, doc, ok := h.loadTable(w, r, session)
	if !ok {
		return
	}

	i := doc.RowByID(r.PathValue("id"))
	if i < 0 {
		h.renderError(w, r, http.StatusNotFound, session, model.UserMessage(model.ErrNotFound))
		return
	}

	card := toRowCardViewModel(table, doc.Columns, doc.Rows[i], h.sanitizer, session)
	h.render(w, r, http.StatusOK, doc.Rows[i].Name, session, RowCardPage(card))
}

// NewRowForm renders an empty add-row form.
func (h *Handler) NewRowForm(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	table, doc, ok := h.loadTable(w, r, session)
	if !ok {
		return
	}

	form := toRowFormViewModel(table, doc.Columns, doc.Rows, map[string]string{}, h.comparator, nil, session)
	h.render(w, r, http.StatusOK, pageTitle(table.Label()), session, RowFormPage(form))
}

// CreateRow validates a submitted add-row form, signs in with the submitted
// token when no session is active, and appends the row.
func (h *Handler) CreateRow(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	session := h.session(w, r)
	table, doc, ok := h.loadTable(w, r, session)
	if !ok {
		return
	}

	values := collectForm(doc.Columns, r)
	fail := func(status int, errs ...string) {
		session := h.session(w, r)
		form := toRowFormViewModel(table, doc.Columns, doc.Rows, values, h.comparator, errs, session)
		h.render(w, r, status, pageTitle(table.Label()), session, RowFormPage(form))
	}

	if err := application.CheckRequired(doc.Columns, values); err != nil {
		fail(http.StatusUnprocessableEntity, findingMessages(err)...)
		return
	}

	outcome, err := h.creds.EnsureSession(r.Context(), formPrompter{token: r.PostFormValue("token")})
	if err != nil {
		fail(formStatus(err), model.UserMessage(err))
		return
	}
	if outcome == application.SessionCancelled {
		fail(http.StatusUnauthorized, "Sign in with a GitHub token to save this row.")
		return
	}

	res, err := h.engine.Append(r.Context(), table, application.BindForm(doc.Columns, values, h.now()))
	if err != nil {
		if formStatus(err) == http.StatusInternalServerError {
			h.logger.Error("failed to add row", "table", table, "error", err)
		}
		fail(formStatus(err), findingMessages(err)...)
		return
	}

	session = h.session(w, r)
	card := toRowCardViewModel(table, doc.Columns, res.Row, h.sanitizer, session)
	card.Notice = "Row saved in commit " + shortSHA(res.Write.CommitSHA) + "."
	h.render(w, r, http.StatusCreated, res.Row.Name, session, RowCardPage(card))
}

// LoginPage renders the token entry form.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	page := vm.LoginViewModel{Next: safeNext(r.URL.Query().Get("next")), Session: session}
	h.render(w, r, http.StatusOK, "Policy Panel · Sign in", session, LoginPage(page))
}

// Login starts a session with the submitted token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	next := safeNext(r.PostFormValue("next"))
	if _, err := h.creds.Login(r.Context(), r.PostFormValue("token")); err != nil {
		session := h.session(w, r)
		page := vm.LoginViewModel{Next: next, Error: model.UserMessage(err), Session: session}
		h.render(w, r, formStatus(err), "Policy Panel · Sign in", session, LoginPage(page))
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout ends the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	h.creds.Logout(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) vm.SessionViewModel {
	s := vm.SessionViewModel{
		Authenticated: h.creds.IsAuthenticated(),
		CSRFToken:     csrfToken(w, r),
	}
	if user := h.creds.CurrentUser(); user != nil {
		s.User = user.Login
	}
	return s
}

func (h *Handler) loadTable(w http.ResponseWriter, r *http.Request, session vm.SessionViewModel) (model.TableID, *model.TableDocument, bool) {
	table, err := model.ParseTableID(r.PathValue("table"))
	if err != nil {
		h.renderError(w, r, http.StatusNotFound, session, "Unknown table.")
		return "", nil, false
	}

	doc, err := h.source.Load(r.Context(), table)
	if err != nil {
		status := formStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to load table", "table", table, "error", err)
		}
		h.renderError(w, r, status, session, model.UserMessage(err))
		return "", nil, false
	}
	return table, doc, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, title string, session vm.SessionViewModel, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := Layout(title, session, body).Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, session vm.SessionViewModel, message string) {
	h.render(w, r, status, "Policy Panel", session, ErrorPage(message))
}

// collectForm reads the submitted fields of columns, keyed by column id.
// Multi-select fields are joined with commas.
func collectForm(columns []model.Column, r *http.Request) map[string]string {
	_ = r.ParseForm()
	out := make(map[string]string, len(columns))
	for _, col := range columns {
		if vals := r.PostForm[col.ID]; len(vals) > 0 {
			out[col.ID] = strings.Join(vals, ", ")
		}
	}
	return out
}

func findingMessages(err error) []string {
	var verr *model.ValidationError
	if errors.As(err, &verr) && len(verr.Findings) > 0 {
		msgs := make([]string, len(verr.Findings))
		for i, f := range verr.Findings {
			msgs[i] = f.String()
		}
		return msgs
	}
	return []string{model.UserMessage(err)}
}

func formStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrValidationFailed), errors.Is(err, model.ErrInvalidToken):
		return http.StatusUnprocessableEntity
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

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func shortSHA(sha string) string {
	const n = 7
	if len(sha) > n {
		return sha[:n]
	}
	return sha
}

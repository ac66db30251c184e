package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

const (
	// maxRowNameLength bounds the sanitized row name.
	maxRowNameLength = 500
	// fallbackCommitUser signs commit messages when no identity is verified.
	fallbackCommitUser = "User"
)

// Closing sequences of the rows array: the last row's brace at four spaces,
// the array bracket at two, then the document brace with an optional final
// line ending.
var (
	rowsEndLF   = regexp.MustCompile(`    \}\n  \]\n\}(?:\n)?$`)
	rowsEndCRLF = regexp.MustCompile(`    \}\r\n  \]\r\n\}(?:\r\n)?$`)
)

// UserSource supplies the identity stamped into commit messages.
type UserSource interface {
	CurrentUser() *model.Identity
}

// MutationObserver records the outcome of row mutations.
type MutationObserver interface {
	ObserveMutation(table, op, outcome string, d time.Duration)
}

// RowInput is a new row as submitted by a caller.
type RowInput struct {
	Name   string
	Values model.Map
}

// RowPatch is a partial row update. Nil fields are left unchanged. Values
// replaces the row's values wholesale; SetValues overwrites individual keys.
// ID is accepted for binding but never applied.
type RowPatch struct {
	ID        *string
	Name      *string
	Values    model.Map
	SetValues model.Map
}

// MutationResult describes an accepted mutation.
type MutationResult struct {
	Table model.TableID
	Row   model.Row
	Write *model.WriteResult
}

// MutationOption configures a RowMutationEngine.
type MutationOption func(*RowMutationEngine)

// WithMutationObserver records every mutation outcome.
func WithMutationObserver(obs MutationObserver) MutationOption {
	return func(e *RowMutationEngine) { e.observer = obs }
}

// WithMutationClock overrides the operation clock.
func WithMutationClock(now func() time.Time) MutationOption {
	return func(e *RowMutationEngine) { e.now = now }
}

// WithRowIDGenerator overrides new row id generation.
func WithRowIDGenerator(newID func() string) MutationOption {
	return func(e *RowMutationEngine) { e.newID = newID }
}

// RowMutationEngine adds and edits rows in the remote table documents. Append
// splices the new row into the stored text so the change is a pure addition;
// Update re-serializes the whole document. Both write with the fingerprint
// they read and never retry.
type RowMutationEngine struct {
	store     driven.DocumentStore
	sanitizer *InputSanitizer
	tables    *TableRegistry
	users     UserSource
	observer  MutationObserver
	now       func() time.Time
	newID     func() string
}

// NewRowMutationEngine creates a RowMutationEngine.
func NewRowMutationEngine(store driven.DocumentStore, sanitizer *InputSanitizer, tables *TableRegistry, users UserSource, opts ...MutationOption) *RowMutationEngine {
	e := &RowMutationEngine{
		store:     store,
		sanitizer: sanitizer,
		tables:    tables,
		users:     users,
		now:       time.Now,
		newID:     func() string { return "new-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Append adds one row at the end of table's rows array.
func (e *RowMutationEngine) Append(ctx context.Context, table model.TableID, in RowInput) (_ *MutationResult, err error) {
	start := time.Now()
	defer func() { e.observe(table, "append", start, err) }()

	values, err := e.sanitizeValues(in.Values)
	if err != nil {
		return nil, err
	}

	path, err := e.tables.Path(table)
	if err != nil {
		return nil, err
	}

	file, err := e.store.GetFile(ctx, path, "")
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}

	doc, err := model.ParseTableDocument([]byte(file.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrParseFailure, table, err)
	}

	lineEnding := "\n"
	endPattern := rowsEndLF
	if strings.Contains(file.Content, "\r\n") {
		lineEnding = "\r\n"
		endPattern = rowsEndCRLF
	}

	loc := endPattern.FindStringIndex(file.Content)
	if loc == nil {
		return nil, fmt.Errorf("%w: %s: could not find rows end", model.ErrStructuralMismatch, table)
	}

	now := e.now().UTC().Truncate(time.Millisecond)
	id := e.newID()
	name := e.sanitizeName(in.Name)
	if name == "" {
		name = "Row " + id
	}
	row := model.Row{
		ID:        id,
		Name:      name,
		Index:     len(doc.Rows),
		Values:    values,
		CreatedAt: now,
		UpdatedAt: now,
	}

	rowText, err := indentRow(row, lineEnding)
	if err != nil {
		return nil, err
	}

	var patched strings.Builder
	patched.Grow(len(file.Content) + len(rowText) + 16)
	patched.WriteString(file.Content[:loc[0]])
	patched.WriteString("    }," + lineEnding)
	patched.WriteString(rowText)
	patched.WriteString(lineEnding + "  ]" + lineEnding + "}")
	// Keep the file's own final line ending, or lack of one.
	if strings.HasSuffix(file.Content, lineEnding) {
		patched.WriteString(lineEnding)
	}

	res, err := e.store.PutFile(ctx, driven.PutFileRequest{
		Path:        path,
		Branch:      file.Branch,
		Content:     patched.String(),
		Message:     fmt.Sprintf("Add new row to %s by %s", table, e.commitUser()),
		Fingerprint: file.Fingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", table, err)
	}

	slog.Info("row appended", "table", table, "row", id, "index", row.Index, "commit", res.CommitSHA)
	return &MutationResult{Table: table, Row: row, Write: res}, nil
}

// Update merges patch over the row with id rowID and rewrites the document.
func (e *RowMutationEngine) Update(ctx context.Context, table model.TableID, rowID string, patch RowPatch) (_ *MutationResult, err error) {
	start := time.Now()
	defer func() { e.observe(table, "update", start, err) }()

	var values, setValues model.Map
	if patch.Values != nil {
		if values, err = e.sanitizeValues(patch.Values); err != nil {
			return nil, err
		}
	}
	if patch.SetValues != nil {
		if setValues, err = e.sanitizeValues(patch.SetValues); err != nil {
			return nil, err
		}
	}

	path, err := e.tables.Path(table)
	if err != nil {
		return nil, err
	}

	file, err := e.store.GetFile(ctx, path, "")
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}

	doc, err := model.ParseTableDocument([]byte(file.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrParseFailure, table, err)
	}

	i := doc.RowByID(rowID)
	if i < 0 {
		return nil, fmt.Errorf("row %q in %s: %w", rowID, table, model.ErrNotFound)
	}

	if patch.ID != nil && *patch.ID != rowID {
		slog.Warn("ignoring row id change", "table", table, "row", rowID, "requested", *patch.ID)
	}

	row := doc.Rows[i].Clone()
	if patch.Name != nil {
		row.Name = e.sanitizeName(*patch.Name)
	}
	if values != nil {
		row.Values = values
	}
	if len(setValues) > 0 {
		if row.Values == nil {
			row.Values = model.Map{}
		}
		for k, v := range setValues {
			row.Values[k] = v
		}
	}
	row.ID = rowID
	row.UpdatedAt = laterTimestamp(e.now(), row.UpdatedAt)
	doc.Rows[i] = row

	content, err := doc.MarshalIndent()
	if err != nil {
		return nil, err
	}

	res, err := e.store.PutFile(ctx, driven.PutFileRequest{
		Path:        path,
		Branch:      file.Branch,
		Content:     string(content),
		Message:     fmt.Sprintf("Update row %s in %s by %s", rowID, table, e.commitUser()),
		Fingerprint: file.Fingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", table, err)
	}

	slog.Info("row updated", "table", table, "row", rowID, "commit", res.CommitSHA)
	return &MutationResult{Table: table, Row: row, Write: res}, nil
}

// Fetch reads and parses the current remote version of table.
func (e *RowMutationEngine) Fetch(ctx context.Context, table model.TableID) (*model.TableDocument, *model.RemoteFile, error) {
	path, err := e.tables.Path(table)
	if err != nil {
		return nil, nil, err
	}
	file, err := e.store.GetFile(ctx, path, "")
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	doc, err := model.ParseTableDocument([]byte(file.Content))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", model.ErrParseFailure, table, err)
	}
	return doc, file, nil
}

func (e *RowMutationEngine) sanitizeValues(values model.Map) (model.Map, error) {
	if values == nil {
		values = model.Map{}
	}
	res := e.sanitizer.SanitizeRowData(values)
	if !res.Valid {
		return nil, &model.ValidationError{Findings: res.Findings}
	}
	for _, f := range res.Findings {
		slog.Debug("row data key rewritten", "finding", f.String())
	}
	cleaned, _ := res.Value.(model.Map)
	return cleaned, nil
}

// sanitizeName cleans a row name. Findings are not blocking; the cleaned text
// is used as is.
func (e *RowMutationEngine) sanitizeName(name string) string {
	res := e.sanitizer.SanitizeString(name, model.StringLimits{MaxLength: maxRowNameLength})
	return model.ValueText(res.Value)
}

func (e *RowMutationEngine) commitUser() string {
	if e.users != nil {
		if u := e.users.CurrentUser(); u != nil && u.Login != "" {
			return u.Login
		}
	}
	return fallbackCommitUser
}

func (e *RowMutationEngine) observe(table model.TableID, op string, start time.Time, err error) {
	if e.observer != nil {
		e.observer.ObserveMutation(string(table), op, outcome(err), time.Since(start))
	}
}

// indentRow serializes row with two-space indentation and prefixes every line
// with four spaces, joined by lineEnding.
func indentRow(row model.Row, lineEnding string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(row); err != nil {
		return "", fmt.Errorf("encode row: %w", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, lineEnding), nil
}

// laterTimestamp returns now at millisecond precision, bumped past prev when
// the clock has not advanced beyond it.
func laterTimestamp(now, prev time.Time) time.Time {
	ts := now.UTC().Truncate(time.Millisecond)
	if !prev.IsZero() && !ts.After(prev) {
		ts = prev.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return ts
}

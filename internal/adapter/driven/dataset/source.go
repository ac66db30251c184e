// Package dataset implements the static, read-only table corpus the service
// starts with: the table documents as shipped with the build, or a directory
// of replacements.
package dataset

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

//go:embed seed/*.json
var seedFS embed.FS

// Embedded file names of the shipped documents.
const (
	seedTableA = "seed/table_a.json"
	seedTableB = "seed/table_b.json"
)

// Compile-time interface satisfaction check.
var _ driven.TableSource = (*Source)(nil)

// Source loads each table document once and serves copies of it.
type Source struct {
	fsys  fs.FS
	files map[model.TableID]string

	mu    sync.Mutex
	cache map[model.TableID]*model.TableDocument
}

// NewEmbedded returns a Source backed by the documents compiled into the
// binary.
func NewEmbedded() *Source {
	return NewSource(seedFS, map[model.TableID]string{
		model.TableA: seedTableA,
		model.TableB: seedTableB,
	})
}

// NewDir returns a Source reading from dir. Each table is read from the base
// name of its repository path, so dir can be a checkout of the data folder.
func NewDir(dir, tableAPath, tableBPath string) *Source {
	return NewSource(os.DirFS(dir), map[model.TableID]string{
		model.TableA: path.Base(tableAPath),
		model.TableB: path.Base(tableBPath),
	})
}

// NewSource returns a Source reading the given file for each table from fsys.
func NewSource(fsys fs.FS, files map[model.TableID]string) *Source {
	return &Source{
		fsys:  fsys,
		files: files,
		cache: make(map[model.TableID]*model.TableDocument),
	}
}

// Load returns a copy of table's document. A missing or malformed document
// yields an empty table; individual invalid columns and rows are dropped with
// a warning.
func (s *Source) Load(_ context.Context, table model.TableID) (*model.TableDocument, error) {
	name, ok := s.files[table]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, model.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.cache[table]
	if !ok {
		doc = s.read(table, name)
		s.cache[table] = doc
	}
	return cloneDocument(doc), nil
}

// Preload reads every table so problems are logged at startup.
func (s *Source) Preload(ctx context.Context) {
	for _, table := range model.Tables {
		doc, err := s.Load(ctx, table)
		if err != nil {
			continue
		}
		slog.Info("table loaded", "table", table, "columns", len(doc.Columns), "rows", len(doc.Rows))
	}
}

func (s *Source) read(table model.TableID, name string) *model.TableDocument {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("table document missing, using empty table", "table", table, "file", name)
		} else {
			slog.Warn("table document unreadable, using empty table", "table", table, "file", name, "error", err)
		}
		return emptyDocument()
	}

	doc, err := Validate(data)
	if err != nil {
		slog.Warn("table document invalid, using empty table", "table", table, "file", name, "error", err)
		return emptyDocument()
	}
	return doc
}

// Validate decodes a table document, keeping only structurally valid
// entries. Columns need string id, name and type and an object format; rows
// need string id and name, a numeric index and an object of values.
func Validate(data []byte) (*model.TableDocument, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	var rawCols, rawRows []json.RawMessage
	if err := json.Unmarshal(top["columns"], &rawCols); err != nil || rawCols == nil {
		return nil, fmt.Errorf("document has no columns array")
	}
	if err := json.Unmarshal(top["rows"], &rawRows); err != nil || rawRows == nil {
		return nil, fmt.Errorf("document has no rows array")
	}

	doc := &model.TableDocument{Columns: []model.Column{}, Rows: []model.Row{}}

	for i, raw := range rawCols {
		var col model.Column
		if reason := checkShape(raw, columnShape); reason != "" {
			slog.Warn("dropping invalid column", "position", i, "reason", reason)
			continue
		}
		if err := json.Unmarshal(raw, &col); err != nil {
			slog.Warn("dropping invalid column", "position", i, "error", err)
			continue
		}
		doc.Columns = append(doc.Columns, col)
	}

	for i, raw := range rawRows {
		var row model.Row
		if reason := checkShape(raw, rowShape); reason != "" {
			slog.Warn("dropping invalid row", "position", i, "reason", reason)
			continue
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			slog.Warn("dropping invalid row", "position", i, "error", err)
			continue
		}
		doc.Rows = append(doc.Rows, row)
	}

	return doc, nil
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindObject
)

type fieldRule struct {
	name string
	kind fieldKind
}

var (
	columnShape = []fieldRule{{"id", kindString}, {"name", kindString}, {"type", kindString}, {"format", kindObject}}
	rowShape    = []fieldRule{{"id", kindString}, {"name", kindString}, {"index", kindNumber}, {"values", kindObject}}
)

// checkShape returns why raw does not satisfy rules, or "" when it does.
func checkShape(raw json.RawMessage, rules []fieldRule) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return "not an object"
	}
	for _, rule := range rules {
		v, ok := obj[rule.name]
		if !ok {
			return "missing " + rule.name
		}
		switch rule.kind {
		case kindString:
			if _, ok := v.(string); !ok {
				return rule.name + " is not a string"
			}
		case kindNumber:
			if _, ok := v.(float64); !ok {
				return rule.name + " is not a number"
			}
		case kindObject:
			if _, ok := v.(map[string]any); !ok {
				return rule.name + " is not an object"
			}
		}
	}
	return ""
}

func emptyDocument() *model.TableDocument {
	return &model.TableDocument{Columns: []model.Column{}, Rows: []model.Row{}}
}

func cloneDocument(doc *model.TableDocument) *model.TableDocument {
	out := &model.TableDocument{
		Columns: append([]model.Column(nil), doc.Columns...),
		Rows:    make([]model.Row, len(doc.Rows)),
		Extra:   doc.Extra,
	}
	if out.Columns == nil {
		out.Columns = []model.Column{}
	}
	for i, row := range doc.Rows {
		out.Rows[i] = row.Clone()
	}
	return out
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for row timestamps, matching
// what browser editors write (millisecond precision, UTC "Z").
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// TableDocument is the column/row structure of one editable dataset.
// Unknown top-level keys are carried in Extra and written back unchanged.
type TableDocument struct {
	Columns []Column
	Rows    []Row
	Extra   map[string]json.RawMessage
}

// Column describes one field of a table.
type Column struct {
	ID     string
	Name   string
	Type   string
	Format ColumnFormat
	Extra  map[string]json.RawMessage
}

// ColumnFormat is the rendering/parsing hint for a column: its scalar kind,
// whether values are arrays, and an optional list of enumerated options.
type ColumnFormat struct {
	Type    string
	IsArray bool
	Options []string
	Extra   map[string]json.RawMessage
}

// Row is one record of a table. Index is the position at creation time and
// is never renumbered.
type Row struct {
	ID        string
	Name      string
	Index     int
	Values    Map
	CreatedAt time.Time
	UpdatedAt time.Time
	Extra     map[string]json.RawMessage
}

// Value returns the row's value for the named column, or nil when absent.
func (r Row) Value(column string) Value {
	if r.Values == nil {
		return nil
	}
	return r.Values[column]
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := r
	out.Values = r.Values.Clone()
	out.Extra = cloneRaw(r.Extra)
	return out
}

// RowByID returns the position of the row with the given id, or -1.
func (d *TableDocument) RowByID(id string) int {
	for i, row := range d.Rows {
		if row.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks that column ids and row ids are unique within the document.
func (d *TableDocument) Validate() error {
	seen := make(map[string]struct{}, len(d.Columns))
	for _, col := range d.Columns {
		if _, dup := seen[col.ID]; dup {
			return fmt.Errorf("duplicate column id %q", col.ID)
		}
		seen[col.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(d.Rows))
	for _, row := range d.Rows {
		if _, dup := seen[row.ID]; dup {
			return fmt.Errorf("duplicate row id %q", row.ID)
		}
		seen[row.ID] = struct{}{}
	}
	return nil
}

// ParseTableDocument decodes a table document. A document without both a
// columns and a rows array is rejected.
func ParseTableDocument(data []byte) (*TableDocument, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	colsRaw, ok := raw["columns"]
	if !ok {
		return nil, fmt.Errorf("document has no columns array")
	}
	rowsRaw, ok := raw["rows"]
	if !ok {
		return nil, fmt.Errorf("document has no rows array")
	}

	doc := &TableDocument{}
	if err := json.Unmarshal(colsRaw, &doc.Columns); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}
	if err := json.Unmarshal(rowsRaw, &doc.Rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if doc.Columns == nil {
		doc.Columns = []Column{}
	}
	if doc.Rows == nil {
		doc.Rows = []Row{}
	}

	delete(raw, "columns")
	delete(raw, "rows")
	if len(raw) > 0 {
		doc.Extra = raw
	}
	return doc, nil
}

// MarshalIndent renders the document with two-space indentation, LF line
// endings and a trailing newline.
func (d *TableDocument) MarshalIndent() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (d TableDocument) MarshalJSON() ([]byte, error) {
	cols := d.Columns
	if cols == nil {
		cols = []Column{}
	}
	rows := d.Rows
	if rows == nil {
		rows = []Row{}
	}
	w := newObjectWriter()
	if err := w.field("columns", cols); err != nil {
		return nil, err
	}
	if err := w.field("rows", rows); err != nil {
		return nil, err
	}
	return w.finish(d.Extra), nil
}

// MarshalJSON implements json.Marshaler.
func (c Column) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	if err := w.field("id", c.ID); err != nil {
		return nil, err
	}
	if err := w.field("name", c.Name); err != nil {
		return nil, err
	}
	if err := w.field("type", c.Type); err != nil {
		return nil, err
	}
	if err := w.field("format", c.Format); err != nil {
		return nil, err
	}
	return w.finish(c.Extra), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Column) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := takeField(raw, "id", &c.ID); err != nil {
		return err
	}
	if err := takeField(raw, "name", &c.Name); err != nil {
		return err
	}
	if err := takeField(raw, "type", &c.Type); err != nil {
		return err
	}
	if err := takeField(raw, "format", &c.Format); err != nil {
		return err
	}
	c.Extra = nonEmpty(raw)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f ColumnFormat) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	if err := w.field("type", f.Type); err != nil {
		return nil, err
	}
	if err := w.field("isArray", f.IsArray); err != nil {
		return nil, err
	}
	if f.Options != nil {
		if err := w.field("options", f.Options); err != nil {
			return nil, err
		}
	}
	return w.finish(f.Extra), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *ColumnFormat) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := takeField(raw, "type", &f.Type); err != nil {
		return err
	}
	if err := takeField(raw, "isArray", &f.IsArray); err != nil {
		return err
	}
	if err := takeField(raw, "options", &f.Options); err != nil {
		return err
	}
	f.Extra = nonEmpty(raw)
	return nil
}

// MarshalJSON implements json.Marshaler. Field order is id, name, index,
// values, createdAt, updatedAt, then any extra keys sorted.
func (r Row) MarshalJSON() ([]byte, error) {
	values := r.Values
	if values == nil {
		values = Map{}
	}
	w := newObjectWriter()
	if err := w.field("id", r.ID); err != nil {
		return nil, err
	}
	if err := w.field("name", r.Name); err != nil {
		return nil, err
	}
	if err := w.field("index", r.Index); err != nil {
		return nil, err
	}
	if err := w.field("values", values); err != nil {
		return nil, err
	}
	if !r.CreatedAt.IsZero() {
		if err := w.field("createdAt", FormatTimestamp(r.CreatedAt)); err != nil {
			return nil, err
		}
	}
	if !r.UpdatedAt.IsZero() {
		if err := w.field("updatedAt", FormatTimestamp(r.UpdatedAt)); err != nil {
			return nil, err
		}
	}
	return w.finish(r.Extra), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := takeField(raw, "id", &r.ID); err != nil {
		return err
	}
	if err := takeField(raw, "name", &r.Name); err != nil {
		return err
	}
	if err := takeField(raw, "index", &r.Index); err != nil {
		return err
	}
	if err := takeField(raw, "values", &r.Values); err != nil {
		return err
	}

	var created, updated string
	if err := takeField(raw, "createdAt", &created); err != nil {
		return err
	}
	if err := takeField(raw, "updatedAt", &updated); err != nil {
		return err
	}
	var err error
	if r.CreatedAt, err = ParseTimestamp(created); err != nil {
		return fmt.Errorf("row %q createdAt: %w", r.ID, err)
	}
	if r.UpdatedAt, err = ParseTimestamp(updated); err != nil {
		return fmt.Errorf("row %q updatedAt: %w", r.ID, err)
	}

	r.Extra = nonEmpty(raw)
	return nil
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO-8601 timestamp. The empty string yields the
// zero time.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// takeField decodes raw[key] into dst when present (and not null) and removes
// it from raw so that only unknown keys remain.
func takeField(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	delete(raw, key)
	if string(v) == "null" {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

func nonEmpty(raw map[string]json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func cloneRaw(raw map[string]json.RawMessage) map[string]json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		out[k] = slices.Clone(v)
	}
	return out
}

// objectWriter builds a JSON object with a fixed key order followed by
// sorted extra keys.
type objectWriter struct {
	buf   bytes.Buffer
	count int
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	w.writeKey(key)
	w.buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

func (w *objectWriter) writeKey(key string) {
	if w.count > 0 {
		w.buf.WriteByte(',')
	}
	w.count++
	_ = writeString(&w.buf, key)
	w.buf.WriteByte(':')
}

func (w *objectWriter) finish(extra map[string]json.RawMessage) []byte {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		w.writeKey(k)
		w.buf.Write(extra[k])
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}

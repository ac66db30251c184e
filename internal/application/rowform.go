package application

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

var rowIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidRowID reports whether id is acceptable as a caller-supplied row id.
func ValidRowID(id string) bool {
	return rowIDPattern.MatchString(id)
}

// IsRequiredColumn reports whether a form must supply column: any column
// whose name mentions a name or title.
func IsRequiredColumn(col model.Column) bool {
	name := strings.ToLower(col.Name)
	return strings.Contains(name, "name") || strings.Contains(name, "title")
}

// CheckRequired returns a *model.ValidationError listing the required
// columns left blank in form, keyed by column id.
func CheckRequired(columns []model.Column, form map[string]string) error {
	var findings []model.Finding
	for _, col := range columns {
		if col.Format.Type == "checkbox" || !IsRequiredColumn(col) {
			continue
		}
		if strings.TrimSpace(form[col.ID]) == "" {
			findings = append(findings, model.Finding{Path: col.Name, Message: "Value is required"})
		}
	}
	if len(findings) > 0 {
		return &model.ValidationError{Findings: findings}
	}
	return nil
}

// BindForm converts submitted form fields, keyed by column id, into a row.
// Values are keyed by column name and normalized per column format; blank
// fields are omitted. The row name comes from the first name or title column
// with a value, else a timestamped placeholder.
func BindForm(columns []model.Column, form map[string]string, now time.Time) RowInput {
	values := model.Map{}
	for _, col := range columns {
		if v, ok := normalizeFormValue(col, form[col.ID]); ok {
			values[col.Name] = v
		}
	}

	var name string
	for _, col := range columns {
		if !IsRequiredColumn(col) {
			continue
		}
		if v, ok := values[col.Name]; ok {
			name = formText(v)
		}
		break
	}
	if name == "" {
		name = "New Entry " + model.FormatTimestamp(now)
	}

	return RowInput{Name: name, Values: values}
}

func normalizeFormValue(col model.Column, raw string) (model.Value, bool) {
	if col.Format.Type == "checkbox" {
		return model.Bool(formBool(raw)), true
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	if col.Format.IsArray {
		var parts model.List
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, model.Text(part))
			}
		}
		if len(parts) == 0 {
			return nil, false
		}
		return parts, true
	}

	if col.Format.Type == "number" {
		f, ok := parseNumericText(raw)
		if !ok {
			return nil, false
		}
		return model.Number(f), true
	}

	return model.Text(raw), true
}

func formBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "yes", "checked":
		return true
	default:
		return false
	}
}

// FormValues renders a row's values as form fields keyed by column id, the
// inverse of BindForm for editing.
func FormValues(columns []model.Column, row model.Row) map[string]string {
	out := make(map[string]string, len(columns))
	for _, col := range columns {
		v := row.Value(col.Name)
		if model.IsNull(v) {
			continue
		}
		out[col.ID] = formText(v)
	}
	return out
}

func formText(v model.Value) string {
	if list, ok := v.(model.List); ok {
		parts := make([]string, len(list))
		for i, elem := range list {
			parts[i] = model.ValueText(elem)
		}
		return strings.Join(parts, ", ")
	}
	return model.ValueText(v)
}

// SelectOptions returns the distinct non-empty values present for column
// across rows, array values flattened, falling back to the column's declared
// options when the rows hold none. The result is sorted.
func (c *ValueComparator) SelectOptions(column model.Column, rows []model.Row) []string {
	seen := make(map[string]struct{})
	add := func(v model.Value) {
		if model.IsNull(v) {
			return
		}
		s := model.ValueText(v)
		if s == "" {
			return
		}
		seen[s] = struct{}{}
	}

	for _, row := range rows {
		v := row.Value(column.Name)
		if list, ok := v.(model.List); ok {
			for _, elem := range list {
				add(elem)
			}
			continue
		}
		add(v)
	}

	if len(seen) == 0 {
		for _, opt := range column.Format.Options {
			if opt != "" {
				seen[opt] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	slices.SortFunc(out, func(a, b string) int {
		if r := c.collator.CompareString(a, b); r != 0 {
			return r
		}
		return strings.Compare(a, b)
	})
	return out
}

package web

import (
	"fmt"
	"net/url"
	"strings"

	vm "github.com/ericfisherdev/policypanel/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/policypanel/internal/application"
	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

const dateLayout = "2006-01-02 15:04 UTC"

func tablePath(table model.TableID) string {
	return "/tables/" + table.Label()
}

func rowPath(table model.TableID, id string) string {
	return tablePath(table) + "/rows/" + url.PathEscape(id)
}

func sortPath(table model.TableID, column string, dir application.SortDirection) string {
	q := url.Values{"sort": {column}, "dir": {string(dir)}}
	return tablePath(table) + "?" + q.Encode()
}

func toTableLinks(active model.TableID) []vm.TableLinkViewModel {
	links := make([]vm.TableLinkViewModel, 0, len(model.Tables))
	for _, t := range model.Tables {
		links = append(links, vm.TableLinkViewModel{
			Label:  "Table " + t.Label(),
			Path:   tablePath(t),
			Active: t == active,
		})
	}
	return links
}

// toTablePageViewModel converts a table document into a listing. rows is the
// document's rows in display order; sortColumn is empty when unsorted.
func toTablePageViewModel(
	table model.TableID,
	doc *model.TableDocument,
	rows []model.Row,
	sortColumn string,
	dir application.SortDirection,
	session vm.SessionViewModel,
) vm.TablePageViewModel {
	headers := make([]vm.ColumnHeaderViewModel, 0, len(doc.Columns))
	for _, col := range doc.Columns {
		active := col.Name == sortColumn
		next := application.SortAsc
		if active && dir == application.SortAsc {
			next = application.SortDesc
		}
		h := vm.ColumnHeaderViewModel{
			Name:     col.Name,
			SortPath: sortPath(table, col.Name, next),
			Active:   active,
		}
		if active {
			h.Direction = string(dir)
		}
		headers = append(headers, h)
	}

	out := make([]vm.RowViewModel, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, 0, len(doc.Columns))
		for _, col := range doc.Columns {
			cells = append(cells, application.FormatCell(row.Value(col.Name), col))
		}
		out = append(out, vm.RowViewModel{
			ID:         row.ID,
			Name:       row.Name,
			DetailPath: rowPath(table, row.ID),
			Cells:      cells,
		})
	}

	return vm.TablePageViewModel{
		Table:     string(table),
		Label:     table.Label(),
		Tables:    toTableLinks(table),
		Columns:   headers,
		Rows:      out,
		ClearPath: tablePath(table),
		NewPath:   tablePath(table) + "/new",
		Sorted:    sortColumn != "",
		Session:   session,
	}
}

// toRowCardViewModel converts a row into a detail card. Long-text values are
// rendered from markdown; link values become anchors only when they are
// absolute http(s) URLs.
func toRowCardViewModel(
	table model.TableID,
	columns []model.Column,
	row model.Row,
	sanitizer *application.InputSanitizer,
	session vm.SessionViewModel,
) vm.RowCardViewModel {
	fields := make([]vm.FieldViewModel, 0, len(columns))
	for _, col := range columns {
		v := row.Value(col.Name)
		field := vm.FieldViewModel{Label: col.Name, Text: application.FormatCell(v, col)}

		switch col.Format.Type {
		case "longtext":
			if text, ok := v.(model.Text); ok && strings.TrimSpace(string(text)) != "" {
				field.HTML = RenderMarkdown(string(text))
			}
		case "link":
			if text, ok := v.(model.Text); ok {
				link := sanitizer.SanitizeURL(string(text))
				if link != "" && sanitizer.IsValidURL(link) {
					field.Link = link
				}
			}
		}
		fields = append(fields, field)
	}

	card := vm.RowCardViewModel{
		Table:    string(table),
		Label:    table.Label(),
		ID:       row.ID,
		Name:     row.Name,
		BackPath: tablePath(table),
		Fields:   fields,
		Session:  session,
	}
	if !row.CreatedAt.IsZero() {
		card.CreatedAt = row.CreatedAt.UTC().Format(dateLayout)
	}
	if !row.UpdatedAt.IsZero() {
		card.UpdatedAt = row.UpdatedAt.UTC().Format(dateLayout)
	}
	return card
}

// toRowFormViewModel builds the add-row form. form holds previously
// submitted values keyed by column id; rows supply select options.
func toRowFormViewModel(
	table model.TableID,
	columns []model.Column,
	rows []model.Row,
	form map[string]string,
	cmp *application.ValueComparator,
	errs []string,
	session vm.SessionViewModel,
) vm.RowFormViewModel {
	fields := make([]vm.FormFieldViewModel, 0, len(columns))
	for _, col := range columns {
		f := vm.FormFieldViewModel{
			ID:       col.ID,
			Label:    col.Name,
			Value:    form[col.ID],
			Required: col.Format.Type != "checkbox" && application.IsRequiredColumn(col),
		}

		switch col.Format.Type {
		case "checkbox":
			f.Kind = "checkbox"
			f.Checked = form[col.ID] != ""
		case "number":
			f.Kind = "number"
		case "longtext":
			f.Kind = "textarea"
			f.Hint = "Markdown is supported."
		case "link":
			f.Kind = "url"
		case "select":
			f.Kind = "select"
			f.Multiple = col.Format.IsArray
			f.Options = cmp.SelectOptions(col, rows)
		default:
			f.Kind = "text"
		}
		if col.Format.IsArray && f.Kind != "select" {
			f.Hint = "Separate values with commas."
		}
		fields = append(fields, f)
	}

	return vm.RowFormViewModel{
		Table:      string(table),
		Label:      table.Label(),
		Action:     tablePath(table) + "/rows",
		BackPath:   tablePath(table),
		Fields:     fields,
		Errors:     errs,
		NeedsToken: !session.Authenticated,
		Session:    session,
	}
}

// selected reports whether option is among the comma-separated values of a
// submitted field.
func selected(value, option string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == option {
			return true
		}
	}
	return false
}

func pageTitle(label string) string {
	return fmt.Sprintf("Policy Panel · Table %s", label)
}

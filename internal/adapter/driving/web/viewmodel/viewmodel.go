// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// SessionViewModel describes the signed-in account shown in the page header.
type SessionViewModel struct {
	Authenticated bool
	User          string
	CSRFToken     string
}

// TableLinkViewModel is one entry of the table switcher.
type TableLinkViewModel struct {
	Label  string
	Path   string
	Active bool
}

// ColumnHeaderViewModel is a sortable column header. SortPath toggles the
// direction when the column is already active.
type ColumnHeaderViewModel struct {
	Name      string
	SortPath  string
	Active    bool
	Direction string
}

// RowViewModel holds the formatted cells of one table row.
type RowViewModel struct {
	ID         string
	Name       string
	DetailPath string
	Cells      []string
}

// TablePageViewModel holds presentation-ready data for a table listing.
type TablePageViewModel struct {
	Table     string
	Label     string
	Tables    []TableLinkViewModel
	Columns   []ColumnHeaderViewModel
	Rows      []RowViewModel
	ClearPath string
	NewPath   string
	Sorted    bool
	Session   SessionViewModel
}

// FieldViewModel is one labelled value on a row card. HTML is set for
// long-text fields rendered from markdown and is already sanitized.
type FieldViewModel struct {
	Label string
	Text  string
	HTML  string
	Link  string
}

// RowCardViewModel holds presentation-ready data for a single row. Notice
// is shown above the card after a successful save.
type RowCardViewModel struct {
	Notice    string
	Table     string
	Label     string
	ID        string
	Name      string
	CreatedAt string
	UpdatedAt string
	BackPath  string
	Fields    []FieldViewModel
	Session   SessionViewModel
}

// FormFieldViewModel is one input of the add-row form. Kind is one of
// text, textarea, number, checkbox, select or url.
type FormFieldViewModel struct {
	ID       string
	Label    string
	Kind     string
	Value    string
	Hint     string
	Required bool
	Checked  bool
	Multiple bool
	Options  []string
}

// RowFormViewModel holds presentation-ready data for the add-row form.
// NeedsToken adds a token input so the form can start a session on submit.
type RowFormViewModel struct {
	Table      string
	Label      string
	Action     string
	BackPath   string
	Fields     []FormFieldViewModel
	Errors     []string
	NeedsToken bool
	Session    SessionViewModel
}

// LoginViewModel holds presentation-ready data for the token entry page.
type LoginViewModel struct {
	Next    string
	Error   string
	Session SessionViewModel
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/policypanel/internal/application"
	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// TableResult is the JSON form of the show command.
type TableResult struct {
	Table       model.TableID  `json:"table"`
	Columns     []model.Column `json:"columns"`
	Rows        []model.Row    `json:"rows"`
	Fingerprint string         `json:"fingerprint,omitempty"`
}

// MutationResult is the JSON form of the add and update commands.
type MutationResult struct {
	Table       model.TableID `json:"table"`
	Row         model.Row     `json:"row"`
	Fingerprint string        `json:"fingerprint"`
	Commit      string        `json:"commit"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		sortColumn string
		desc       bool
		remote     bool
	)

	cmd := &cobra.Command{
		Use:   "show <table>",
		Short: "Print a table",
		Long: `Print a table. Without --remote the table shipped with the service is
shown; with --remote the current version is fetched from GitHub.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := model.ParseTableID(args[0])
			if err != nil {
				return err
			}

			res := TableResult{Table: id}
			var doc *model.TableDocument
			if remote {
				if err := rootOpts.requireSession(ctx); err != nil {
					return err
				}
				d, file, err := rootOpts.app.Engine.Fetch(ctx, id)
				if err != nil {
					return err
				}
				doc, res.Fingerprint = d, file.Fingerprint
			} else {
				doc, err = rootOpts.app.Source.Load(ctx, id)
				if err != nil {
					return err
				}
			}

			res.Columns, res.Rows = doc.Columns, doc.Rows
			if sortColumn != "" {
				dir := application.SortAsc
				if desc {
					dir = application.SortDesc
				}
				res.Rows = rootOpts.app.Comparator.SortRows(doc.Rows, sortColumn, dir)
			}

			return rootOpts.formatter(cmd).Success(renderTable(res), res)
		},
	}

	cmd.Flags().StringVar(&sortColumn, "sort", "", "column name to sort by")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the current version from GitHub")

	return cmd
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name string
		sets []string
	)

	cmd := &cobra.Command{
		Use:   "add <table>",
		Short: "Append a row to a table",
		Long: `Append a row to a table. Each --set assigns one column by name; values
that parse as JSON (numbers, booleans, arrays) are stored as such, anything
else as text.`,
		Example: `  policyctl add A --name "AI Act" --set "Policy Title=AI Act" --set Year=2024`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := model.ParseTableID(args[0])
			if err != nil {
				return err
			}
			values, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			if err := rootOpts.requireSession(ctx); err != nil {
				return err
			}

			res, err := rootOpts.app.Engine.Append(ctx, id, application.RowInput{Name: name, Values: values})
			if err != nil {
				return err
			}
			out := toMutationResult(res)
			text := fmt.Sprintf("Added row %s to %s (commit %s).", res.Row.ID, id, res.Write.CommitSHA)
			return rootOpts.formatter(cmd).Success(text, out)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "row name (defaults to a generated name)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "column=value assignment (repeatable)")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name string
		sets []string
	)

	cmd := &cobra.Command{
		Use:     "update <table> <row-id>",
		Short:   "Edit a row of a table",
		Example: `  policyctl update B b-0002 --set Pages=1300`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := model.ParseTableID(args[0])
			if err != nil {
				return err
			}
			rowID := args[1]
			if !application.ValidRowID(rowID) {
				return &model.ValidationError{Findings: []model.Finding{{Message: fmt.Sprintf("invalid row id %q", rowID)}}}
			}
			values, err := parseAssignments(sets)
			if err != nil {
				return err
			}

			patch := application.RowPatch{SetValues: values}
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if patch.Name == nil && len(values) == 0 {
				return &model.ValidationError{Findings: []model.Finding{{Message: "nothing to update: pass --name or --set"}}}
			}
			if err := rootOpts.requireSession(ctx); err != nil {
				return err
			}

			res, err := rootOpts.app.Engine.Update(ctx, id, rowID, patch)
			if err != nil {
				return err
			}
			out := toMutationResult(res)
			text := fmt.Sprintf("Updated row %s in %s (commit %s).", rowID, id, res.Write.CommitSHA)
			return rootOpts.formatter(cmd).Success(text, out)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new row name")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "column=value assignment (repeatable)")

	return cmd
}

func toMutationResult(res *application.MutationResult) MutationResult {
	return MutationResult{
		Table:       res.Table,
		Row:         res.Row,
		Fingerprint: res.Write.Fingerprint,
		Commit:      res.Write.CommitSHA,
	}
}

// parseAssignments turns column=value pairs into row values.
func parseAssignments(sets []string) (model.Map, error) {
	values := model.Map{}
	var findings []model.Finding
	for _, s := range sets {
		col, raw, ok := strings.Cut(s, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			findings = append(findings, model.Finding{Message: fmt.Sprintf("invalid assignment %q: want column=value", s)})
			continue
		}
		values[col] = parseCLIValue(raw)
	}
	if len(findings) > 0 {
		return nil, &model.ValidationError{Findings: findings}
	}
	return values, nil
}

func parseCLIValue(raw string) model.Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		if v, err := model.ParseValue([]byte(trimmed)); err == nil {
			return v
		}
	}
	return model.Text(raw)
}

func renderTable(res TableResult) string {
	if len(res.Columns) == 0 && len(res.Rows) == 0 {
		return fmt.Sprintf("Table %s is empty.", res.Table.Label())
	}

	headers := make([]string, 0, len(res.Columns)+2)
	headers = append(headers, "ID", "Name")
	for _, col := range res.Columns {
		headers = append(headers, col.Name)
	}

	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := make([]string, 0, len(headers))
		cells = append(cells, row.ID, row.Name)
		for _, col := range res.Columns {
			cells = append(cells, application.FormatCell(row.Value(col.Name), col))
		}
		rows = append(rows, cells)
	}

	header := lipgloss.NewStyle().Bold(true)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return lipgloss.NewStyle()
		})
	return t.String()
}

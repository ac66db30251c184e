package application

import (
	"fmt"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// TableRegistry resolves table identifiers to repository-relative document
// paths.
type TableRegistry struct {
	paths map[model.TableID]string
}

// NewTableRegistry creates a registry for the two editable tables.
func NewTableRegistry(tableAPath, tableBPath string) *TableRegistry {
	return &TableRegistry{paths: map[model.TableID]string{
		model.TableA: tableAPath,
		model.TableB: tableBPath,
	}}
}

// Path returns the document path for table.
func (r *TableRegistry) Path(table model.TableID) (string, error) {
	p, ok := r.paths[table]
	if !ok || p == "" {
		return "", fmt.Errorf("table %q: %w", table, model.ErrNotFound)
	}
	return p, nil
}

// Resolve parses a user-supplied table name and returns its id and path.
func (r *TableRegistry) Resolve(name string) (model.TableID, string, error) {
	id, err := model.ParseTableID(name)
	if err != nil {
		return "", "", err
	}
	p, err := r.Path(id)
	if err != nil {
		return "", "", err
	}
	return id, p, nil
}

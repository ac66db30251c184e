package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoSettingsStore = (*RepoSettingsRepo)(nil)

// RepoSettingsRepo is the SQLite implementation of the RepoSettingsStore port.
// The overrides live in a single row; empty columns mean "use the default".
type RepoSettingsRepo struct {
	db *DB
}

// NewRepoSettingsRepo creates a new RepoSettingsRepo backed by the given DB.
func NewRepoSettingsRepo(db *DB) *RepoSettingsRepo {
	return &RepoSettingsRepo{db: db}
}

// GetOverrides returns the stored overrides, or a zero value when none were set.
func (r *RepoSettingsRepo) GetOverrides(ctx context.Context) (model.RepoOverrides, error) {
	const query = `SELECT owner, name, branch FROM repo_settings WHERE id = 1`

	var o model.RepoOverrides
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&o.Owner, &o.Name, &o.Branch)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RepoOverrides{}, nil
	}
	if err != nil {
		return model.RepoOverrides{}, fmt.Errorf("get repo overrides: %w", err)
	}
	return o, nil
}

// SetOverrides replaces the stored overrides.
func (r *RepoSettingsRepo) SetOverrides(ctx context.Context, o model.RepoOverrides) error {
	const query = `
		INSERT INTO repo_settings (id, owner, name, branch, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			name = excluded.name,
			branch = excluded.branch,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, o.Owner, o.Name, o.Branch); err != nil {
		return fmt.Errorf("set repo overrides: %w", err)
	}
	return nil
}

package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

func TestRepoSettingsRepo_DefaultsToZero(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepoSettingsRepo(db)

	got, err := repo.GetOverrides(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RepoOverrides{}, got)
}

func TestRepoSettingsRepo_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepoSettingsRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.SetOverrides(ctx, model.RepoOverrides{Owner: "acme", Name: "policies"}))
	got, err := repo.GetOverrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RepoOverrides{Owner: "acme", Name: "policies"}, got)

	require.NoError(t, repo.SetOverrides(ctx, model.RepoOverrides{Branch: "staging"}))
	got, err = repo.GetOverrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RepoOverrides{Branch: "staging"}, got)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, ":memory:", db.Path())
}

package driven

import (
	"context"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// RepoSettingsStore defines the driven port for the durable repo target
// overrides. GetOverrides returns a zero value when nothing has been set;
// callers fall back to the configured defaults field by field.
type RepoSettingsStore interface {
	GetOverrides(ctx context.Context) (model.RepoOverrides, error)
	SetOverrides(ctx context.Context, overrides model.RepoOverrides) error
}

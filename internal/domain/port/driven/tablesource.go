package driven

import (
	"context"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// TableSource provides the static, read-only table corpus loaded at startup.
type TableSource interface {
	// Load returns the initial document for table. A missing or unusable
	// document yields an empty table rather than an error.
	Load(ctx context.Context, table model.TableID) (*model.TableDocument, error)
}

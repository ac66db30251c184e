// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// Health status values.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// Pinger is satisfied by the local database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReport is the service-level health view: local storage reachability,
// the session state and the repository the tables are edited in.
type HealthReport struct {
	Status        string
	Database      string
	Authenticated bool
	User          *model.Identity
	Repo          model.RepoTarget
	Time          time.Time
}

// HealthService assembles health reports. It depends only on narrow
// interfaces so it can be exercised without a database.
type HealthService struct {
	db      Pinger
	creds   *CredentialManager
	targets interface{ Target() model.RepoTarget }
}

// NewHealthService creates a HealthService. db may be nil when the service
// runs without local persistence.
func NewHealthService(db Pinger, creds *CredentialManager, targets interface{ Target() model.RepoTarget }) *HealthService {
	return &HealthService{db: db, creds: creds, targets: targets}
}

// Check reports current health. A failed database ping degrades the report
// but is not returned as an error.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:   HealthOK,
		Database: "disabled",
		Time:     time.Now().UTC(),
	}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			slog.Warn("database ping failed", "error", err)
			report.Status = HealthDegraded
			report.Database = "unreachable"
		} else {
			report.Database = "ok"
		}
	}

	if s.creds != nil {
		report.Authenticated = s.creds.IsAuthenticated()
		report.User = s.creds.CurrentUser()
	}
	if s.targets != nil {
		report.Repo = s.targets.Target()
	}
	return report
}

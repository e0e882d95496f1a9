package storage

import (
	"context"

	"github.com/voltgrid/server/internal/domain/changes"
	"github.com/voltgrid/server/internal/domain/collaborators"
	"github.com/voltgrid/server/internal/domain/issues"
	"github.com/voltgrid/server/internal/domain/stations"
	"github.com/voltgrid/server/internal/domain/trust"
	"github.com/voltgrid/server/internal/domain/users"
	"github.com/voltgrid/server/internal/domain/verification"
)

// Repository groups data access by domain.
type Repository interface {
	Stations() stations.Repository
	Changes() changes.Repository
	Verification() verification.Repository
	Collaborators() collaborators.Repository
	Issues() issues.Repository
	Trust() trust.Repository
	Users() users.Repository

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltgrid/server/internal/config"
	"github.com/voltgrid/server/internal/domain/changes"
	"github.com/voltgrid/server/internal/domain/collaborators"
	"github.com/voltgrid/server/internal/domain/issues"
	"github.com/voltgrid/server/internal/domain/stations"
	"github.com/voltgrid/server/internal/domain/trust"
	"github.com/voltgrid/server/internal/domain/users"
	"github.com/voltgrid/server/internal/domain/verification"
	"github.com/voltgrid/server/internal/storage"
)

// NewPool opens a pgx connection pool with the configured limits.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MaxIdle)
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Stations() stations.Repository {
	return &StationRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Changes() changes.Repository {
	return &ChangeRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Verification() verification.Repository {
	return &VerificationRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Collaborators() collaborators.Repository {
	return &CollaboratorRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Issues() issues.Repository {
	return &IssueRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Trust() trust.Repository {
	return &TrustRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{pool: r.pool, tx: r.tx}
}

func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &Repository{pool: r.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

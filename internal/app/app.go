// Package app wires repositories, domain services, and background
// workers into one graph shared by the HTTP router and the job runner.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/voltgrid/server/internal/audit"
	"github.com/voltgrid/server/internal/auth"
	"github.com/voltgrid/server/internal/config"
	"github.com/voltgrid/server/internal/domain/changes"
	"github.com/voltgrid/server/internal/domain/collaborators"
	"github.com/voltgrid/server/internal/domain/issues"
	"github.com/voltgrid/server/internal/domain/stations"
	"github.com/voltgrid/server/internal/domain/trust"
	"github.com/voltgrid/server/internal/domain/users"
	"github.com/voltgrid/server/internal/domain/verification"
	"github.com/voltgrid/server/internal/storage/postgres"
)

// App is the assembled service graph.
type App struct {
	Pool *pgxpool.Pool
	Repo *postgres.Repository

	JWT *auth.JWTManager

	Users         *users.Service
	Stations      *stations.Service
	Changes       *changes.Service
	Verification  *verification.Service
	Ranker        *verification.Ranker
	Issues        *issues.Service
	Collaborators *collaborators.Service
	Trust         *trust.Engine
	Audit         *audit.Logger
	AuditReader   audit.Reader
}

// New builds the full graph on top of an open pool.
func New(cfg config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*App, error) {
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return nil, err
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)

	auditStore := postgres.NewAuditRepository(pool)
	auditLogger := audit.NewLogger(logger, auditStore)

	signals := postgres.NewTrustSignalSource(repo, cfg.Workflow.HighRiskThreshold)
	trustEngine := trust.NewEngine(repo.Trust(), signals, cfg.Workflow, logger)
	recomputer := trustRecomputer{engine: trustEngine, logger: logger}

	collaboratorsService := collaborators.NewService(repo.Collaborators(), logger)

	locator := stationLocator{repo: repo.Stations()}
	verificationService := verification.NewService(
		repo.Verification(),
		locator,
		collaboratorsService,
		recomputer,
		cfg.Workflow.CheckinRadiusM,
		logger,
	)
	ranker := verification.NewRanker(
		repo.Verification(),
		profileSource{repo: repo.Collaborators(), contracts: collaboratorsService},
		locator,
		cfg.Workflow.TrustLookbackDays,
	)

	scorer := changes.NewScorer(cfg.Workflow)
	changesService := changes.NewService(
		repo.Changes(),
		scorer,
		verificationGate{tasks: verificationService},
		recomputer,
		changesTx{repo: repo, trust: recomputer, radiusM: cfg.Workflow.CheckinRadiusM, logger: logger},
		cfg.Workflow,
		logger,
	)

	issuesService := issues.NewService(repo.Issues(), stationChecker{repo: repo.Stations()}, recomputer, logger)

	return &App{
		Pool:          pool,
		Repo:          repo,
		JWT:           jwtManager,
		Users:         users.NewService(repo.Users(), jwtManager, logger),
		Stations:      stations.NewService(repo.Stations()),
		Changes:       changesService,
		Verification:  verificationService,
		Ranker:        ranker,
		Issues:        issuesService,
		Collaborators: collaboratorsService,
		Trust:         trustEngine,
		Audit:         auditLogger,
		AuditReader:   auditStore,
	}, nil
}

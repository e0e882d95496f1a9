package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltgrid/server/internal/domain/changes"
	"github.com/voltgrid/server/internal/domain/collaborators"
	"github.com/voltgrid/server/internal/domain/stations"
	"github.com/voltgrid/server/internal/domain/trust"
	"github.com/voltgrid/server/internal/domain/verification"
	"github.com/voltgrid/server/internal/metrics"
	"github.com/voltgrid/server/internal/storage"
	"github.com/voltgrid/server/internal/storage/postgres"
)

// trustRecomputer triggers a recompute and swallows failures: a stale
// trust score self-corrects on the next signal or on the periodic
// refresh, so workflow writes never fail on it.
type trustRecomputer struct {
	engine *trust.Engine
	logger zerolog.Logger
}

func (t trustRecomputer) RecomputeStation(ctx context.Context, stationID string) {
	if _, err := t.engine.Recompute(ctx, stationID); err != nil {
		t.logger.Error().Err(err).Str("station_id", stationID).Msg("trust recompute failed")
		return
	}
	metrics.TrustRecomputes.Inc()
}

// verificationGate exposes the verification workflow to the change
// pipeline.
type verificationGate struct {
	tasks *verification.Service
}

func (g verificationGate) CreateTask(ctx context.Context, stationID, changeRequestID string, priority int, slaDueAt *time.Time) error {
	_, err := g.tasks.Create(ctx, verification.TaskCreateParams{
		StationID:       stationID,
		ChangeRequestID: &changeRequestID,
		Priority:        priority,
		SLADueAt:        slaDueAt,
	})
	return err
}

func (g verificationGate) HasPassed(ctx context.Context, changeRequestID string) (bool, error) {
	return g.tasks.HasPassed(ctx, changeRequestID)
}

// changesTx binds a submission's writes, including the verification task
// opened for a high-risk request, to one database transaction.
type changesTx struct {
	repo    *postgres.Repository
	trust   trustRecomputer
	radiusM int
	logger  zerolog.Logger
}

func (t changesTx) RunInTx(ctx context.Context, fn func(ctx context.Context, repos changes.TxRepos) error) error {
	return t.repo.WithTx(ctx, func(ctx context.Context, r storage.Repository) error {
		tasks := verification.NewService(
			r.Verification(),
			stationLocator{repo: r.Stations()},
			collaborators.NewService(r.Collaborators(), t.logger),
			t.trust,
			t.radiusM,
			t.logger,
		)
		return fn(ctx, changes.TxRepos{
			Requests: r.Changes(),
			Stations: r.Stations(),
			Gate:     verificationGate{tasks: tasks},
		})
	})
}

// stationLocator resolves a station's published coordinates. A station
// without a published version has no location to geofence against.
type stationLocator struct {
	repo stations.Repository
}

func (l stationLocator) StationLocation(ctx context.Context, stationID string) (float64, float64, error) {
	version, err := l.repo.GetPublishedVersion(ctx, stationID)
	if err != nil {
		return 0, 0, err
	}
	return version.Lat, version.Lng, nil
}

// stationChecker answers existence queries for issue reports.
type stationChecker struct {
	repo stations.Repository
}

func (c stationChecker) StationExists(ctx context.Context, stationID string) (bool, error) {
	_, err := c.repo.GetStation(ctx, stationID)
	if err != nil {
		if errors.Is(err, stations.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// profileSource feeds collaborator profiles into candidate ranking.
type profileSource struct {
	repo      collaborators.Repository
	contracts *collaborators.Service
}

func (p profileSource) ListCandidateProfiles(ctx context.Context) ([]verification.CandidateProfile, error) {
	profiles, err := p.repo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]verification.CandidateProfile, 0, len(profiles))
	for _, profile := range profiles {
		candidate := verification.CandidateProfile{
			CollaboratorID: profile.UserID,
			DisplayName:    profile.DisplayName,
		}
		if profile.Location != nil {
			lat, lng := profile.Location.Lat, profile.Location.Lng
			candidate.Lat = &lat
			candidate.Lng = &lng
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func (p profileSource) HasActiveContract(ctx context.Context, collaboratorID string) (bool, error) {
	return p.contracts.HasActiveContract(ctx, collaboratorID)
}

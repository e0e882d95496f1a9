package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"github.com/voltgrid/server/internal/domain/trust"
	"github.com/voltgrid/server/internal/domain/verification"
	"github.com/voltgrid/server/internal/metrics"
)

// SLAScanArgs defines the periodic scan for verification tasks past
// their SLA due time.
type SLAScanArgs struct{}

func (SLAScanArgs) Kind() string { return JobKindSLAScan }

// SLAScanWorker flags overdue tasks so admins can chase them. It never
// mutates the tasks themselves.
type SLAScanWorker struct {
	river.WorkerDefaults[SLAScanArgs]
	Tasks  *verification.Service
	Logger zerolog.Logger
}

func (SLAScanWorker) Kind() string { return JobKindSLAScan }

func (w SLAScanWorker) Work(ctx context.Context, job *river.Job[SLAScanArgs]) error {
	if w.Tasks == nil {
		return fmt.Errorf("verification service not configured")
	}

	overdue, err := w.Tasks.ListOverdue(ctx)
	if err != nil {
		return fmt.Errorf("scan overdue tasks: %w", err)
	}

	metrics.TasksOverdue.Set(float64(len(overdue)))
	for _, task := range overdue {
		w.Logger.Warn().
			Str("task_id", task.ID).
			Str("station_id", task.StationID).
			Int("priority", task.Priority).
			Time("sla_due_at", *task.SLADueAt).
			Msg("verification task overdue")
	}
	return nil
}

// TrustRefreshArgs defines the periodic recompute of every scored
// station. Signals age out of their trailing windows without any write
// to trigger a recompute, so the refresh keeps stored scores honest.
type TrustRefreshArgs struct{}

func (TrustRefreshArgs) Kind() string { return JobKindTrustRefresh }

type TrustRefreshWorker struct {
	river.WorkerDefaults[TrustRefreshArgs]
	Engine *trust.Engine
	Pool   *pgxpool.Pool
	Logger zerolog.Logger
}

func (TrustRefreshWorker) Kind() string { return JobKindTrustRefresh }

func (w TrustRefreshWorker) Work(ctx context.Context, job *river.Job[TrustRefreshArgs]) error {
	if w.Engine == nil {
		return fmt.Errorf("trust engine not configured")
	}
	if w.Pool == nil {
		return fmt.Errorf("database pool not configured")
	}

	rows, err := w.Pool.Query(ctx, `SELECT station_id FROM trust_scores`)
	if err != nil {
		return fmt.Errorf("list scored stations: %w", err)
	}
	defer rows.Close()

	var stationIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan station id: %w", err)
		}
		stationIDs = append(stationIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate stations: %w", err)
	}

	refreshed := 0
	for _, stationID := range stationIDs {
		if _, err := w.Engine.Recompute(ctx, stationID); err != nil {
			w.Logger.Error().Err(err).Str("station_id", stationID).Msg("trust refresh failed")
			continue
		}
		metrics.TrustRecomputes.Inc()
		refreshed++
	}

	w.Logger.Info().Int("refreshed", refreshed).Int("total", len(stationIDs)).Msg("trust refresh complete")
	return nil
}

// NewWorkers registers every job worker.
func NewWorkers(tasks *verification.Service, engine *trust.Engine, pool *pgxpool.Pool, logger zerolog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[SLAScanArgs](workers, SLAScanWorker{Tasks: tasks, Logger: logger})
	river.AddWorker[TrustRefreshArgs](workers, TrustRefreshWorker{Engine: engine, Pool: pool, Logger: logger})
	return workers
}

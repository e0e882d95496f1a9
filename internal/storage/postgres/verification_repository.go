package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltgrid/server/internal/domain/verification"
)

var _ verification.Repository = (*VerificationRepository)(nil)

type VerificationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *VerificationRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *VerificationRepository) Create(ctx context.Context, task verification.Task) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO verification_tasks (
	id, station_id, change_request_id, priority, sla_due_at, status, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`,
		task.ID, task.StationID, task.ChangeRequestID,
		task.Priority, task.SLADueAt, task.Status, task.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return verification.ErrConflict
		}
		return fmt.Errorf("create verification task: %w", err)
	}
	return nil
}

func (r *VerificationRepository) Get(ctx context.Context, id string) (*verification.Task, error) {
	task, err := scanTask(r.queryer().QueryRow(ctx, taskSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, verification.ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

func (r *VerificationRepository) List(ctx context.Context, filters verification.TaskFilters) ([]verification.Task, error) {
	rows, err := r.queryer().Query(ctx, taskSelect+`
 WHERE ($1 = '' OR status = $1)
   AND ($2 = '' OR assigned_to = $2)
 ORDER BY priority ASC, created_at ASC
`, string(filters.Status), filters.AssignedTo)
	if err != nil {
		return nil, fmt.Errorf("list verification tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *VerificationRepository) FindActiveByChangeRequest(ctx context.Context, changeRequestID string) (*verification.Task, error) {
	task, err := scanTask(r.queryer().QueryRow(ctx, taskSelect+`
 WHERE change_request_id = $1 AND status <> 'REVIEWED'
`, changeRequestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, verification.ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

func (r *VerificationRepository) Assign(ctx context.Context, taskID, collaboratorID string) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE verification_tasks
   SET status = 'ASSIGNED', assigned_to = $2
 WHERE id = $1 AND status = 'OPEN'
`, taskID, collaboratorID)
	if err != nil {
		return false, fmt.Errorf("assign task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *VerificationRepository) RecordCheckin(ctx context.Context, taskID string, checkin verification.Checkin) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE verification_tasks
   SET status = 'CHECKED_IN',
       checkin_lat = $2, checkin_lng = $3, checkin_at = $4,
       checkin_distance_m = $5, checkin_device_note = $6
 WHERE id = $1 AND status = 'ASSIGNED'
`, taskID, checkin.Lat, checkin.Lng, checkin.CheckedInAt, checkin.DistanceM, checkin.DeviceNote)
	if err != nil {
		return false, fmt.Errorf("record checkin: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *VerificationRepository) RecordEvidence(ctx context.Context, taskID string, evidence verification.Evidence) (bool, error) {
	encoded, err := json.Marshal([]verification.Evidence{evidence})
	if err != nil {
		return false, fmt.Errorf("encode evidence: %w", err)
	}

	tag, err := r.queryer().Exec(ctx, `
UPDATE verification_tasks
   SET status = 'SUBMITTED',
       evidence = COALESCE(evidence, '[]'::jsonb) || $2::jsonb
 WHERE id = $1 AND status = 'CHECKED_IN'
`, taskID, encoded)
	if err != nil {
		return false, fmt.Errorf("record evidence: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *VerificationRepository) RecordReview(ctx context.Context, taskID string, review verification.Review) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE verification_tasks
   SET status = 'REVIEWED',
       review_result = $2, review_note = $3, reviewed_at = $4, reviewed_by = $5
 WHERE id = $1 AND status = 'SUBMITTED'
`, taskID, review.Result, review.AdminNote, review.ReviewedAt, review.ReviewedBy)
	if err != nil {
		return false, fmt.Errorf("record review: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *VerificationRepository) HasPassedVerification(ctx context.Context, changeRequestID string) (bool, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	  FROM verification_tasks
	 WHERE change_request_id = $1 AND status = 'REVIEWED' AND review_result = 'PASS'
)
`, changeRequestID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check passed verification: %w", err)
	}
	return exists, nil
}

func (r *VerificationRepository) LatestReviewForStation(ctx context.Context, stationID string, since time.Time) (*verification.Review, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT review_result, review_note, reviewed_at, reviewed_by
  FROM verification_tasks
 WHERE station_id = $1 AND status = 'REVIEWED' AND reviewed_at >= $2
 ORDER BY reviewed_at DESC
 LIMIT 1
`, stationID, since)

	var (
		review verification.Review
		note   pgtype.Text
	)
	if err := row.Scan(&review.Result, &note, &review.ReviewedAt, &review.ReviewedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest review: %w", err)
	}
	review.AdminNote = note.String
	return &review, nil
}

func (r *VerificationRepository) WorkloadFor(ctx context.Context, collaboratorID string, since time.Time) (verification.WorkloadStats, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT COUNT(*) FILTER (WHERE status = 'REVIEWED'),
       COUNT(*) FILTER (WHERE status <> 'REVIEWED'),
       COUNT(*) FILTER (WHERE status = 'REVIEWED' AND review_result = 'FAIL' AND reviewed_at >= $2),
       COUNT(*) FILTER (WHERE status <> 'REVIEWED' AND sla_due_at IS NOT NULL AND sla_due_at < NOW())
  FROM verification_tasks
 WHERE assigned_to = $1
`, collaboratorID, since)

	var stats verification.WorkloadStats
	if err := row.Scan(&stats.Completed, &stats.Active, &stats.RecentFailures, &stats.Overdue); err != nil {
		return verification.WorkloadStats{}, fmt.Errorf("workload stats: %w", err)
	}
	return stats, nil
}

func (r *VerificationRepository) ReviewOutcomes(ctx context.Context, collaboratorID string, since time.Time) (int, int, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT COUNT(*) FILTER (WHERE review_result = 'PASS'),
       COUNT(*) FILTER (WHERE review_result = 'FAIL')
  FROM verification_tasks
 WHERE assigned_to = $1 AND status = 'REVIEWED' AND reviewed_at >= $2
`, collaboratorID, since)

	var passes, fails int
	if err := row.Scan(&passes, &fails); err != nil {
		return 0, 0, fmt.Errorf("review outcomes: %w", err)
	}
	return passes, fails, nil
}

func (r *VerificationRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]verification.Task, error) {
	rows, err := r.queryer().Query(ctx, taskSelect+`
 WHERE status <> 'REVIEWED' AND sla_due_at IS NOT NULL AND sla_due_at < $1
 ORDER BY sla_due_at ASC
`, asOf)
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

const taskSelect = `
SELECT id, station_id, change_request_id, priority, sla_due_at, assigned_to, status,
       checkin_lat, checkin_lng, checkin_at, checkin_distance_m, checkin_device_note,
       evidence, review_result, review_note, reviewed_at, reviewed_by, created_at
  FROM verification_tasks`

func collectTasks(rows pgx.Rows) ([]verification.Task, error) {
	var out []verification.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification tasks: %w", err)
	}
	return out, nil
}

func scanTask(row pgx.Row) (*verification.Task, error) {
	var (
		task            verification.Task
		changeRequestID pgtype.Text
		slaDueAt        pgtype.Timestamptz
		assignedTo      pgtype.Text
		checkinLat      pgtype.Float8
		checkinLng      pgtype.Float8
		checkinAt       pgtype.Timestamptz
		checkinDistance pgtype.Int4
		checkinNote     pgtype.Text
		evidence        []byte
		reviewResult    pgtype.Text
		reviewNote      pgtype.Text
		reviewedAt      pgtype.Timestamptz
		reviewedBy      pgtype.Text
	)
	if err := row.Scan(
		&task.ID, &task.StationID, &changeRequestID, &task.Priority, &slaDueAt,
		&assignedTo, &task.Status,
		&checkinLat, &checkinLng, &checkinAt, &checkinDistance, &checkinNote,
		&evidence, &reviewResult, &reviewNote, &reviewedAt, &reviewedBy,
		&task.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan verification task: %w", err)
	}

	if changeRequestID.Valid {
		value := changeRequestID.String
		task.ChangeRequestID = &value
	}
	if slaDueAt.Valid {
		t := slaDueAt.Time
		task.SLADueAt = &t
	}
	if assignedTo.Valid {
		value := assignedTo.String
		task.AssignedTo = &value
	}
	if checkinAt.Valid {
		task.Checkin = &verification.Checkin{
			Lat:         checkinLat.Float64,
			Lng:         checkinLng.Float64,
			CheckedInAt: checkinAt.Time,
			DistanceM:   int(checkinDistance.Int32),
			DeviceNote:  checkinNote.String,
		}
	}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &task.Evidence); err != nil {
			return nil, fmt.Errorf("decode evidence: %w", err)
		}
	}
	if reviewResult.Valid {
		task.Review = &verification.Review{
			Result:     verification.Result(reviewResult.String),
			AdminNote:  reviewNote.String,
			ReviewedAt: reviewedAt.Time,
			ReviewedBy: reviewedBy.String,
		}
	}
	return &task, nil
}

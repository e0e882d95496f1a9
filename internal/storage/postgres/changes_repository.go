package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltgrid/server/internal/domain/changes"
)

var _ changes.Repository = (*ChangeRepository)(nil)

type ChangeRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *ChangeRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *ChangeRepository) Create(ctx context.Context, request changes.ChangeRequest) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO change_requests (
	id, type, status, station_id, proposed_version_id, submitted_by,
	risk_score, risk_reasons, admin_note, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`,
		request.ID, request.Type, request.Status, request.StationID,
		request.ProposedVersionID, request.SubmittedBy,
		request.RiskScore, request.RiskReasons, request.AdminNote, request.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

func (r *ChangeRepository) Get(ctx context.Context, id string) (*changes.ChangeRequest, error) {
	row := r.queryer().QueryRow(ctx, requestSelect+` WHERE id = $1`, id)
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, changes.ErrNotFound
		}
		return nil, err
	}
	return request, nil
}

func (r *ChangeRepository) List(ctx context.Context, filters changes.RequestFilters) ([]changes.ChangeRequest, error) {
	rows, err := r.queryer().Query(ctx, requestSelect+`
 WHERE ($1 = '' OR status = $1)
   AND ($2 = '' OR station_id = $2)
 ORDER BY created_at DESC
`, string(filters.Status), filters.StationID)
	if err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	defer rows.Close()

	var out []changes.ChangeRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change requests: %w", err)
	}
	return out, nil
}

// Decide runs the terminal transition and the version action in one
// transaction. The status guard on the UPDATE makes concurrent decisions
// yield exactly one winner; the partial unique index on published
// versions backs up the one-published-per-station invariant.
func (r *ChangeRepository) Decide(ctx context.Context, id string, decision changes.Decision) (bool, error) {
	if r.tx != nil {
		return r.decideIn(ctx, r.tx, id, decision)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin decide tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := r.decideIn(ctx, tx, id, decision)
	if err != nil || !ok {
		return ok, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit decide tx: %w", err)
	}
	return true, nil
}

func (r *ChangeRepository) decideIn(ctx context.Context, tx pgx.Tx, id string, decision changes.Decision) (bool, error) {
	row := tx.QueryRow(ctx, `
UPDATE change_requests
   SET status = $2, admin_note = $3, decided_by = $4, decided_at = $5
 WHERE id = $1 AND status = 'PENDING'
RETURNING station_id, proposed_version_id
`, id, decision.Status, decision.AdminNote, decision.DecidedBy, decision.DecidedAt)

	var stationID, versionID string
	if err := row.Scan(&stationID, &versionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("decide change request: %w", err)
	}

	if decision.Publish {
		if _, err := tx.Exec(ctx, `
UPDATE station_versions
   SET status = 'ARCHIVED'
 WHERE station_id = $1 AND status = 'PUBLISHED'
`, stationID); err != nil {
			return false, fmt.Errorf("archive published version: %w", err)
		}
		if _, err := tx.Exec(ctx, `
UPDATE station_versions
   SET status = 'PUBLISHED', published_at = $2
 WHERE id = $1
`, versionID, decision.DecidedAt); err != nil {
			return false, fmt.Errorf("publish version: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, `
UPDATE station_versions
   SET status = 'REJECTED'
 WHERE id = $1
`, versionID); err != nil {
			return false, fmt.Errorf("reject version: %w", err)
		}
	}
	return true, nil
}

func (r *ChangeRepository) HasRecentHighRisk(ctx context.Context, stationID string, threshold int, since time.Time) (bool, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	  FROM change_requests
	 WHERE station_id = $1 AND risk_score >= $2 AND created_at >= $3
)
`, stationID, threshold, since)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check high risk history: %w", err)
	}
	return exists, nil
}

const requestSelect = `
SELECT id, type, status, station_id, proposed_version_id, submitted_by,
       risk_score, risk_reasons, admin_note, decided_by, decided_at, created_at
  FROM change_requests`

func scanRequest(row pgx.Row) (*changes.ChangeRequest, error) {
	var (
		request   changes.ChangeRequest
		adminNote pgtype.Text
		decidedBy pgtype.Text
		decidedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&request.ID, &request.Type, &request.Status, &request.StationID,
		&request.ProposedVersionID, &request.SubmittedBy,
		&request.RiskScore, &request.RiskReasons,
		&adminNote, &decidedBy, &decidedAt, &request.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan change request: %w", err)
	}
	request.AdminNote = adminNote.String
	request.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		t := decidedAt.Time
		request.DecidedAt = &t
	}
	return &request, nil
}

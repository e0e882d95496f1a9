package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltgrid/server/internal/domain/issues"
)

var _ issues.Repository = (*IssueRepository)(nil)

type IssueRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *IssueRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *IssueRepository) Create(ctx context.Context, issue issues.Issue) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO station_issues (
	id, station_id, reported_by, category, description, photo_object_key,
	status, admin_note, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`,
		issue.ID, issue.StationID, issue.ReportedBy, issue.Category,
		issue.Description, issue.PhotoObjectKey, issue.Status, issue.AdminNote,
		issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

func (r *IssueRepository) Get(ctx context.Context, id string) (*issues.Issue, error) {
	issue, err := scanIssue(r.queryer().QueryRow(ctx, issueSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, issues.ErrNotFound
		}
		return nil, err
	}
	return issue, nil
}

func (r *IssueRepository) ListByStation(ctx context.Context, stationID string) ([]issues.Issue, error) {
	rows, err := r.queryer().Query(ctx,
		issueSelect+` WHERE station_id = $1 ORDER BY created_at DESC`, stationID)
	if err != nil {
		return nil, fmt.Errorf("list issues by station: %w", err)
	}
	defer rows.Close()
	return collectIssues(rows)
}

func (r *IssueRepository) ListByStatus(ctx context.Context, status issues.Status) ([]issues.Issue, error) {
	rows, err := r.queryer().Query(ctx,
		issueSelect+` WHERE status = $1 ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("list issues by status: %w", err)
	}
	defer rows.Close()
	return collectIssues(rows)
}

func (r *IssueRepository) UpdateStatus(ctx context.Context, id string, from, to issues.Status, adminNote string, now time.Time) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE station_issues
   SET status = $3,
       admin_note = CASE WHEN $4 = '' THEN admin_note ELSE $4 END,
       updated_at = $5
 WHERE id = $1 AND status = $2
`, id, from, to, adminNote, now)
	if err != nil {
		return false, fmt.Errorf("update issue status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *IssueRepository) CountUnresolved(ctx context.Context, stationID string) (int, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT COUNT(*)
  FROM station_issues
 WHERE station_id = $1 AND status IN ('OPEN', 'ACKNOWLEDGED')
`, stationID)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count unresolved issues: %w", err)
	}
	return count, nil
}

const issueSelect = `
SELECT id, station_id, reported_by, category, description, photo_object_key,
       status, admin_note, created_at, updated_at
  FROM station_issues`

func collectIssues(rows pgx.Rows) ([]issues.Issue, error) {
	var out []issues.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return out, nil
}

func scanIssue(row pgx.Row) (*issues.Issue, error) {
	var (
		issue     issues.Issue
		photoKey  pgtype.Text
		adminNote pgtype.Text
	)
	if err := row.Scan(
		&issue.ID, &issue.StationID, &issue.ReportedBy, &issue.Category,
		&issue.Description, &photoKey, &issue.Status, &adminNote,
		&issue.CreatedAt, &issue.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan issue: %w", err)
	}
	issue.PhotoObjectKey = photoKey.String
	issue.AdminNote = adminNote.String
	return &issue, nil
}

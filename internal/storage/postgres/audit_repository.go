package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltgrid/server/internal/audit"
)

var _ audit.Store = (*AuditRepository)(nil)

var _ audit.Reader = (*AuditRepository)(nil)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Append(ctx context.Context, entry audit.Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO audit_log (action, actor_id, resource_type, resource_id, status, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`,
		entry.Action, entry.ActorID, entry.ResourceType, entry.ResourceID,
		entry.Status, details, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// List returns the most recent audit entries, newest first.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT action, actor_id, resource_type, resource_id, status, details, created_at
FROM audit_log
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var details []byte
		if err := rows.Scan(
			&entry.Action, &entry.ActorID, &entry.ResourceType, &entry.ResourceID,
			&entry.Status, &details, &entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltgrid/server/internal/domain/trust"
)

var _ trust.Repository = (*TrustRepository)(nil)

type TrustRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *TrustRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *TrustRepository) Get(ctx context.Context, stationID string) (*trust.Breakdown, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT station_id, base, verification_bonus, issues_penalty, high_risk_penalty, score, updated_at
  FROM trust_scores
 WHERE station_id = $1
`, stationID)

	var breakdown trust.Breakdown
	if err := row.Scan(
		&breakdown.StationID, &breakdown.Base, &breakdown.VerificationBonus,
		&breakdown.IssuesPenalty, &breakdown.HighRiskPenalty,
		&breakdown.Score, &breakdown.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trust.ErrNotFound
		}
		return nil, fmt.Errorf("get trust breakdown: %w", err)
	}
	return &breakdown, nil
}

// Upsert replaces the whole row so a recompute is a single atomic write.
func (r *TrustRepository) Upsert(ctx context.Context, breakdown trust.Breakdown) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO trust_scores (station_id, base, verification_bonus, issues_penalty, high_risk_penalty, score, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (station_id) DO UPDATE
   SET base = EXCLUDED.base,
       verification_bonus = EXCLUDED.verification_bonus,
       issues_penalty = EXCLUDED.issues_penalty,
       high_risk_penalty = EXCLUDED.high_risk_penalty,
       score = EXCLUDED.score,
       updated_at = EXCLUDED.updated_at
`,
		breakdown.StationID, breakdown.Base, breakdown.VerificationBonus,
		breakdown.IssuesPenalty, breakdown.HighRiskPenalty,
		breakdown.Score, breakdown.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert trust breakdown: %w", err)
	}
	return nil
}

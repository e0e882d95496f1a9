package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltgrid/server/internal/domain/collaborators"
)

var _ collaborators.Repository = (*CollaboratorRepository)(nil)

type CollaboratorRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *CollaboratorRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *CollaboratorRepository) GetProfile(ctx context.Context, userID string) (*collaborators.Profile, error) {
	profile, err := scanProfile(r.queryer().QueryRow(ctx, profileSelect+` WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, collaborators.ErrNotFound
		}
		return nil, err
	}
	return profile, nil
}

func (r *CollaboratorRepository) ListProfiles(ctx context.Context) ([]collaborators.Profile, error) {
	rows, err := r.queryer().Query(ctx, profileSelect+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []collaborators.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func (r *CollaboratorRepository) CreateProfile(ctx context.Context, profile collaborators.Profile) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO collaborator_profiles (user_id, display_name, phone, created_at)
VALUES ($1, $2, $3, $4)
`, profile.UserID, profile.DisplayName, profile.Phone, profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (r *CollaboratorRepository) UpdateLocation(ctx context.Context, userID string, location collaborators.Location) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE collaborator_profiles
   SET location_lat = $2, location_lng = $3, location_source = $4, location_reported_at = $5
 WHERE user_id = $1
`, userID, location.Lat, location.Lng, location.Source, location.ReportedAt)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return collaborators.ErrNotFound
	}
	return nil
}

func (r *CollaboratorRepository) CreateContract(ctx context.Context, contract collaborators.Contract) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO collaborator_contracts (id, collaborator_id, status, start_date, end_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, contract.ID, contract.CollaboratorID, contract.Status, contract.StartDate, contract.EndDate, contract.CreatedAt)
	if err != nil {
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

func (r *CollaboratorRepository) UpdateContractStatus(ctx context.Context, contractID string, status collaborators.ContractStatus) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE collaborator_contracts SET status = $2 WHERE id = $1
`, contractID, status)
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return collaborators.ErrContractNotFound
	}
	return nil
}

func (r *CollaboratorRepository) ListContracts(ctx context.Context, collaboratorID string) ([]collaborators.Contract, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT id, collaborator_id, status, start_date, end_date, created_at
  FROM collaborator_contracts
 WHERE collaborator_id = $1
 ORDER BY start_date DESC
`, collaboratorID)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []collaborators.Contract
	for rows.Next() {
		var contract collaborators.Contract
		if err := rows.Scan(
			&contract.ID, &contract.CollaboratorID, &contract.Status,
			&contract.StartDate, &contract.EndDate, &contract.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return out, nil
}

func (r *CollaboratorRepository) HasEffectiveContract(ctx context.Context, userID string, on time.Time) (bool, error) {
	day := on.UTC().Truncate(24 * time.Hour)
	row := r.queryer().QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	  FROM collaborator_contracts
	 WHERE collaborator_id = $1
	   AND status = 'ACTIVE'
	   AND start_date <= $2
	   AND end_date >= $2
)
`, userID, day)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check effective contract: %w", err)
	}
	return exists, nil
}

const profileSelect = `
SELECT user_id, display_name, phone,
       location_lat, location_lng, location_source, location_reported_at,
       created_at
  FROM collaborator_profiles`

func scanProfile(row pgx.Row) (*collaborators.Profile, error) {
	var (
		profile    collaborators.Profile
		phone      pgtype.Text
		lat        pgtype.Float8
		lng        pgtype.Float8
		source     pgtype.Text
		reportedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&profile.UserID, &profile.DisplayName, &phone,
		&lat, &lng, &source, &reportedAt,
		&profile.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	profile.Phone = phone.String
	if reportedAt.Valid {
		profile.Location = &collaborators.Location{
			Lat:        lat.Float64,
			Lng:        lng.Float64,
			Source:     collaborators.LocationSource(source.String),
			ReportedAt: reportedAt.Time,
		}
	}
	return &profile, nil
}

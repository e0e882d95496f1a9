package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltgrid/server/internal/domain/ids"
	"github.com/voltgrid/server/internal/domain/stations"
)

var _ stations.Repository = (*StationRepository)(nil)

type StationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *StationRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *StationRepository) CreateStation(ctx context.Context, station stations.Station) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO stations (id, provider_id, created_at)
VALUES ($1, $2, $3)
`, station.ID, station.ProviderID, station.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return stations.ErrConflict
		}
		return fmt.Errorf("create station: %w", err)
	}
	return nil
}

func (r *StationRepository) GetStation(ctx context.Context, id string) (*stations.Station, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT id, provider_id, created_at
  FROM stations
 WHERE id = $1
`, id)

	var station stations.Station
	if err := row.Scan(&station.ID, &station.ProviderID, &station.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stations.ErrNotFound
		}
		return nil, fmt.Errorf("get station: %w", err)
	}
	return &station, nil
}

func (r *StationRepository) ListStations(ctx context.Context, filters stations.Filters, pagination stations.Pagination) (stations.ListResult, error) {
	queryer := r.queryer()

	page := pagination.Page
	if page < 1 {
		page = 1
	}
	size := pagination.Size
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	rows, err := queryer.Query(ctx, `
SELECT s.id, s.provider_id, s.created_at,
       v.id, v.version_no, v.name, v.address, v.lat, v.lng, v.operating_hours,
       v.parking, v.visibility, v.public_status, v.services, v.created_by,
       v.created_at, v.published_at,
       t.score,
       COUNT(*) OVER ()
  FROM stations s
  LEFT JOIN station_versions v ON v.station_id = s.id AND v.status = 'PUBLISHED'
  LEFT JOIN trust_scores t ON t.station_id = s.id
 WHERE ($1 = '' OR s.provider_id = $1)
   AND ($2 = '' OR v.name ILIKE '%' || $2 || '%' OR v.address ILIKE '%' || $2 || '%')
 ORDER BY s.created_at DESC, s.id DESC
 LIMIT $3 OFFSET $4
`, filters.ProviderID, filters.Query, size, offset)
	if err != nil {
		return stations.ListResult{}, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()

	result := stations.ListResult{}
	for rows.Next() {
		var (
			station     stations.Station
			versionID   pgtype.Text
			versionNo   pgtype.Int4
			name        pgtype.Text
			address     pgtype.Text
			lat         pgtype.Float8
			lng         pgtype.Float8
			hours       pgtype.Text
			parking     pgtype.Text
			visibility  pgtype.Text
			public      pgtype.Text
			services    []byte
			createdBy   pgtype.Text
			createdAt   pgtype.Timestamptz
			publishedAt pgtype.Timestamptz
			score       pgtype.Int4
			total       int
		)
		if err := rows.Scan(
			&station.ID, &station.ProviderID, &station.CreatedAt,
			&versionID, &versionNo, &name, &address, &lat, &lng, &hours,
			&parking, &visibility, &public, &services, &createdBy,
			&createdAt, &publishedAt,
			&score,
			&total,
		); err != nil {
			return stations.ListResult{}, fmt.Errorf("scan stations: %w", err)
		}

		listing := stations.StationListing{Station: station}
		if versionID.Valid {
			version := stations.StationVersion{
				ID:             versionID.String,
				StationID:      station.ID,
				VersionNo:      int(versionNo.Int32),
				Status:         stations.StatusPublished,
				Name:           name.String,
				Address:        address.String,
				Lat:            lat.Float64,
				Lng:            lng.Float64,
				OperatingHours: hours.String,
				Parking:        stations.ParkingType(parking.String),
				Visibility:     stations.VisibilityType(visibility.String),
				PublicStatus:   stations.PublicStatus(public.String),
				CreatedBy:      createdBy.String,
				CreatedAt:      createdAt.Time,
			}
			if publishedAt.Valid {
				t := publishedAt.Time
				version.PublishedAt = &t
			}
			if len(services) > 0 {
				if err := json.Unmarshal(services, &version.Services); err != nil {
					return stations.ListResult{}, fmt.Errorf("decode services: %w", err)
				}
			}
			listing.Current = &version
		}
		if score.Valid {
			value := int(score.Int32)
			listing.TrustScore = &value
		}
		result.Total = total
		result.Items = append(result.Items, listing)
	}
	if err := rows.Err(); err != nil {
		return stations.ListResult{}, fmt.Errorf("iterate stations: %w", err)
	}
	return result, nil
}

func (r *StationRepository) CreateVersion(ctx context.Context, params stations.VersionCreateParams) (*stations.StationVersion, error) {
	services, err := json.Marshal(params.Fields.Services)
	if err != nil {
		return nil, fmt.Errorf("encode services: %w", err)
	}

	id := ids.NewUUID()
	now := time.Now().UTC()

	// The subselect and the unique (station_id, version_no) constraint
	// together keep version numbers strictly increasing per station.
	row := r.queryer().QueryRow(ctx, `
INSERT INTO station_versions (
	id, station_id, version_no, status, name, address, lat, lng,
	operating_hours, parking, visibility, public_status, services,
	created_by, created_at
)
SELECT $1, $2, COALESCE(MAX(version_no), 0) + 1, $3, $4, $5, $6, $7,
       $8, $9, $10, $11, $12, $13, $14
  FROM station_versions
 WHERE station_id = $2
RETURNING version_no
`,
		id, params.StationID, params.Status,
		params.Fields.Name, params.Fields.Address, params.Fields.Lat, params.Fields.Lng,
		params.Fields.OperatingHours, params.Fields.Parking, params.Fields.Visibility,
		params.Fields.PublicStatus, services, params.CreatedBy, now,
	)

	var versionNo int
	if err := row.Scan(&versionNo); err != nil {
		if isUniqueViolation(err) {
			return nil, stations.ErrConflict
		}
		return nil, fmt.Errorf("create version: %w", err)
	}

	version := stations.StationVersion{
		ID:             id,
		StationID:      params.StationID,
		VersionNo:      versionNo,
		Status:         params.Status,
		Name:           params.Fields.Name,
		Address:        params.Fields.Address,
		Lat:            params.Fields.Lat,
		Lng:            params.Fields.Lng,
		OperatingHours: params.Fields.OperatingHours,
		Parking:        params.Fields.Parking,
		Visibility:     params.Fields.Visibility,
		PublicStatus:   params.Fields.PublicStatus,
		Services:       params.Fields.Services,
		CreatedBy:      params.CreatedBy,
		CreatedAt:      now,
	}
	return &version, nil
}

func (r *StationRepository) GetVersion(ctx context.Context, id string) (*stations.StationVersion, error) {
	return r.scanVersion(r.queryer().QueryRow(ctx, versionSelect+` WHERE v.id = $1`, id))
}

func (r *StationRepository) GetPublishedVersion(ctx context.Context, stationID string) (*stations.StationVersion, error) {
	return r.scanVersion(r.queryer().QueryRow(ctx,
		versionSelect+` WHERE v.station_id = $1 AND v.status = 'PUBLISHED'`, stationID))
}

func (r *StationRepository) ListVersions(ctx context.Context, stationID string) ([]stations.StationVersion, error) {
	rows, err := r.queryer().Query(ctx,
		versionSelect+` WHERE v.station_id = $1 ORDER BY v.version_no DESC`, stationID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []stations.StationVersion
	for rows.Next() {
		version, err := scanVersionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return out, nil
}

const versionSelect = `
SELECT v.id, v.station_id, v.version_no, v.status, v.name, v.address,
       v.lat, v.lng, v.operating_hours, v.parking, v.visibility,
       v.public_status, v.services, v.created_by, v.created_at, v.published_at
  FROM station_versions v`

func (r *StationRepository) scanVersion(row pgx.Row) (*stations.StationVersion, error) {
	version, err := scanVersionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stations.ErrVersionNotFound
		}
		return nil, err
	}
	return version, nil
}

func scanVersionRow(row pgx.Row) (*stations.StationVersion, error) {
	var (
		version     stations.StationVersion
		services    []byte
		publishedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&version.ID, &version.StationID, &version.VersionNo, &version.Status,
		&version.Name, &version.Address, &version.Lat, &version.Lng,
		&version.OperatingHours, &version.Parking, &version.Visibility,
		&version.PublicStatus, &services, &version.CreatedBy,
		&version.CreatedAt, &publishedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan version: %w", err)
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		version.PublishedAt = &t
	}
	if len(services) > 0 {
		if err := json.Unmarshal(services, &version.Services); err != nil {
			return nil, fmt.Errorf("decode services: %w", err)
		}
	}
	return &version, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

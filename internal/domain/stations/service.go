package stations

import (
	"context"
	"strings"
)

// Service exposes the station read paths consumed by public listings and
// admin views. Mutations go through the change request workflow; nothing
// here writes.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error) {
	if pagination.Size <= 0 {
		pagination.Size = 20
	}
	if pagination.Size > 100 {
		pagination.Size = 100
	}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	filters.Query = strings.TrimSpace(filters.Query)
	return s.repo.ListStations(ctx, filters, pagination)
}

func (s *Service) Get(ctx context.Context, id string) (*Station, error) {
	return s.repo.GetStation(ctx, id)
}

// CurrentVersion returns the published version for a station, or
// ErrVersionNotFound when the station has never been published.
func (s *Service) CurrentVersion(ctx context.Context, stationID string) (*StationVersion, error) {
	return s.repo.GetPublishedVersion(ctx, stationID)
}

// VersionHistory returns every snapshot for a station, newest first.
func (s *Service) VersionHistory(ctx context.Context, stationID string) ([]StationVersion, error) {
	if _, err := s.repo.GetStation(ctx, stationID); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, stationID)
}

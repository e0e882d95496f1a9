package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voltgrid/server/internal/domain/stations"
)

type fakeStationRepo struct {
	stations map[string]stations.Station
	versions map[string][]stations.StationVersion
}

func newFakeStationRepo() *fakeStationRepo {
	return &fakeStationRepo{
		stations: map[string]stations.Station{},
		versions: map[string][]stations.StationVersion{},
	}
}

func (r *fakeStationRepo) CreateStation(_ context.Context, station stations.Station) error {
	r.stations[station.ID] = station
	return nil
}

func (r *fakeStationRepo) GetStation(_ context.Context, id string) (*stations.Station, error) {
	station, ok := r.stations[id]
	if !ok {
		return nil, stations.ErrNotFound
	}
	return &station, nil
}

func (r *fakeStationRepo) ListStations(_ context.Context, _ stations.Filters, _ stations.Pagination) (stations.ListResult, error) {
	result := stations.ListResult{}
	for _, station := range r.stations {
		listing := stations.StationListing{Station: station}
		for i := range r.versions[station.ID] {
			if r.versions[station.ID][i].Status == stations.StatusPublished {
				listing.Current = &r.versions[station.ID][i]
			}
		}
		result.Items = append(result.Items, listing)
	}
	result.Total = len(result.Items)
	return result, nil
}

func (r *fakeStationRepo) CreateVersion(_ context.Context, params stations.VersionCreateParams) (*stations.StationVersion, error) {
	version := stations.StationVersion{
		ID:        params.StationID + "-v",
		StationID: params.StationID,
		VersionNo: len(r.versions[params.StationID]) + 1,
		Status:    params.Status,
		Name:      params.Fields.Name,
		Lat:       params.Fields.Lat,
		Lng:       params.Fields.Lng,
		CreatedAt: time.Now().UTC(),
	}
	r.versions[params.StationID] = append(r.versions[params.StationID], version)
	return &version, nil
}

func (r *fakeStationRepo) GetVersion(_ context.Context, id string) (*stations.StationVersion, error) {
	for _, versions := range r.versions {
		for i := range versions {
			if versions[i].ID == id {
				return &versions[i], nil
			}
		}
	}
	return nil, stations.ErrVersionNotFound
}

func (r *fakeStationRepo) GetPublishedVersion(_ context.Context, stationID string) (*stations.StationVersion, error) {
	for i := range r.versions[stationID] {
		if r.versions[stationID][i].Status == stations.StatusPublished {
			return &r.versions[stationID][i], nil
		}
	}
	return nil, stations.ErrVersionNotFound
}

func (r *fakeStationRepo) ListVersions(_ context.Context, stationID string) ([]stations.StationVersion, error) {
	return r.versions[stationID], nil
}

func seedStation(repo *fakeStationRepo, id string) {
	repo.stations[id] = stations.Station{ID: id, ProviderID: "prov-1", CreatedAt: time.Now().UTC()}
	repo.versions[id] = []stations.StationVersion{{
		ID:        id + "-v1",
		StationID: id,
		VersionNo: 1,
		Status:    stations.StatusPublished,
		Name:      "Central Charging Hub",
		Lat:       45.5017,
		Lng:       -73.5673,
		CreatedAt: time.Now().UTC(),
	}}
}

func TestStationsGet(t *testing.T) {
	repo := newFakeStationRepo()
	seedStation(repo, "st-1")
	handler := &StationsHandler{Service: stations.NewService(repo), Env: "test"}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/stations/{id}", handler.Get)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stations/st-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		ID      string `json:"id"`
		Current *struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"current"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "st-1", payload.ID)
	require.NotNil(t, payload.Current)
	require.Equal(t, "Central Charging Hub", payload.Current.Name)
	require.Equal(t, "PUBLISHED", payload.Current.Status)
}

func TestStationsGetNotFound(t *testing.T) {
	handler := &StationsHandler{Service: stations.NewService(newFakeStationRepo()), Env: "test"}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/stations/{id}", handler.Get)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stations/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestStationsList(t *testing.T) {
	repo := newFakeStationRepo()
	seedStation(repo, "st-1")
	seedStation(repo, "st-2")
	handler := &StationsHandler{Service: stations.NewService(repo), Env: "test"}

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stations?page=1&size=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
		Page  int               `json:"page"`
		Size  int               `json:"size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Items, 2)
	require.Equal(t, 2, payload.Total)
	require.Equal(t, 1, payload.Page)
	require.Equal(t, 10, payload.Size)
}

func TestStationsListBadPagination(t *testing.T) {
	handler := &StationsHandler{Service: stations.NewService(newFakeStationRepo()), Env: "test"}

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stations?page=zero", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStationsVersions(t *testing.T) {
	repo := newFakeStationRepo()
	seedStation(repo, "st-1")
	handler := &StationsHandler{Service: stations.NewService(repo), Env: "test"}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/stations/{id}/versions", handler.Versions)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stations/st-1/versions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Items []struct {
			VersionNo int `json:"versionNo"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Items, 1)
	require.Equal(t, 1, payload.Items[0].VersionNo)
}

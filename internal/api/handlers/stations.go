package handlers

import (
	"net/http"
	"time"

	"github.com/voltgrid/server/internal/api/pagination"
	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/domain/stations"
)

// StationsHandler serves the public station read paths. All writes go
// through the change request workflow.
type StationsHandler struct {
	Service *stations.Service
	Env     string
}

type stationListItem struct {
	ID         string           `json:"id"`
	ProviderID string           `json:"providerId"`
	CreatedAt  time.Time        `json:"createdAt"`
	Current    *versionResponse `json:"current,omitempty"`
	TrustScore *int             `json:"trustScore,omitempty"`
}

func (h *StationsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Stations service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	page, err := pagination.Parse(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, typeValidationError, "Invalid pagination", err, h.Env)
		return
	}

	filters := stations.Filters{
		ProviderID: r.URL.Query().Get("providerId"),
		Query:      r.URL.Query().Get("q"),
	}

	result, err := h.Service.List(r.Context(), filters, stations.Pagination{Page: page.Page, Size: page.Size})
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	items := make([]stationListItem, 0, len(result.Items))
	for _, listing := range result.Items {
		items = append(items, stationListItem{
			ID:         listing.Station.ID,
			ProviderID: listing.Station.ProviderID,
			CreatedAt:  listing.Station.CreatedAt,
			Current:    versionToResponse(listing.Current),
			TrustScore: listing.TrustScore,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": result.Total,
		"page":  page.Page,
		"size":  page.Size,
	})
}

func (h *StationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Stations service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	stationID := pathParam(r, "id")
	station, err := h.Service.Get(r.Context(), stationID)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	item := stationListItem{
		ID:         station.ID,
		ProviderID: station.ProviderID,
		CreatedAt:  station.CreatedAt,
	}
	current, err := h.Service.CurrentVersion(r.Context(), stationID)
	if err == nil {
		item.Current = versionToResponse(current)
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *StationsHandler) Versions(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Stations service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	versions, err := h.Service.VersionHistory(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	items := make([]*versionResponse, 0, len(versions))
	for i := range versions {
		items = append(items, versionToResponse(&versions[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

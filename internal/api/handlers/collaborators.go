package handlers

import (
	"net/http"
	"time"

	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/domain/collaborators"
	"github.com/voltgrid/server/internal/domain/geo"
)

type CollaboratorsHandler struct {
	Service *collaborators.Service
	Env     string
}

type profileResponse struct {
	UserID      string            `json:"userId"`
	DisplayName string            `json:"displayName"`
	Phone       string            `json:"phone,omitempty"`
	Location    *locationResponse `json:"location,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type locationResponse struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Source     string    `json:"source"`
	ReportedAt time.Time `json:"reportedAt"`
}

func profileToResponse(profile *collaborators.Profile) *profileResponse {
	if profile == nil {
		return nil
	}
	resp := &profileResponse{
		UserID:      profile.UserID,
		DisplayName: profile.DisplayName,
		Phone:       profile.Phone,
		CreatedAt:   profile.CreatedAt,
	}
	if profile.Location != nil {
		resp.Location = &locationResponse{
			Lat:        profile.Location.Lat,
			Lng:        profile.Location.Lng,
			Source:     string(profile.Location.Source),
			ReportedAt: profile.Location.ReportedAt,
		}
	}
	return resp
}

type createProfileRequest struct {
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone"`
}

func (h *CollaboratorsHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Collaborators service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload createProfileRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}
	if payload.DisplayName == "" {
		problem.Write(w, r, http.StatusBadRequest, typeValidationError, "Display name is required", nil, h.Env)
		return
	}

	profile, err := h.Service.CreateProfile(r.Context(), actorID(r), payload.DisplayName, payload.Phone)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusCreated, profileToResponse(profile))
}

func (h *CollaboratorsHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Collaborators service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	profile, err := h.Service.Profile(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusOK, profileToResponse(profile))
}

type reportLocationRequest struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Source string  `json:"source"`
}

// ReportLocation stores the caller's own position; collaborators cannot
// report for each other.
func (h *CollaboratorsHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Collaborators service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload reportLocationRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}
	if !geo.ValidLatLng(payload.Lat, payload.Lng) {
		problem.Write(w, r, http.StatusBadRequest, typeValidationError, "Coordinates out of range", nil, h.Env)
		return
	}

	location, err := h.Service.ReportLocation(r.Context(), actorID(r), payload.Lat, payload.Lng, collaborators.LocationSource(payload.Source))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusOK, locationResponse{
		Lat:        location.Lat,
		Lng:        location.Lng,
		Source:     string(location.Source),
		ReportedAt: location.ReportedAt,
	})
}

type contractResponse struct {
	ID             string    `json:"id"`
	CollaboratorID string    `json:"collaboratorId"`
	Status         string    `json:"status"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	CreatedAt      time.Time `json:"createdAt"`
}

func contractToResponse(contract *collaborators.Contract) *contractResponse {
	if contract == nil {
		return nil
	}
	return &contractResponse{
		ID:             contract.ID,
		CollaboratorID: contract.CollaboratorID,
		Status:         string(contract.Status),
		StartDate:      contract.StartDate,
		EndDate:        contract.EndDate,
		CreatedAt:      contract.CreatedAt,
	}
}

type createContractRequest struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

func (h *CollaboratorsHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Collaborators service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload createContractRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}
	if payload.EndDate.Before(payload.StartDate) {
		problem.Write(w, r, http.StatusBadRequest, typeValidationError, "Contract end date must be on or after start date", nil, h.Env)
		return
	}

	contract, err := h.Service.CreateContract(r.Context(), collaborators.ContractCreateParams{
		CollaboratorID: pathParam(r, "id"),
		StartDate:      payload.StartDate,
		EndDate:        payload.EndDate,
	})
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusCreated, contractToResponse(contract))
}

func (h *CollaboratorsHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Collaborators service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	contracts, err := h.Service.Contracts(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	items := make([]*contractResponse, 0, len(contracts))
	for i := range contracts {
		items = append(items, contractToResponse(&contracts[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type contractStatusRequest struct {
	Status string `json:"status"`
}

func (h *CollaboratorsHandler) SetContractStatus(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Collaborators service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload contractStatusRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	status := collaborators.ContractStatus(payload.Status)
	switch status {
	case collaborators.ContractActive, collaborators.ContractSuspended, collaborators.ContractTerminated:
	default:
		problem.Write(w, r, http.StatusBadRequest, typeValidationError, "Unknown contract status", nil, h.Env)
		return
	}

	if err := h.Service.SetContractStatus(r.Context(), pathParam(r, "contractId"), status); err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"github.com/voltgrid/server/internal/api/middleware"
	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/audit"
	"github.com/voltgrid/server/internal/domain/changes"
	"github.com/voltgrid/server/internal/metrics"
)

// ChangesHandler serves the change request workflow: providers submit
// proposals, admins decide them.
type ChangesHandler struct {
	Service       *changes.Service
	Audit         *audit.Logger
	HighThreshold int
	Env           string
}

type submitChangeRequest struct {
	Type      string               `json:"type"`
	StationID string               `json:"stationId"`
	Fields    versionFieldsPayload `json:"fields"`
}

func (h *ChangesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Changes service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload submitChangeRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	claims := middleware.ClaimsFromRequest(r)
	if claims == nil {
		problem.Write(w, r, http.StatusUnauthorized, typeUnauthorized, "Unauthorized", problem.ErrUnauthorized, h.Env)
		return
	}

	request, err := h.Service.Submit(r.Context(), changes.SubmitParams{
		Type:        changes.RequestType(payload.Type),
		StationID:   payload.StationID,
		ProviderID:  claims.Subject,
		SubmittedBy: claims.Subject,
		Fields:      payload.Fields.toDomain(),
	})
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	risk := "low"
	if request.RiskScore >= h.HighThreshold {
		risk = "high"
	}
	metrics.ChangeRequestsSubmitted.WithLabelValues(string(request.Type), risk).Inc()
	metrics.RiskScores.Observe(float64(request.RiskScore))
	if request.Status.Terminal() {
		metrics.ChangeRequestsDecided.WithLabelValues(string(request.Status)).Inc()
	}

	writeJSON(w, http.StatusCreated, changeRequestToResponse(request))
}

func (h *ChangesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Changes service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	request, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusOK, changeRequestToResponse(request))
}

func (h *ChangesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Changes service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	filters := changes.RequestFilters{
		Status:    changes.RequestStatus(r.URL.Query().Get("status")),
		StationID: r.URL.Query().Get("stationId"),
	}
	requests, err := h.Service.List(r.Context(), filters)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	items := make([]*changeRequestResponse, 0, len(requests))
	for i := range requests {
		items = append(items, changeRequestToResponse(&requests[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type decideChangeRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

func (h *ChangesHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Changes service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload decideChangeRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	requestID := pathParam(r, "id")
	adminID := actorID(r)
	request, err := h.Service.Approve(r.Context(), requestID, adminID, payload.Note)
	if err != nil {
		if h.Audit != nil {
			h.Audit.LogFailure(r.Context(), "change_request.approve", adminID, map[string]string{
				"request_id": requestID,
				"error":      err.Error(),
			})
		}
		writeDomainError(w, r, h.Env, err)
		return
	}

	metrics.ChangeRequestsDecided.WithLabelValues(string(request.Status)).Inc()
	if h.Audit != nil {
		h.Audit.LogSuccess(r.Context(), "change_request.approve", adminID, "change_request", requestID, map[string]string{
			"station_id": request.StationID,
		})
	}
	writeJSON(w, http.StatusOK, changeRequestToResponse(request))
}

func (h *ChangesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Changes service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload decideChangeRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	requestID := pathParam(r, "id")
	adminID := actorID(r)
	request, err := h.Service.Reject(r.Context(), requestID, adminID, payload.Reason)
	if err != nil {
		if h.Audit != nil {
			h.Audit.LogFailure(r.Context(), "change_request.reject", adminID, map[string]string{
				"request_id": requestID,
				"error":      err.Error(),
			})
		}
		writeDomainError(w, r, h.Env, err)
		return
	}

	metrics.ChangeRequestsDecided.WithLabelValues(string(request.Status)).Inc()
	if h.Audit != nil {
		h.Audit.LogSuccess(r.Context(), "change_request.reject", adminID, "change_request", requestID, map[string]string{
			"station_id": request.StationID,
			"reason":     payload.Reason,
		})
	}
	writeJSON(w, http.StatusOK, changeRequestToResponse(request))
}

func actorID(r *http.Request) string {
	if claims := middleware.ClaimsFromRequest(r); claims != nil {
		return claims.Subject
	}
	return ""
}

package handlers

import (
	"net/http"
	"time"

	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/domain/issues"
	"github.com/voltgrid/server/internal/metrics"
)

type IssuesHandler struct {
	Service *issues.Service
	Env     string
}

type reportIssueRequest struct {
	StationID      string `json:"stationId"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	PhotoObjectKey string `json:"photoObjectKey"`
}

type issueResponse struct {
	ID             string    `json:"id"`
	StationID      string    `json:"stationId"`
	ReportedBy     string    `json:"reportedBy"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	PhotoObjectKey string    `json:"photoObjectKey,omitempty"`
	Status         string    `json:"status"`
	AdminNote      string    `json:"adminNote,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func issueToResponse(issue *issues.Issue) *issueResponse {
	if issue == nil {
		return nil
	}
	return &issueResponse{
		ID:             issue.ID,
		StationID:      issue.StationID,
		ReportedBy:     issue.ReportedBy,
		Category:       string(issue.Category),
		Description:    issue.Description,
		PhotoObjectKey: issue.PhotoObjectKey,
		Status:         string(issue.Status),
		AdminNote:      issue.AdminNote,
		CreatedAt:      issue.CreatedAt,
		UpdatedAt:      issue.UpdatedAt,
	}
}

func (h *IssuesHandler) Report(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Issues service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload reportIssueRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	issue, err := h.Service.Report(r.Context(), issues.ReportParams{
		StationID:      payload.StationID,
		ReportedBy:     actorID(r),
		Category:       issues.Category(payload.Category),
		Description:    payload.Description,
		PhotoObjectKey: payload.PhotoObjectKey,
	})
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	metrics.IssuesReported.WithLabelValues(string(issue.Category)).Inc()
	writeJSON(w, http.StatusCreated, issueToResponse(issue))
}

func (h *IssuesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Issues service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	issue, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusOK, issueToResponse(issue))
}

// List filters by station or status; station takes precedence when both
// are present.
func (h *IssuesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Issues service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var (
		list []issues.Issue
		err  error
	)
	if stationID := r.URL.Query().Get("stationId"); stationID != "" {
		list, err = h.Service.ListByStation(r.Context(), stationID)
	} else if status := r.URL.Query().Get("status"); status != "" {
		list, err = h.Service.ListByStatus(r.Context(), issues.Status(status))
	} else {
		list, err = h.Service.ListByStatus(r.Context(), issues.StatusOpen)
	}
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	items := make([]*issueResponse, 0, len(list))
	for i := range list {
		items = append(items, issueToResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type issueNoteRequest struct {
	AdminNote string `json:"adminNote"`
}

func (h *IssuesHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Issues service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	issue, err := h.Service.Acknowledge(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusOK, issueToResponse(issue))
}

func (h *IssuesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Issues service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload issueNoteRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	issue, err := h.Service.Resolve(r.Context(), pathParam(r, "id"), payload.AdminNote)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusOK, issueToResponse(issue))
}

func (h *IssuesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Issues service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload issueNoteRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	issue, err := h.Service.Reject(r.Context(), pathParam(r, "id"), payload.AdminNote)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusOK, issueToResponse(issue))
}

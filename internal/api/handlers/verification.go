package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/audit"
	"github.com/voltgrid/server/internal/domain/verification"
	"github.com/voltgrid/server/internal/metrics"
)

// VerificationHandler serves the field verification workflow: admins open
// and review tasks, collaborators work them.
type VerificationHandler struct {
	Service *verification.Service
	Ranker  *verification.Ranker
	Audit   *audit.Logger
	Env     string
}

type createTaskRequest struct {
	StationID       string     `json:"stationId"`
	ChangeRequestID *string    `json:"changeRequestId"`
	Priority        int        `json:"priority"`
	SLADueAt        *time.Time `json:"slaDueAt"`
}

func (h *VerificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Verification service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload createTaskRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	task, err := h.Service.Create(r.Context(), verification.TaskCreateParams{
		StationID:       payload.StationID,
		ChangeRequestID: payload.ChangeRequestID,
		Priority:        payload.Priority,
		SLADueAt:        payload.SLADueAt,
	})
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskToResponse(task))
}

func (h *VerificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Verification service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	task, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

func (h *VerificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Verification service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	filters := verification.TaskFilters{
		Status:     verification.Status(r.URL.Query().Get("status")),
		AssignedTo: r.URL.Query().Get("assignedTo"),
	}
	tasks, err := h.Service.List(r.Context(), filters)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	items := make([]*taskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskToResponse(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type candidateResponse struct {
	CollaboratorID string `json:"collaboratorId"`
	DisplayName    string `json:"displayName"`
	ContractActive bool   `json:"contractActive"`
	DistanceM      *int   `json:"distanceM,omitempty"`
	ActiveTasks    int    `json:"activeTasks"`
	CompletedTasks int    `json:"completedTasks"`
	RecentFailures int    `json:"recentFailures"`
}

func (h *VerificationHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	if h.Ranker == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Candidate ranking unavailable", problem.ErrNotFound, h.Env)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			problem.Write(w, r, http.StatusBadRequest, typeValidationError, "Invalid limit", err, h.Env)
			return
		}
		limit = value
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problem.Write(w, r, http.StatusBadRequest, typeValidationError, "Invalid offset", err, h.Env)
			return
		}
		offset = value
	}

	candidates, total, err := h.Ranker.CandidatesForTask(r.Context(), pathParam(r, "id"), offset, limit)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	items := make([]candidateResponse, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, candidateResponse{
			CollaboratorID: c.CollaboratorID,
			DisplayName:    c.DisplayName,
			ContractActive: c.ContractActive,
			DistanceM:      c.DistanceM,
			ActiveTasks:    c.ActiveTasks,
			CompletedTasks: c.CompletedTasks,
			RecentFailures: c.RecentFailures,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *VerificationHandler) CollaboratorKPI(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Verification service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	kpi, err := h.Service.KPIFor(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"collaboratorId": kpi.CollaboratorID,
		"monthStart":     kpi.MonthStart,
		"passes":         kpi.Passes,
		"fails":          kpi.Fails,
		"passRate":       kpi.PassRate,
		"activeTasks":    kpi.ActiveTasks,
	})
}

type assignTaskRequest struct {
	CollaboratorID string `json:"collaboratorId"`
}

func (h *VerificationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Verification service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload assignTaskRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	task, err := h.Service.Assign(r.Context(), pathParam(r, "id"), payload.CollaboratorID)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	metrics.VerificationTransitions.WithLabelValues(string(verification.StatusAssigned)).Inc()
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

type checkinRequest struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DeviceNote string  `json:"deviceNote"`
}

func (h *VerificationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Verification service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload checkinRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	task, err := h.Service.CheckIn(r.Context(), pathParam(r, "id"), actorID(r), verification.CheckinParams{
		Lat:        payload.Lat,
		Lng:        payload.Lng,
		DeviceNote: payload.DeviceNote,
	})
	if err != nil {
		var outOfRange verification.OutOfRangeError
		if errors.As(err, &outOfRange) {
			metrics.CheckinsRejected.Inc()
		}
		writeDomainError(w, r, h.Env, err)
		return
	}

	metrics.VerificationTransitions.WithLabelValues(string(verification.StatusCheckedIn)).Inc()
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

type evidenceRequest struct {
	PhotoObjectKey string `json:"photoObjectKey"`
	Note           string `json:"note"`
}

func (h *VerificationHandler) SubmitEvidence(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Verification service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload evidenceRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	task, err := h.Service.SubmitEvidence(r.Context(), pathParam(r, "id"), actorID(r), verification.EvidenceParams{
		PhotoObjectKey: payload.PhotoObjectKey,
		Note:           payload.Note,
	})
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	metrics.VerificationTransitions.WithLabelValues(string(verification.StatusSubmitted)).Inc()
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

type reviewRequest struct {
	Result    string `json:"result"`
	AdminNote string `json:"adminNote"`
}

func (h *VerificationHandler) Review(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Verification service unavailable", problem.ErrNotFound, h.Env)
		return
	}

	var payload reviewRequest
	if !decodeJSON(w, r, h.Env, &payload) {
		return
	}

	taskID := pathParam(r, "id")
	reviewerID := actorID(r)
	task, err := h.Service.Review(r.Context(), taskID, reviewerID, verification.Result(payload.Result), payload.AdminNote)
	if err != nil {
		if h.Audit != nil {
			h.Audit.LogFailure(r.Context(), "verification.review", reviewerID, map[string]string{
				"task_id": taskID,
				"error":   err.Error(),
			})
		}
		writeDomainError(w, r, h.Env, err)
		return
	}

	metrics.VerificationTransitions.WithLabelValues(string(verification.StatusReviewed)).Inc()
	if h.Audit != nil {
		h.Audit.LogSuccess(r.Context(), "verification.review", reviewerID, "verification_task", taskID, map[string]string{
			"station_id": task.StationID,
			"result":     payload.Result,
		})
	}
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

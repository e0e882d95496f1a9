package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/audit"
)

// AuditHandler exposes the persisted audit trail to admins.
type AuditHandler struct {
	Reader audit.Reader
	Env    string
}

type auditEntryResponse struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	ActorID      string            `json:"actorId"`
	ResourceType string            `json:"resourceType,omitempty"`
	ResourceID   string            `json:"resourceId,omitempty"`
	Status       string            `json:"status"`
	Details      map[string]string `json:"details,omitempty"`
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Reader == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Audit log unavailable", problem.ErrNotFound, h.Env)
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

	entries, err := h.Reader.List(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	items := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, auditEntryResponse{
			Timestamp:    entry.Timestamp,
			Action:       entry.Action,
			ActorID:      entry.ActorID,
			ResourceType: entry.ResourceType,
			ResourceID:   entry.ResourceID,
			Status:       entry.Status,
			Details:      entry.Details,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/domain/trust"
)

type TrustHandler struct {
	Engine *trust.Engine
	Env    string
}

type trustBreakdownResponse struct {
	StationID         string    `json:"stationId"`
	Base              int       `json:"base"`
	VerificationBonus int       `json:"verificationBonus"`
	IssuesPenalty     int       `json:"issuesPenalty"`
	HighRiskPenalty   int       `json:"highRiskPenalty"`
	Score             int       `json:"score"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (h *TrustHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Trust engine unavailable", problem.ErrNotFound, h.Env)
		return
	}

	breakdown, err := h.Engine.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	writeJSON(w, http.StatusOK, trustBreakdownResponse{
		StationID:         breakdown.StationID,
		Base:              breakdown.Base,
		VerificationBonus: breakdown.VerificationBonus,
		IssuesPenalty:     breakdown.IssuesPenalty,
		HighRiskPenalty:   breakdown.HighRiskPenalty,
		Score:             breakdown.Score,
		UpdatedAt:         breakdown.UpdatedAt,
	})
}

// Recompute forces a fresh derivation, bypassing the stored row.
func (h *TrustHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Trust engine unavailable", problem.ErrNotFound, h.Env)
		return
	}

	breakdown, err := h.Engine.Recompute(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.Env, err)
		return
	}

	writeJSON(w, http.StatusOK, trustBreakdownResponse{
		StationID:         breakdown.StationID,
		Base:              breakdown.Base,
		VerificationBonus: breakdown.VerificationBonus,
		IssuesPenalty:     breakdown.IssuesPenalty,
		HighRiskPenalty:   breakdown.HighRiskPenalty,
		Score:             breakdown.Score,
		UpdatedAt:         breakdown.UpdatedAt,
	})
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voltgrid/server/internal/api/problem"
	"github.com/voltgrid/server/internal/domain/changes"
	"github.com/voltgrid/server/internal/domain/collaborators"
	"github.com/voltgrid/server/internal/domain/issues"
	"github.com/voltgrid/server/internal/domain/stations"
	"github.com/voltgrid/server/internal/domain/trust"
	"github.com/voltgrid/server/internal/domain/users"
	"github.com/voltgrid/server/internal/domain/verification"
)

const (
	typeValidationError = "https://voltgrid.io/problems/validation-error"
	typeNotFound        = "https://voltgrid.io/problems/not-found"
	typeConflict        = "https://voltgrid.io/problems/conflict"
	typeInvalidState    = "https://voltgrid.io/problems/invalid-state"
	typeUnauthorized    = "https://voltgrid.io/problems/unauthorized"
	typeServerError     = "https://voltgrid.io/problems/server-error"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, env string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		problem.Write(w, r, http.StatusBadRequest, typeValidationError, "Malformed request body", err, env)
		return false
	}
	return true
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return r.PathValue(key)
}

// writeDomainError maps typed domain errors onto problem responses.
// Anything unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, env string, err error) {
	var (
		stationsValidation     stations.ValidationError
		changesValidation      changes.ValidationError
		verificationValidation verification.ValidationError
		issuesValidation       issues.ValidationError
		usersValidation        users.ValidationError
		alreadyDecided         changes.AlreadyDecidedError
		invalidState           changes.InvalidStateError
		invalidTaskTransition  verification.InvalidTransitionError
		invalidIssueTransition issues.InvalidTransitionError
		outOfRange             verification.OutOfRangeError
		ineligible             verification.IneligibleCollaboratorError
		notAssignee            verification.NotAssigneeError
	)

	switch {
	case errors.As(err, &stationsValidation),
		errors.As(err, &changesValidation),
		errors.As(err, &verificationValidation),
		errors.As(err, &issuesValidation),
		errors.As(err, &usersValidation):
		problem.Write(w, r, http.StatusBadRequest, typeValidationError, "Invalid request", err, env)
	case errors.Is(err, stations.ErrNotFound),
		errors.Is(err, stations.ErrVersionNotFound),
		errors.Is(err, changes.ErrNotFound),
		errors.Is(err, verification.ErrNotFound),
		errors.Is(err, issues.ErrNotFound),
		errors.Is(err, collaborators.ErrNotFound),
		errors.Is(err, collaborators.ErrContractNotFound),
		errors.Is(err, trust.ErrNotFound),
		errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, typeNotFound, "Not found", err, env)
	case errors.As(err, &alreadyDecided):
		problem.Write(w, r, http.StatusConflict, typeConflict, "Request already decided", err, env)
	case errors.As(err, &invalidTaskTransition), errors.As(err, &invalidIssueTransition):
		problem.Write(w, r, http.StatusConflict, typeConflict, "Invalid transition", err, env)
	case errors.Is(err, stations.ErrConflict), errors.Is(err, verification.ErrConflict):
		problem.Write(w, r, http.StatusConflict, typeConflict, "Conflict", err, env)
	case errors.As(err, &invalidState):
		problem.Write(w, r, http.StatusUnprocessableEntity, typeInvalidState, "Request not in a decidable state", err, env)
	case errors.As(err, &outOfRange):
		problem.Write(w, r, http.StatusUnprocessableEntity, typeInvalidState, "Check-in out of range", err, env)
	case errors.As(err, &ineligible):
		problem.Write(w, r, http.StatusUnprocessableEntity, typeInvalidState, "Collaborator not eligible", err, env)
	case errors.As(err, &notAssignee):
		problem.Write(w, r, http.StatusForbidden, "https://voltgrid.io/problems/forbidden", "Not the task assignee", err, env)
	case errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusConflict, typeConflict, "Email already registered", err, env)
	case errors.Is(err, users.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, typeUnauthorized, "Invalid credentials", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, typeServerError, "Server error", err, env)
	}
}

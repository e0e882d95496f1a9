package changes

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("change request not found")

// InvalidStateError is returned when a decision is attempted that the
// request's current state does not permit, such as approving a high-risk
// request without a passing verification.
type InvalidStateError struct {
	RequestID string
	Reason    string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("change request %s: %s", e.RequestID, e.Reason)
}

// AlreadyDecidedError is returned when a decision races against or
// follows an earlier terminal transition. Callers can re-fetch and
// treat it as a no-op.
type AlreadyDecidedError struct {
	RequestID string
	Status    RequestStatus
}

func (e AlreadyDecidedError) Error() string {
	return fmt.Sprintf("change request %s already decided: %s", e.RequestID, e.Status)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

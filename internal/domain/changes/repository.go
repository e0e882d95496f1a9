package changes

import (
	"context"
	"time"
)

type RequestType string

const (
	TypeCreate RequestType = "CREATE"
	TypeUpdate RequestType = "UPDATE"
)

type RequestStatus string

const (
	StatusPending     RequestStatus = "PENDING"
	StatusApproved    RequestStatus = "APPROVED"
	StatusRejected    RequestStatus = "REJECTED"
	StatusAutoApplied RequestStatus = "AUTO_APPLIED"
)

// Terminal reports whether the status can never change again.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusAutoApplied
}

// ChangeRequest is a proposal to create or update a station. Its risk
// score and reasons are frozen at submission; the status moves exactly
// once from PENDING to a terminal value.
type ChangeRequest struct {
	ID                string
	Type              RequestType
	Status            RequestStatus
	StationID         string
	ProposedVersionID string
	SubmittedBy       string
	RiskScore         int
	RiskReasons       []string
	AdminNote         string
	CreatedAt         time.Time
	DecidedAt         *time.Time
	DecidedBy         string
}

type RequestFilters struct {
	Status    RequestStatus
	StationID string
}

// Decision is the terminal transition applied to a PENDING request. The
// version action runs in the same transaction as the status change:
// publish archives the previously published version and publishes the
// proposed one, reject marks the proposed version REJECTED.
type Decision struct {
	Status    RequestStatus
	AdminNote string
	DecidedBy string
	DecidedAt time.Time
	Publish   bool
}

type Repository interface {
	Create(ctx context.Context, request ChangeRequest) error
	Get(ctx context.Context, id string) (*ChangeRequest, error)
	List(ctx context.Context, filters RequestFilters) ([]ChangeRequest, error)

	// Decide moves the request from PENDING to the decision's terminal
	// status and applies the version action atomically. It returns false
	// without side effects when the request was no longer PENDING, so
	// concurrent decisions yield exactly one winner.
	Decide(ctx context.Context, id string, decision Decision) (bool, error)

	// HasRecentHighRisk reports whether any request for the station was
	// scored at or above threshold since the given time.
	HasRecentHighRisk(ctx context.Context, stationID string, threshold int, since time.Time) (bool, error)
}

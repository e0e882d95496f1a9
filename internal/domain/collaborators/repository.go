package collaborators

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("collaborator not found")

var ErrContractNotFound = errors.New("contract not found")

type ContractStatus string

const (
	ContractActive     ContractStatus = "ACTIVE"
	ContractSuspended  ContractStatus = "SUSPENDED"
	ContractTerminated ContractStatus = "TERMINATED"
)

type LocationSource string

const (
	LocationMobile LocationSource = "MOBILE"
	LocationManual LocationSource = "MANUAL"
)

// Location is a collaborator's last reported position. Absence means the
// collaborator has never reported one; ranking treats that as
// unknown-distance, never as an error.
type Location struct {
	Lat        float64
	Lng        float64
	Source     LocationSource
	ReportedAt time.Time
}

type Profile struct {
	UserID      string
	DisplayName string
	Phone       string
	Location    *Location
	CreatedAt   time.Time
}

// Contract grants a collaborator the right to perform field verification
// between StartDate and EndDate inclusive, while its status is ACTIVE.
type Contract struct {
	ID             string
	CollaboratorID string
	Status         ContractStatus
	StartDate      time.Time
	EndDate        time.Time
	CreatedAt      time.Time
}

// IsEffective reports whether the contract authorizes work on the given day.
func (c Contract) IsEffective(on time.Time) bool {
	day := on.UTC().Truncate(24 * time.Hour)
	start := c.StartDate.UTC().Truncate(24 * time.Hour)
	end := c.EndDate.UTC().Truncate(24 * time.Hour)
	return c.Status == ContractActive && !day.Before(start) && !day.After(end)
}

type ContractCreateParams struct {
	CollaboratorID string
	StartDate      time.Time
	EndDate        time.Time
}

type Repository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	CreateProfile(ctx context.Context, profile Profile) error
	UpdateLocation(ctx context.Context, userID string, location Location) error

	CreateContract(ctx context.Context, contract Contract) error
	UpdateContractStatus(ctx context.Context, contractID string, status ContractStatus) error
	ListContracts(ctx context.Context, collaboratorID string) ([]Contract, error)

	// HasEffectiveContract reports whether the collaborator holds an ACTIVE
	// contract covering the given day.
	HasEffectiveContract(ctx context.Context, userID string, on time.Time) (bool, error)
}

package issues

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("issue not found")

type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusResolved     Status = "RESOLVED"
	StatusRejected     Status = "REJECTED"
)

type Category string

const (
	CategoryBrokenPort   Category = "BROKEN_PORT"
	CategoryWrongInfo    Category = "WRONG_INFO"
	CategoryInaccessible Category = "INACCESSIBLE"
	CategoryOther        Category = "OTHER"
)

// Issue is a user report against a station. OPEN and ACKNOWLEDGED issues
// count as unresolved for trust scoring.
type Issue struct {
	ID             string
	StationID      string
	ReportedBy     string
	Category       Category
	Description    string
	PhotoObjectKey string
	Status         Status
	AdminNote      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Unresolved reports whether the issue still penalizes the station.
func (i Issue) Unresolved() bool {
	return i.Status == StatusOpen || i.Status == StatusAcknowledged
}

type Repository interface {
	Create(ctx context.Context, issue Issue) error
	Get(ctx context.Context, id string) (*Issue, error)
	ListByStation(ctx context.Context, stationID string) ([]Issue, error)
	ListByStatus(ctx context.Context, status Status) ([]Issue, error)
	// UpdateStatus transitions the issue only when its current status is
	// from; it returns false when the guard failed.
	UpdateStatus(ctx context.Context, id string, from, to Status, adminNote string, now time.Time) (bool, error)
	CountUnresolved(ctx context.Context, stationID string) (int, error)
}

package verification

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("verification task not found")

var ErrConflict = errors.New("verification task conflict")

type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusAssigned  Status = "ASSIGNED"
	StatusCheckedIn Status = "CHECKED_IN"
	StatusSubmitted Status = "SUBMITTED"
	StatusReviewed  Status = "REVIEWED"
)

type Result string

const (
	ResultPass Result = "PASS"
	ResultFail Result = "FAIL"
)

// Checkin is the geofenced arrival record for a task.
type Checkin struct {
	Lat         float64
	Lng         float64
	CheckedInAt time.Time
	DistanceM   int
	DeviceNote  string
}

type Evidence struct {
	ID             string
	PhotoObjectKey string
	Note           string
	SubmittedAt    time.Time
	SubmittedBy    string
}

type Review struct {
	Result     Result
	AdminNote  string
	ReviewedAt time.Time
	ReviewedBy string
}

// Task is a field verification unit. It advances strictly
// OPEN -> ASSIGNED -> CHECKED_IN -> SUBMITTED -> REVIEWED.
type Task struct {
	ID              string
	StationID       string
	ChangeRequestID *string
	Priority        int
	SLADueAt        *time.Time
	AssignedTo      *string
	Status          Status
	Checkin         *Checkin
	Evidence        []Evidence
	Review          *Review
	CreatedAt       time.Time
}

// Active reports whether the task still occupies its change request's
// single verification slot.
func (t Task) Active() bool {
	return t.Status != StatusReviewed
}

type TaskCreateParams struct {
	StationID       string
	ChangeRequestID *string
	Priority        int
	SLADueAt        *time.Time
}

type TaskFilters struct {
	Status     Status
	AssignedTo string
}

// WorkloadStats summarizes a collaborator's task history for ranking.
type WorkloadStats struct {
	Completed      int
	Active         int
	RecentFailures int
	Overdue        int
}

type Repository interface {
	Create(ctx context.Context, task Task) error
	Get(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, filters TaskFilters) ([]Task, error)

	// FindActiveByChangeRequest returns the non-REVIEWED task referencing
	// the change request, or ErrNotFound.
	FindActiveByChangeRequest(ctx context.Context, changeRequestID string) (*Task, error)

	// Transitions are guarded on the expected source status; each returns
	// false when the guard failed so the caller can surface the actual
	// state. Each write is atomic: payload and status move together.
	Assign(ctx context.Context, taskID, collaboratorID string) (bool, error)
	RecordCheckin(ctx context.Context, taskID string, checkin Checkin) (bool, error)
	RecordEvidence(ctx context.Context, taskID string, evidence Evidence) (bool, error)
	RecordReview(ctx context.Context, taskID string, review Review) (bool, error)

	// HasPassedVerification reports whether a REVIEWED task with outcome
	// PASS references the change request.
	HasPassedVerification(ctx context.Context, changeRequestID string) (bool, error)

	// LatestReviewForStation returns the most recent review among the
	// station's reviewed tasks at or after since, or nil.
	LatestReviewForStation(ctx context.Context, stationID string, since time.Time) (*Review, error)

	// WorkloadFor aggregates the collaborator's tasks by status bucket;
	// failures and overdue are counted over the trailing window starting
	// at since.
	WorkloadFor(ctx context.Context, collaboratorID string, since time.Time) (WorkloadStats, error)

	// ReviewOutcomes counts the collaborator's reviewed tasks by outcome
	// at or after since.
	ReviewOutcomes(ctx context.Context, collaboratorID string, since time.Time) (passes, fails int, err error)

	// ListOverdue returns unfinished tasks whose SLA due time passed.
	ListOverdue(ctx context.Context, asOf time.Time) ([]Task, error)
}

package verification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltgrid/server/internal/domain/geo"
	"github.com/voltgrid/server/internal/domain/ids"
)

// defaultPriority is used when a task is created without one. 1 is the
// strictest priority, 5 the loosest.
const defaultPriority = 3

// StationLocator resolves the published coordinates of a station for
// geofence checks.
type StationLocator interface {
	StationLocation(ctx context.Context, stationID string) (lat, lng float64, err error)
}

// ContractChecker reports whether a collaborator holds an effective
// contract today.
type ContractChecker interface {
	HasActiveContract(ctx context.Context, collaboratorID string) (bool, error)
}

// TrustRecomputer re-derives a station's trust score after a review
// lands.
type TrustRecomputer interface {
	RecomputeStation(ctx context.Context, stationID string)
}

type Service struct {
	repo      Repository
	stations  StationLocator
	contracts ContractChecker
	trust     TrustRecomputer
	radiusM   int
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, stations StationLocator, contracts ContractChecker, trust TrustRecomputer, checkinRadiusM int, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		stations:  stations,
		contracts: contracts,
		trust:     trust,
		radiusM:   checkinRadiusM,
		logger:    logger.With().Str("component", "verification").Logger(),
		now:       time.Now,
	}
}

// Create opens a verification task. When the task references a change
// request, any still-active task for the same request is reused instead
// of opening a second one.
func (s *Service) Create(ctx context.Context, params TaskCreateParams) (*Task, error) {
	if params.StationID == "" {
		return nil, ValidationError{Field: "stationId", Message: "is required"}
	}
	if params.Priority == 0 {
		params.Priority = defaultPriority
	}
	if params.Priority < 1 || params.Priority > 5 {
		return nil, ValidationError{Field: "priority", Message: "must be between 1 and 5"}
	}

	if params.ChangeRequestID != nil {
		existing, err := s.repo.FindActiveByChangeRequest(ctx, *params.ChangeRequestID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	task := Task{
		ID:              ids.NewUUID(),
		StationID:       params.StationID,
		ChangeRequestID: params.ChangeRequestID,
		Priority:        params.Priority,
		SLADueAt:        params.SLADueAt,
		Status:          StatusOpen,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("station_id", task.StationID).
		Int("priority", task.Priority).
		Msg("verification task created")
	return &task, nil
}

// Assign moves an OPEN task to ASSIGNED. The collaborator must hold an
// effective contract at assignment time.
func (s *Service) Assign(ctx context.Context, taskID, collaboratorID string) (*Task, error) {
	if collaboratorID == "" {
		return nil, ValidationError{Field: "collaboratorId", Message: "is required"}
	}

	eligible, err := s.contracts.HasActiveContract(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, IneligibleCollaboratorError{CollaboratorID: collaboratorID, Reason: "no effective contract"}
	}

	ok, err := s.repo.Assign(ctx, taskID, collaboratorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, taskID, StatusAssigned)
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("collaborator_id", collaboratorID).
		Msg("verification task assigned")
	return s.repo.Get(ctx, taskID)
}

type CheckinParams struct {
	Lat        float64
	Lng        float64
	DeviceNote string
}

// CheckIn records arrival on an ASSIGNED task. Positions outside the
// geofence are rejected without touching the task.
func (s *Service) CheckIn(ctx context.Context, taskID, collaboratorID string, params CheckinParams) (*Task, error) {
	if !geo.ValidLatLng(params.Lat, params.Lng) {
		return nil, ValidationError{Field: "location", Message: "coordinates out of range"}
	}

	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssignedTo == nil || *task.AssignedTo != collaboratorID {
		return nil, NotAssigneeError{TaskID: taskID}
	}
	if task.Status != StatusAssigned {
		return nil, InvalidTransitionError{Current: task.Status, Attempted: StatusCheckedIn}
	}

	stationLat, stationLng, err := s.stations.StationLocation(ctx, task.StationID)
	if err != nil {
		return nil, err
	}
	distance := geo.DistanceM(stationLat, stationLng, params.Lat, params.Lng)
	if distance > s.radiusM {
		return nil, OutOfRangeError{DistanceM: distance, RadiusM: s.radiusM}
	}

	checkin := Checkin{
		Lat:         params.Lat,
		Lng:         params.Lng,
		CheckedInAt: s.now().UTC(),
		DistanceM:   distance,
		DeviceNote:  strings.TrimSpace(params.DeviceNote),
	}
	ok, err := s.repo.RecordCheckin(ctx, taskID, checkin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, taskID, StatusCheckedIn)
	}

	s.logger.Info().
		Str("task_id", taskID).
		Int("distance_m", distance).
		Msg("collaborator checked in")
	return s.repo.Get(ctx, taskID)
}

type EvidenceParams struct {
	PhotoObjectKey string
	Note           string
}

// SubmitEvidence attaches proof to a CHECKED_IN task and moves it to
// SUBMITTED.
func (s *Service) SubmitEvidence(ctx context.Context, taskID, collaboratorID string, params EvidenceParams) (*Task, error) {
	if params.PhotoObjectKey == "" {
		return nil, ValidationError{Field: "photoObjectKey", Message: "is required"}
	}

	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssignedTo == nil || *task.AssignedTo != collaboratorID {
		return nil, NotAssigneeError{TaskID: taskID}
	}
	if task.Status != StatusCheckedIn {
		return nil, InvalidTransitionError{Current: task.Status, Attempted: StatusSubmitted}
	}

	evidence := Evidence{
		ID:             ids.NewUUID(),
		PhotoObjectKey: params.PhotoObjectKey,
		Note:           strings.TrimSpace(params.Note),
		SubmittedAt:    s.now().UTC(),
		SubmittedBy:    collaboratorID,
	}
	ok, err := s.repo.RecordEvidence(ctx, taskID, evidence)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, taskID, StatusSubmitted)
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("evidence_id", evidence.ID).
		Msg("evidence submitted")
	return s.repo.Get(ctx, taskID)
}

// Review closes a SUBMITTED task with PASS or FAIL and refreshes the
// station's trust score.
func (s *Service) Review(ctx context.Context, taskID, reviewerID string, result Result, adminNote string) (*Task, error) {
	switch result {
	case ResultPass, ResultFail:
	default:
		return nil, ValidationError{Field: "result", Message: "must be PASS or FAIL"}
	}

	review := Review{
		Result:     result,
		AdminNote:  strings.TrimSpace(adminNote),
		ReviewedAt: s.now().UTC(),
		ReviewedBy: reviewerID,
	}
	ok, err := s.repo.RecordReview(ctx, taskID, review)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, taskID, StatusReviewed)
	}

	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("result", string(result)).
		Msg("verification task reviewed")

	s.trust.RecomputeStation(ctx, task.StationID)
	return task, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters TaskFilters) ([]Task, error) {
	return s.repo.List(ctx, filters)
}

// HasPassed reports whether the change request has a PASS review on
// record.
func (s *Service) HasPassed(ctx context.Context, changeRequestID string) (bool, error) {
	return s.repo.HasPassedVerification(ctx, changeRequestID)
}

// CollaboratorKPI summarizes a collaborator's review outcomes for the
// current calendar month.
type CollaboratorKPI struct {
	CollaboratorID string
	MonthStart     time.Time
	Passes         int
	Fails          int
	PassRate       float64
	ActiveTasks    int
}

// KPIFor aggregates the collaborator's month-to-date pass/fail record.
func (s *Service) KPIFor(ctx context.Context, collaboratorID string) (*CollaboratorKPI, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	passes, fails, err := s.repo.ReviewOutcomes(ctx, collaboratorID, monthStart)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.WorkloadFor(ctx, collaboratorID, monthStart)
	if err != nil {
		return nil, err
	}

	kpi := &CollaboratorKPI{
		CollaboratorID: collaboratorID,
		MonthStart:     monthStart,
		Passes:         passes,
		Fails:          fails,
		ActiveTasks:    stats.Active,
	}
	if total := passes + fails; total > 0 {
		kpi.PassRate = float64(passes) / float64(total)
	}
	return kpi, nil
}

// ListOverdue returns unfinished tasks whose SLA has lapsed.
func (s *Service) ListOverdue(ctx context.Context) ([]Task, error) {
	return s.repo.ListOverdue(ctx, s.now().UTC())
}

func (s *Service) transitionError(ctx context.Context, taskID string, attempted Status) error {
	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return err
	}
	return InvalidTransitionError{Current: task.Status, Attempted: attempted}
}

package issues

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/voltgrid/server/internal/domain/ids"
)

// InvalidTransitionError is returned when an issue status change violates
// the OPEN -> ACKNOWLEDGED -> RESOLVED/REJECTED ordering.
type InvalidTransitionError struct {
	Current   Status
	Attempted Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move issue from %s to %s", e.Current, e.Attempted)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TrustRecomputer re-derives a station's trust score after an issue
// changes state.
type TrustRecomputer interface {
	RecomputeStation(ctx context.Context, stationID string)
}

type StationChecker interface {
	StationExists(ctx context.Context, stationID string) (bool, error)
}

type Service struct {
	repo     Repository
	stations StationChecker
	trust    TrustRecomputer
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, stations StationChecker, trust TrustRecomputer, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		stations: stations,
		trust:    trust,
		logger:   logger.With().Str("component", "issues").Logger(),
		now:      time.Now,
	}
}

type ReportParams struct {
	StationID      string
	ReportedBy     string
	Category       Category
	Description    string
	PhotoObjectKey string
}

func (s *Service) Report(ctx context.Context, params ReportParams) (*Issue, error) {
	if params.StationID == "" {
		return nil, ValidationError{Field: "stationId", Message: "is required"}
	}
	if strings.TrimSpace(params.Description) == "" {
		return nil, ValidationError{Field: "description", Message: "is required"}
	}
	switch params.Category {
	case CategoryBrokenPort, CategoryWrongInfo, CategoryInaccessible, CategoryOther:
	default:
		return nil, ValidationError{Field: "category", Message: "unknown category"}
	}

	exists, err := s.stations.StationExists(ctx, params.StationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	now := s.now().UTC()
	issue := Issue{
		ID:             ids.NewUUID(),
		StationID:      params.StationID,
		ReportedBy:     params.ReportedBy,
		Category:       params.Category,
		Description:    strings.TrimSpace(params.Description),
		PhotoObjectKey: params.PhotoObjectKey,
		Status:         StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, issue); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("issue_id", issue.ID).
		Str("station_id", issue.StationID).
		Str("category", string(issue.Category)).
		Msg("issue reported")

	s.trust.RecomputeStation(ctx, issue.StationID)
	return &issue, nil
}

func (s *Service) Acknowledge(ctx context.Context, id string) (*Issue, error) {
	return s.transition(ctx, id, StatusOpen, StatusAcknowledged, "")
}

func (s *Service) Resolve(ctx context.Context, id, adminNote string) (*Issue, error) {
	issue, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// RESOLVED is reachable from both OPEN and ACKNOWLEDGED.
	return s.transition(ctx, id, issue.Status, StatusResolved, adminNote)
}

func (s *Service) Reject(ctx context.Context, id, adminNote string) (*Issue, error) {
	issue, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, issue.Status, StatusRejected, adminNote)
}

func (s *Service) Get(ctx context.Context, id string) (*Issue, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByStation(ctx context.Context, stationID string) ([]Issue, error) {
	return s.repo.ListByStation(ctx, stationID)
}

func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Issue, error) {
	return s.repo.ListByStatus(ctx, status)
}

func (s *Service) transition(ctx context.Context, id string, from, to Status, adminNote string) (*Issue, error) {
	if from == StatusResolved || from == StatusRejected {
		return nil, InvalidTransitionError{Current: from, Attempted: to}
	}

	ok, err := s.repo.UpdateStatus(ctx, id, from, to, adminNote, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, InvalidTransitionError{Current: current.Status, Attempted: to}
	}

	issue, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("issue_id", id).
		Str("status", string(to)).
		Msg("issue status changed")

	s.trust.RecomputeStation(ctx, issue.StationID)
	return issue, nil
}

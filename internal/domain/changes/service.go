package changes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltgrid/server/internal/config"
	"github.com/voltgrid/server/internal/domain/ids"
	"github.com/voltgrid/server/internal/domain/stations"
)

// VerificationGate is the slice of the verification workflow the change
// pipeline needs: opening a task for a high-risk request and checking
// whether the request has a passing review on record.
type VerificationGate interface {
	CreateTask(ctx context.Context, stationID, changeRequestID string, priority int, slaDueAt *time.Time) error
	HasPassed(ctx context.Context, changeRequestID string) (bool, error)
}

// TrustRecomputer re-derives a station's trust score after a request is
// decided.
type TrustRecomputer interface {
	RecomputeStation(ctx context.Context, stationID string)
}

// TxRepos are the repositories a submission writes through. Inside
// RunInTx they all share one transaction.
type TxRepos struct {
	Requests Repository
	Stations stations.Repository
	Gate     VerificationGate
}

// Transactor runs fn atomically: either every write fn performs through
// the passed repositories commits, or none do.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos TxRepos) error) error
}

type Service struct {
	repo   Repository
	scorer *Scorer
	gate   VerificationGate
	trust  TrustRecomputer
	tx     Transactor
	cfg    config.WorkflowConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(
	repo Repository,
	scorer *Scorer,
	gate VerificationGate,
	trust TrustRecomputer,
	tx Transactor,
	cfg config.WorkflowConfig,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:   repo,
		scorer: scorer,
		gate:   gate,
		trust:  trust,
		tx:     tx,
		cfg:    cfg,
		logger: logger.With().Str("component", "changes").Logger(),
		now:    time.Now,
	}
}

type SubmitParams struct {
	Type        RequestType
	StationID   string
	ProviderID  string
	SubmittedBy string
	Fields      stations.VersionFields
}

// Submit validates a proposed version, scores it, and either applies it
// immediately or parks it pending verification. Low-risk submissions
// publish without review; submissions at or above the threshold stay
// PENDING and open exactly one verification task. Every write, including
// the task for a high-risk request, lands in one transaction: a failed
// submission leaves no station, version, or request behind.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*ChangeRequest, error) {
	if err := stations.ValidateVersionFields(params.Fields); err != nil {
		return nil, err
	}

	switch params.Type {
	case TypeCreate:
		if params.ProviderID == "" {
			return nil, ValidationError{Field: "providerId", Message: "is required"}
		}
	case TypeUpdate:
		if params.StationID == "" {
			return nil, ValidationError{Field: "stationId", Message: "is required for updates"}
		}
	default:
		return nil, ValidationError{Field: "type", Message: "must be CREATE or UPDATE"}
	}

	var (
		request    ChangeRequest
		assessment RiskAssessment
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context, repos TxRepos) error {
		var prior *stations.StationVersion
		stationID := params.StationID

		if params.Type == TypeCreate {
			station := stations.Station{
				ID:         ids.NewULID(),
				ProviderID: params.ProviderID,
				CreatedAt:  s.now().UTC(),
			}
			if err := repos.Stations.CreateStation(ctx, station); err != nil {
				return err
			}
			stationID = station.ID
		} else {
			if _, err := repos.Stations.GetStation(ctx, stationID); err != nil {
				return err
			}
			published, err := repos.Stations.GetPublishedVersion(ctx, stationID)
			if err != nil && !errors.Is(err, stations.ErrVersionNotFound) {
				return err
			}
			prior = published
		}

		assessment = s.scorer.Score(params.Fields, prior)

		version, err := repos.Stations.CreateVersion(ctx, stations.VersionCreateParams{
			StationID: stationID,
			Status:    stations.StatusPendingReview,
			Fields:    params.Fields,
			CreatedBy: params.SubmittedBy,
		})
		if err != nil {
			return err
		}

		request = ChangeRequest{
			ID:                ids.NewUUID(),
			Type:              params.Type,
			Status:            StatusPending,
			StationID:         stationID,
			ProposedVersionID: version.ID,
			SubmittedBy:       params.SubmittedBy,
			RiskScore:         assessment.Score,
			RiskReasons:       assessment.Reasons,
			CreatedAt:         s.now().UTC(),
		}
		if err := repos.Requests.Create(ctx, request); err != nil {
			return err
		}

		if !assessment.HighRisk(s.cfg.HighRiskThreshold) {
			ok, err := repos.Requests.Decide(ctx, request.ID, Decision{
				Status:    StatusAutoApplied,
				DecidedBy: request.SubmittedBy,
				DecidedAt: s.now().UTC(),
				Publish:   true,
			})
			if err != nil {
				return err
			}
			if !ok {
				return AlreadyDecidedError{RequestID: request.ID, Status: StatusAutoApplied}
			}
			return nil
		}

		priority := priorityForScore(assessment.Score)
		due := s.now().UTC().Add(time.Duration(priority) * 24 * time.Hour)
		return repos.Gate.CreateTask(ctx, request.StationID, request.ID, priority, &due)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("request_id", request.ID).
		Str("station_id", request.StationID).
		Int("risk_score", assessment.Score).
		Strs("risk_reasons", assessment.Reasons).
		Msg("change request submitted")

	if !assessment.HighRisk(s.cfg.HighRiskThreshold) {
		s.logger.Info().
			Str("request_id", request.ID).
			Msg("low-risk change auto-applied")
		s.trust.RecomputeStation(ctx, request.StationID)
	} else {
		s.logger.Info().
			Str("request_id", request.ID).
			Int("priority", priorityForScore(assessment.Score)).
			Msg("verification task opened for high-risk request")
	}
	return s.repo.Get(ctx, request.ID)
}

// Approve publishes the proposed version of a PENDING request. High-risk
// requests additionally need a PASS review before approval.
func (s *Service) Approve(ctx context.Context, requestID, adminID, note string) (*ChangeRequest, error) {
	request, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, AlreadyDecidedError{RequestID: requestID, Status: request.Status}
	}

	if request.RiskScore >= s.cfg.HighRiskThreshold {
		passed, err := s.gate.HasPassed(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if !passed {
			return nil, InvalidStateError{RequestID: requestID, Reason: "high-risk request requires a passing verification"}
		}
	}

	return s.decide(ctx, request, Decision{
		Status:    StatusApproved,
		AdminNote: strings.TrimSpace(note),
		DecidedBy: adminID,
		DecidedAt: s.now().UTC(),
		Publish:   true,
	})
}

// Reject terminates a PENDING request. The proposed version stays
// unpublished permanently. A reason is mandatory.
func (s *Service) Reject(ctx context.Context, requestID, adminID, reason string) (*ChangeRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ValidationError{Field: "reason", Message: "is required when rejecting"}
	}

	request, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, AlreadyDecidedError{RequestID: requestID, Status: request.Status}
	}

	return s.decide(ctx, request, Decision{
		Status:    StatusRejected,
		AdminNote: strings.TrimSpace(reason),
		DecidedBy: adminID,
		DecidedAt: s.now().UTC(),
	})
}

func (s *Service) Get(ctx context.Context, id string) (*ChangeRequest, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters RequestFilters) ([]ChangeRequest, error) {
	return s.repo.List(ctx, filters)
}

// decide runs the guarded terminal transition. A failed guard means a
// concurrent decision won; the actual status is surfaced so the caller
// can re-fetch and stop.
func (s *Service) decide(ctx context.Context, request *ChangeRequest, decision Decision) (*ChangeRequest, error) {
	ok, err := s.repo.Decide(ctx, request.ID, decision)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.repo.Get(ctx, request.ID)
		if err != nil {
			return nil, err
		}
		return nil, AlreadyDecidedError{RequestID: request.ID, Status: current.Status}
	}

	s.logger.Info().
		Str("request_id", request.ID).
		Str("station_id", request.StationID).
		Str("status", string(decision.Status)).
		Msg("change request decided")

	s.trust.RecomputeStation(ctx, request.StationID)
	return s.repo.Get(ctx, request.ID)
}

// priorityForScore maps a risk score to task priority. Higher scores get
// stricter (lower) priorities.
func priorityForScore(score int) int {
	switch {
	case score >= 90:
		return 1
	case score >= 70:
		return 2
	case score >= 60:
		return 3
	default:
		return 4
	}
}

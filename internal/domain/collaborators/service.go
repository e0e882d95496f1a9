package collaborators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/voltgrid/server/internal/domain/geo"
	"github.com/voltgrid/server/internal/domain/ids"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "collaborators").Logger(),
		now:    time.Now,
	}
}

func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

func (s *Service) CreateProfile(ctx context.Context, userID, displayName, phone string) (*Profile, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("display name is required")
	}
	profile := Profile{
		UserID:      userID,
		DisplayName: displayName,
		Phone:       strings.TrimSpace(phone),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Msg("collaborator profile created")
	return &profile, nil
}

// ReportLocation stores the collaborator's current position for candidate
// ranking. Rejected coordinates leave the previous location untouched.
func (s *Service) ReportLocation(ctx context.Context, userID string, lat, lng float64, source LocationSource) (*Location, error) {
	if !geo.ValidLatLng(lat, lng) {
		return nil, fmt.Errorf("invalid coordinates: lat=%v lng=%v", lat, lng)
	}
	if source == "" {
		source = LocationMobile
	}
	location := Location{
		Lat:        lat,
		Lng:        lng,
		Source:     source,
		ReportedAt: s.now().UTC(),
	}
	if err := s.repo.UpdateLocation(ctx, userID, location); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("user_id", userID).Msg("collaborator location updated")
	return &location, nil
}

func (s *Service) CreateContract(ctx context.Context, params ContractCreateParams) (*Contract, error) {
	if params.CollaboratorID == "" {
		return nil, fmt.Errorf("collaborator id is required")
	}
	if params.EndDate.Before(params.StartDate) {
		return nil, fmt.Errorf("contract end date must be on or after start date")
	}
	if _, err := s.repo.GetProfile(ctx, params.CollaboratorID); err != nil {
		return nil, err
	}
	contract := Contract{
		ID:             ids.NewUUID(),
		CollaboratorID: params.CollaboratorID,
		Status:         ContractActive,
		StartDate:      params.StartDate,
		EndDate:        params.EndDate,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateContract(ctx, contract); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("collaborator_id", params.CollaboratorID).
		Str("contract_id", contract.ID).
		Msg("contract created")
	return &contract, nil
}

func (s *Service) SetContractStatus(ctx context.Context, contractID string, status ContractStatus) error {
	switch status {
	case ContractActive, ContractSuspended, ContractTerminated:
	default:
		return fmt.Errorf("unknown contract status: %s", status)
	}
	return s.repo.UpdateContractStatus(ctx, contractID, status)
}

func (s *Service) Contracts(ctx context.Context, collaboratorID string) ([]Contract, error) {
	return s.repo.ListContracts(ctx, collaboratorID)
}

// HasActiveContract reports whether the collaborator can be assigned work
// today. Called at assignment and check-in time, never cached.
func (s *Service) HasActiveContract(ctx context.Context, userID string) (bool, error) {
	return s.repo.HasEffectiveContract(ctx, userID, s.now().UTC())
}

package postgres

import (
	"context"
	"time"

	"github.com/voltgrid/server/internal/domain/trust"
)

var _ trust.SignalSource = (*TrustSignalSource)(nil)

// TrustSignalSource feeds the trust engine from the verification, issue,
// and change request tables.
type TrustSignalSource struct {
	repo          *Repository
	highThreshold int
}

func NewTrustSignalSource(repo *Repository, highRiskThreshold int) *TrustSignalSource {
	return &TrustSignalSource{repo: repo, highThreshold: highRiskThreshold}
}

func (s *TrustSignalSource) LatestReview(ctx context.Context, stationID string, since time.Time) (*trust.ReviewSignal, error) {
	review, err := s.repo.Verification().LatestReviewForStation(ctx, stationID, since)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, nil
	}
	return &trust.ReviewSignal{
		Result:     trust.ReviewResult(review.Result),
		ReviewedAt: review.ReviewedAt,
	}, nil
}

func (s *TrustSignalSource) CountUnresolvedIssues(ctx context.Context, stationID string) (int, error) {
	return s.repo.Issues().CountUnresolved(ctx, stationID)
}

func (s *TrustSignalSource) HasHighRiskChange(ctx context.Context, stationID string, since time.Time) (bool, error) {
	return s.repo.Changes().HasRecentHighRisk(ctx, stationID, s.highThreshold, since)
}

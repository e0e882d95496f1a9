package trust

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/server/internal/config"
)

type fakeRepo struct {
	mu     sync.Mutex
	stored map[string]Breakdown
}

func (r *fakeRepo) Get(_ context.Context, stationID string) (*Breakdown, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.stored[stationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *fakeRepo) Upsert(_ context.Context, breakdown Breakdown) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stored == nil {
		r.stored = make(map[string]Breakdown)
	}
	r.stored[breakdown.StationID] = breakdown
	return nil
}

type fakeSignals struct {
	review     *ReviewSignal
	issueCount int
	highRisk   bool
}

func (s *fakeSignals) LatestReview(_ context.Context, _ string, _ time.Time) (*ReviewSignal, error) {
	return s.review, nil
}

func (s *fakeSignals) CountUnresolvedIssues(_ context.Context, _ string) (int, error) {
	return s.issueCount, nil
}

func (s *fakeSignals) HasHighRiskChange(_ context.Context, _ string, _ time.Time) (bool, error) {
	return s.highRisk, nil
}

func newEngine(signals SignalSource) (*Engine, *fakeRepo) {
	repo := &fakeRepo{}
	return NewEngine(repo, signals, config.DefaultWorkflow(), zerolog.Nop()), repo
}

func TestRecomputeBaseOnly(t *testing.T) {
	engine, _ := newEngine(&fakeSignals{})

	breakdown, err := engine.Recompute(context.Background(), "station-1")
	require.NoError(t, err)
	require.Equal(t, 50, breakdown.Score)
	require.Equal(t, 50, breakdown.Base)
	require.Zero(t, breakdown.VerificationBonus)
	require.Zero(t, breakdown.IssuesPenalty)
	require.Zero(t, breakdown.HighRiskPenalty)
}

func TestRecomputePassWithIssues(t *testing.T) {
	// base 50, recent PASS +20, 2 unresolved issues -10, no high risk.
	engine, _ := newEngine(&fakeSignals{
		review:     &ReviewSignal{Result: ReviewPass, ReviewedAt: time.Now()},
		issueCount: 2,
	})

	breakdown, err := engine.Recompute(context.Background(), "station-1")
	require.NoError(t, err)
	require.Equal(t, 60, breakdown.Score)
	require.Equal(t, 20, breakdown.VerificationBonus)
	require.Equal(t, -10, breakdown.IssuesPenalty)
}

func TestRecomputeFailAndHighRisk(t *testing.T) {
	engine, _ := newEngine(&fakeSignals{
		review:   &ReviewSignal{Result: ReviewFail, ReviewedAt: time.Now()},
		highRisk: true,
	})

	breakdown, err := engine.Recompute(context.Background(), "station-1")
	require.NoError(t, err)
	require.Equal(t, -20, breakdown.VerificationBonus)
	require.Equal(t, -10, breakdown.HighRiskPenalty)
	require.Equal(t, 20, breakdown.Score)
}

func TestRecomputeIssuesPenaltyFloor(t *testing.T) {
	engine, _ := newEngine(&fakeSignals{issueCount: 12})

	breakdown, err := engine.Recompute(context.Background(), "station-1")
	require.NoError(t, err)
	require.Equal(t, -30, breakdown.IssuesPenalty)
	require.Equal(t, 20, breakdown.Score)
}

func TestRecomputeClampsAtZero(t *testing.T) {
	engine, _ := newEngine(&fakeSignals{
		review:     &ReviewSignal{Result: ReviewFail, ReviewedAt: time.Now()},
		issueCount: 12,
		highRisk:   true,
	})

	breakdown, err := engine.Recompute(context.Background(), "station-1")
	require.NoError(t, err)
	// 50 - 20 - 30 - 10 = -10, clamped to 0.
	require.Equal(t, 0, breakdown.Score)
}

func TestRecomputeUsesConfiguredWeights(t *testing.T) {
	cfg := config.DefaultWorkflow()
	cfg.Trust = config.TrustWeights{
		Base:                40,
		VerificationBonus:   30,
		VerificationPenalty: -30,
		IssuePenalty:        -2,
		MaxIssuesPenalty:    -10,
		HighRiskPenalty:     -25,
	}
	engine := NewEngine(&fakeRepo{}, &fakeSignals{
		review:     &ReviewSignal{Result: ReviewPass, ReviewedAt: time.Now()},
		issueCount: 3,
		highRisk:   true,
	}, cfg, zerolog.Nop())

	breakdown, err := engine.Recompute(context.Background(), "station-1")
	require.NoError(t, err)
	require.Equal(t, 40, breakdown.Base)
	require.Equal(t, 30, breakdown.VerificationBonus)
	require.Equal(t, -6, breakdown.IssuesPenalty)
	require.Equal(t, -25, breakdown.HighRiskPenalty)
	// 40 + 30 - 6 - 25 = 39
	require.Equal(t, 39, breakdown.Score)
}

func TestRecomputeIdempotent(t *testing.T) {
	signals := &fakeSignals{
		review:     &ReviewSignal{Result: ReviewPass, ReviewedAt: time.Now()},
		issueCount: 1,
	}
	engine, repo := newEngine(signals)
	engine.now = func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }

	first, err := engine.Recompute(context.Background(), "station-1")
	require.NoError(t, err)
	second, err := engine.Recompute(context.Background(), "station-1")
	require.NoError(t, err)
	require.Equal(t, first, second)

	stored, err := repo.Get(context.Background(), "station-1")
	require.NoError(t, err)
	require.Equal(t, *second, *stored)
}

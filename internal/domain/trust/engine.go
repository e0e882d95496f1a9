// Package trust derives a bounded 0-100 trust score per station from
// verification outcomes, open issues, and recent high-risk change history.
// The score is always recomputed from current signals and replaced
// wholesale, never patched incrementally, so recomputing is idempotent and
// safe to run concurrently.
package trust

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltgrid/server/internal/config"
)

var ErrNotFound = errors.New("trust breakdown not found")

// Breakdown is the per-station score decomposition. The stored row is
// replaced in full on every recompute.
type Breakdown struct {
	StationID         string
	Base              int
	VerificationBonus int
	IssuesPenalty     int
	HighRiskPenalty   int
	Score             int
	UpdatedAt         time.Time
}

// Sum returns the clamped total of all components.
func (b Breakdown) Sum() int {
	raw := b.Base + b.VerificationBonus + b.IssuesPenalty + b.HighRiskPenalty
	if raw < 0 {
		return 0
	}
	if raw > 100 {
		return 100
	}
	return raw
}

type ReviewResult string

const (
	ReviewPass ReviewResult = "PASS"
	ReviewFail ReviewResult = "FAIL"
)

// ReviewSignal is the most recent verification review for a station.
type ReviewSignal struct {
	Result     ReviewResult
	ReviewedAt time.Time
}

type Repository interface {
	Get(ctx context.Context, stationID string) (*Breakdown, error)
	// Upsert replaces the station's breakdown atomically.
	Upsert(ctx context.Context, breakdown Breakdown) error
}

// SignalSource reads the inputs of a recompute. Reads may race with the
// writes that triggered the recompute; any consistent snapshot is valid.
type SignalSource interface {
	// LatestReview returns the most recent reviewed verification for the
	// station at or after since, or nil when there is none.
	LatestReview(ctx context.Context, stationID string, since time.Time) (*ReviewSignal, error)
	// CountUnresolvedIssues counts reported issues still open or
	// acknowledged for the station.
	CountUnresolvedIssues(ctx context.Context, stationID string) (int, error)
	// HasHighRiskChange reports whether any change request for the station
	// was scored at or above the high-risk threshold at or after since.
	HasHighRiskChange(ctx context.Context, stationID string, since time.Time) (bool, error)
}

type Engine struct {
	repo         Repository
	signals      SignalSource
	weights      config.TrustWeights
	lookbackDays int
	logger       zerolog.Logger
	now          func() time.Time
}

func NewEngine(repo Repository, signals SignalSource, cfg config.WorkflowConfig, logger zerolog.Logger) *Engine {
	weights := cfg.Trust
	if weights == (config.TrustWeights{}) {
		weights = config.DefaultWorkflow().Trust
	}
	lookbackDays := cfg.TrustLookbackDays
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Engine{
		repo:         repo,
		signals:      signals,
		weights:      weights,
		lookbackDays: lookbackDays,
		logger:       logger.With().Str("component", "trust").Logger(),
		now:          time.Now,
	}
}

// Recompute derives the station's breakdown from current signals and
// replaces the stored value. No lock is taken: concurrent recomputes both
// write valid results and the last writer stands.
func (e *Engine) Recompute(ctx context.Context, stationID string) (*Breakdown, error) {
	now := e.now().UTC()
	since := now.AddDate(0, 0, -e.lookbackDays)

	review, err := e.signals.LatestReview(ctx, stationID, since)
	if err != nil {
		return nil, err
	}
	issueCount, err := e.signals.CountUnresolvedIssues(ctx, stationID)
	if err != nil {
		return nil, err
	}
	highRisk, err := e.signals.HasHighRiskChange(ctx, stationID, since)
	if err != nil {
		return nil, err
	}

	breakdown := Breakdown{
		StationID:         stationID,
		Base:              e.weights.Base,
		VerificationBonus: e.reviewComponent(review),
		IssuesPenalty:     e.issuesComponent(issueCount),
		UpdatedAt:         now,
	}
	if highRisk {
		breakdown.HighRiskPenalty = e.weights.HighRiskPenalty
	}
	breakdown.Score = breakdown.Sum()

	if err := e.repo.Upsert(ctx, breakdown); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("station_id", stationID).
		Int("score", breakdown.Score).
		Int("verification", breakdown.VerificationBonus).
		Int("issues", breakdown.IssuesPenalty).
		Int("high_risk", breakdown.HighRiskPenalty).
		Msg("trust score recomputed")

	return &breakdown, nil
}

func (e *Engine) Get(ctx context.Context, stationID string) (*Breakdown, error) {
	return e.repo.Get(ctx, stationID)
}

func (e *Engine) reviewComponent(review *ReviewSignal) int {
	if review == nil {
		return 0
	}
	if review.Result == ReviewPass {
		return e.weights.VerificationBonus
	}
	return e.weights.VerificationPenalty
}

func (e *Engine) issuesComponent(count int) int {
	penalty := count * e.weights.IssuePenalty
	if penalty < e.weights.MaxIssuesPenalty {
		return e.weights.MaxIssuesPenalty
	}
	return penalty
}

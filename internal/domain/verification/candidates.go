package verification

import (
	"context"
	"sort"
	"time"

	"github.com/voltgrid/server/internal/domain/geo"
)

// CandidateProfile is the slice of a collaborator the ranker needs.
type CandidateProfile struct {
	CollaboratorID string
	DisplayName    string
	// Lat/Lng are nil when the collaborator never reported a location.
	Lat *float64
	Lng *float64
}

// ProfileSource lists collaborator profiles and their contract state.
type ProfileSource interface {
	ListCandidateProfiles(ctx context.Context) ([]CandidateProfile, error)
	HasActiveContract(ctx context.Context, collaboratorID string) (bool, error)
}

// Candidate is one ranked assignment suggestion for a task.
type Candidate struct {
	CollaboratorID string
	DisplayName    string
	ContractActive bool
	// DistanceM is nil when the collaborator has no known location.
	DistanceM      *int
	ActiveTasks    int
	CompletedTasks int
	RecentFailures int
}

// Ranker orders collaborators for a station visit: effective contract
// first, then nearest, then least loaded.
type Ranker struct {
	repo     Repository
	profiles ProfileSource
	stations StationLocator
	window   time.Duration
	now      func() time.Time
}

func NewRanker(repo Repository, profiles ProfileSource, stations StationLocator, lookbackDays int) *Ranker {
	return &Ranker{
		repo:     repo,
		profiles: profiles,
		stations: stations,
		window:   time.Duration(lookbackDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// CandidatesForTask ranks every collaborator for the task's station and
// returns the requested window plus the total candidate count. Ties on
// contract state break by distance (unknown locations last), then by
// active workload.
func (r *Ranker) CandidatesForTask(ctx context.Context, taskID string, offset, limit int) ([]Candidate, int, error) {
	task, err := r.repo.Get(ctx, taskID)
	if err != nil {
		return nil, 0, err
	}

	stationLat, stationLng, err := r.stations.StationLocation(ctx, task.StationID)
	if err != nil {
		return nil, 0, err
	}

	profiles, err := r.profiles.ListCandidateProfiles(ctx)
	if err != nil {
		return nil, 0, err
	}

	since := r.now().UTC().Add(-r.window)
	candidates := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		active, err := r.profiles.HasActiveContract(ctx, p.CollaboratorID)
		if err != nil {
			return nil, 0, err
		}
		stats, err := r.repo.WorkloadFor(ctx, p.CollaboratorID, since)
		if err != nil {
			return nil, 0, err
		}

		c := Candidate{
			CollaboratorID: p.CollaboratorID,
			DisplayName:    p.DisplayName,
			ContractActive: active,
			ActiveTasks:    stats.Active,
			CompletedTasks: stats.Completed,
			RecentFailures: stats.RecentFailures,
		}
		if p.Lat != nil && p.Lng != nil {
			d := geo.DistanceM(stationLat, stationLng, *p.Lat, *p.Lng)
			c.DistanceM = &d
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ContractActive != b.ContractActive {
			return a.ContractActive
		}
		switch {
		case a.DistanceM != nil && b.DistanceM != nil:
			if *a.DistanceM != *b.DistanceM {
				return *a.DistanceM < *b.DistanceM
			}
		case a.DistanceM != nil:
			return true
		case b.DistanceM != nil:
			return false
		}
		return a.ActiveTasks < b.ActiveTasks
	})

	total := len(candidates)
	if offset > 0 {
		if offset >= total {
			return []Candidate{}, total, nil
		}
		candidates = candidates[offset:]
	}
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, total, nil
}

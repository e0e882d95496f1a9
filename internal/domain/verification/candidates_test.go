package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProfiles struct {
	profiles []CandidateProfile
	active   map[string]bool
}

func (p fakeProfiles) ListCandidateProfiles(_ context.Context) ([]CandidateProfile, error) {
	return p.profiles, nil
}

func (p fakeProfiles) HasActiveContract(_ context.Context, collaboratorID string) (bool, error) {
	return p.active[collaboratorID], nil
}

func ptr(v float64) *float64 { return &v }

func TestCandidateOrdering(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive("A", "B"))

	task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", Priority: 3})
	require.NoError(t, err)

	// A: active contract, 5km away. B: active contract, 1km away.
	// C: no contract but right next to the station.
	profiles := fakeProfiles{
		profiles: []CandidateProfile{
			{CollaboratorID: "A", DisplayName: "A", Lat: ptr(stationLat + 0.045), Lng: ptr(stationLng)},
			{CollaboratorID: "B", DisplayName: "B", Lat: ptr(stationLat + 0.009), Lng: ptr(stationLng)},
			{CollaboratorID: "C", DisplayName: "C", Lat: ptr(stationLat), Lng: ptr(stationLng)},
		},
		active: map[string]bool{"A": true, "B": true},
	}

	ranker := NewRanker(repo, profiles, fakeLocator{lat: stationLat, lng: stationLng}, 30)
	candidates, total, err := ranker.CandidatesForTask(context.Background(), task.ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)

	got := make([]string, len(candidates))
	for i, c := range candidates {
		got[i] = c.CollaboratorID
	}
	require.Equal(t, []string{"B", "A", "C"}, got)
	require.True(t, candidates[0].ContractActive)
	require.False(t, candidates[2].ContractActive)

	window, total, err := ranker.CandidatesForTask(context.Background(), task.ID, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, window, 1)
	require.Equal(t, "A", window[0].CollaboratorID)
}

func TestCandidateUnknownLocationSortsLast(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive("near", "nowhere"))

	task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", Priority: 3})
	require.NoError(t, err)

	profiles := fakeProfiles{
		profiles: []CandidateProfile{
			{CollaboratorID: "nowhere", DisplayName: "No Location"},
			{CollaboratorID: "near", DisplayName: "Near", Lat: ptr(stationLat), Lng: ptr(stationLng)},
		},
		active: map[string]bool{"near": true, "nowhere": true},
	}

	ranker := NewRanker(repo, profiles, fakeLocator{lat: stationLat, lng: stationLng}, 30)
	candidates, _, err := ranker.CandidatesForTask(context.Background(), task.ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "near", candidates[0].CollaboratorID)
	require.Equal(t, "nowhere", candidates[1].CollaboratorID)
	require.Nil(t, candidates[1].DistanceM)
}

func TestCandidateWorkloadBreaksTies(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive("busy", "idle"))

	// give "busy" two active tasks before ranking
	for i := 0; i < 2; i++ {
		task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-x", Priority: 3})
		require.NoError(t, err)
		_, err = svc.Assign(context.Background(), task.ID, "busy")
		require.NoError(t, err)
	}

	task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", Priority: 3})
	require.NoError(t, err)

	// both collaborators share the station's location
	profiles := fakeProfiles{
		profiles: []CandidateProfile{
			{CollaboratorID: "busy", DisplayName: "Busy", Lat: ptr(stationLat), Lng: ptr(stationLng)},
			{CollaboratorID: "idle", DisplayName: "Idle", Lat: ptr(stationLat), Lng: ptr(stationLng)},
		},
		active: map[string]bool{"busy": true, "idle": true},
	}

	ranker := NewRanker(repo, profiles, fakeLocator{lat: stationLat, lng: stationLng}, 30)
	candidates, _, err := ranker.CandidatesForTask(context.Background(), task.ID, 0, 2)
	require.NoError(t, err)
	require.Equal(t, "idle", candidates[0].CollaboratorID)
	require.Equal(t, 0, candidates[0].ActiveTasks)
	require.Equal(t, "busy", candidates[1].CollaboratorID)
	require.Equal(t, 2, candidates[1].ActiveTasks)
}

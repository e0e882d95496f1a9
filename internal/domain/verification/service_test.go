package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: make(map[string]*Task)}
}

func (r *fakeRepo) Create(_ context.Context, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = &task
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (r *fakeRepo) List(_ context.Context, filters TaskFilters) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Task
	for _, task := range r.tasks {
		if filters.Status != "" && task.Status != filters.Status {
			continue
		}
		if filters.AssignedTo != "" && (task.AssignedTo == nil || *task.AssignedTo != filters.AssignedTo) {
			continue
		}
		out = append(out, *task)
	}
	return out, nil
}

func (r *fakeRepo) FindActiveByChangeRequest(_ context.Context, changeRequestID string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range r.tasks {
		if task.ChangeRequestID != nil && *task.ChangeRequestID == changeRequestID && task.Active() {
			copied := *task
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) Assign(_ context.Context, taskID, collaboratorID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return false, ErrNotFound
	}
	if task.Status != StatusOpen {
		return false, nil
	}
	task.Status = StatusAssigned
	task.AssignedTo = &collaboratorID
	return true, nil
}

func (r *fakeRepo) RecordCheckin(_ context.Context, taskID string, checkin Checkin) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return false, ErrNotFound
	}
	if task.Status != StatusAssigned {
		return false, nil
	}
	task.Status = StatusCheckedIn
	task.Checkin = &checkin
	return true, nil
}

func (r *fakeRepo) RecordEvidence(_ context.Context, taskID string, evidence Evidence) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return false, ErrNotFound
	}
	if task.Status != StatusCheckedIn {
		return false, nil
	}
	task.Status = StatusSubmitted
	task.Evidence = append(task.Evidence, evidence)
	return true, nil
}

func (r *fakeRepo) RecordReview(_ context.Context, taskID string, review Review) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return false, ErrNotFound
	}
	if task.Status != StatusSubmitted {
		return false, nil
	}
	task.Status = StatusReviewed
	task.Review = &review
	return true, nil
}

func (r *fakeRepo) HasPassedVerification(_ context.Context, changeRequestID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range r.tasks {
		if task.ChangeRequestID != nil && *task.ChangeRequestID == changeRequestID &&
			task.Review != nil && task.Review.Result == ResultPass {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) LatestReviewForStation(_ context.Context, stationID string, since time.Time) (*Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *Review
	for _, task := range r.tasks {
		if task.StationID != stationID || task.Review == nil || task.Review.ReviewedAt.Before(since) {
			continue
		}
		if latest == nil || task.Review.ReviewedAt.After(latest.ReviewedAt) {
			copied := *task.Review
			latest = &copied
		}
	}
	return latest, nil
}

func (r *fakeRepo) WorkloadFor(_ context.Context, collaboratorID string, since time.Time) (WorkloadStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats WorkloadStats
	for _, task := range r.tasks {
		if task.AssignedTo == nil || *task.AssignedTo != collaboratorID {
			continue
		}
		if task.Status == StatusReviewed {
			stats.Completed++
			if task.Review.Result == ResultFail && !task.Review.ReviewedAt.Before(since) {
				stats.RecentFailures++
			}
		} else {
			stats.Active++
		}
	}
	return stats, nil
}

func (r *fakeRepo) ReviewOutcomes(_ context.Context, collaboratorID string, since time.Time) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var passes, fails int
	for _, task := range r.tasks {
		if task.AssignedTo == nil || *task.AssignedTo != collaboratorID {
			continue
		}
		if task.Status != StatusReviewed || task.Review.ReviewedAt.Before(since) {
			continue
		}
		if task.Review.Result == ResultPass {
			passes++
		} else {
			fails++
		}
	}
	return passes, fails, nil
}

func (r *fakeRepo) ListOverdue(_ context.Context, asOf time.Time) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Task
	for _, task := range r.tasks {
		if task.Active() && task.SLADueAt != nil && task.SLADueAt.Before(asOf) {
			out = append(out, *task)
		}
	}
	return out, nil
}

type fakeLocator struct {
	lat, lng float64
}

func (l fakeLocator) StationLocation(_ context.Context, _ string) (float64, float64, error) {
	return l.lat, l.lng, nil
}

type fakeContracts struct {
	active map[string]bool
}

func (c fakeContracts) HasActiveContract(_ context.Context, collaboratorID string) (bool, error) {
	return c.active[collaboratorID], nil
}

type fakeTrust struct {
	mu    sync.Mutex
	calls []string
}

func (t *fakeTrust) RecomputeStation(_ context.Context, stationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, stationID)
}

const (
	stationLat = 45.5017
	stationLng = -73.5673
)

func newTestService(repo Repository, contracts fakeContracts) (*Service, *fakeTrust) {
	trust := &fakeTrust{}
	svc := NewService(repo, fakeLocator{lat: stationLat, lng: stationLng}, contracts, trust, 200, zerolog.Nop())
	return svc, trust
}

func allActive(ids ...string) fakeContracts {
	active := make(map[string]bool)
	for _, id := range ids {
		active[id] = true
	}
	return fakeContracts{active: active}
}

func TestCreateReusesActiveTaskForChangeRequest(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive())

	crID := "cr-1"
	first, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", ChangeRequestID: &crID, Priority: 2})
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", ChangeRequestID: &crID, Priority: 2})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestAssignRequiresEffectiveContract(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive("collab-1"))

	task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", Priority: 3})
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), task.ID, "collab-2")
	var ierr IneligibleCollaboratorError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, "collab-2", ierr.CollaboratorID)

	assigned, err := svc.Assign(context.Background(), task.ID, "collab-1")
	require.NoError(t, err)
	require.Equal(t, StatusAssigned, assigned.Status)
	require.Equal(t, "collab-1", *assigned.AssignedTo)
}

func TestCheckInOutsideGeofenceLeavesTaskAssigned(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive("collab-1"))

	task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", Priority: 3})
	require.NoError(t, err)
	_, err = svc.Assign(context.Background(), task.ID, "collab-1")
	require.NoError(t, err)

	// ~0.01 degrees of latitude is roughly 1.1km away
	_, err = svc.CheckIn(context.Background(), task.ID, "collab-1", CheckinParams{Lat: stationLat + 0.01, Lng: stationLng})
	var oerr OutOfRangeError
	require.ErrorAs(t, err, &oerr)
	require.Greater(t, oerr.DistanceM, 200)
	require.Equal(t, 200, oerr.RadiusM)

	current, err := svc.Get(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAssigned, current.Status)
	require.Nil(t, current.Checkin)
}

func TestCheckInWithinGeofence(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive("collab-1"))

	task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", Priority: 3})
	require.NoError(t, err)
	_, err = svc.Assign(context.Background(), task.ID, "collab-1")
	require.NoError(t, err)

	checked, err := svc.CheckIn(context.Background(), task.ID, "collab-1", CheckinParams{Lat: stationLat + 0.001, Lng: stationLng})
	require.NoError(t, err)
	require.Equal(t, StatusCheckedIn, checked.Status)
	require.NotNil(t, checked.Checkin)
	require.LessOrEqual(t, checked.Checkin.DistanceM, 200)
}

func TestCheckInByNonAssignee(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive("collab-1", "collab-2"))

	task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", Priority: 3})
	require.NoError(t, err)
	_, err = svc.Assign(context.Background(), task.ID, "collab-1")
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), task.ID, "collab-2", CheckinParams{Lat: stationLat, Lng: stationLng})
	var nerr NotAssigneeError
	require.ErrorAs(t, err, &nerr)
}

func TestFullLifecycleAndTrustRecompute(t *testing.T) {
	repo := newFakeRepo()
	svc, trust := newTestService(repo, allActive("collab-1"))

	crID := "cr-9"
	task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", ChangeRequestID: &crID, Priority: 1})
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), task.ID, "collab-1")
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), task.ID, "collab-1", CheckinParams{Lat: stationLat, Lng: stationLng})
	require.NoError(t, err)
	_, err = svc.SubmitEvidence(context.Background(), task.ID, "collab-1", EvidenceParams{PhotoObjectKey: "evidence/photo-1.jpg"})
	require.NoError(t, err)

	reviewed, err := svc.Review(context.Background(), task.ID, "admin-1", ResultPass, "looks good")
	require.NoError(t, err)
	require.Equal(t, StatusReviewed, reviewed.Status)
	require.Equal(t, ResultPass, reviewed.Review.Result)
	require.Equal(t, []string{"station-1"}, trust.calls)

	passed, err := svc.HasPassed(context.Background(), crID)
	require.NoError(t, err)
	require.True(t, passed)
}

func TestSkippingStatesIsRejected(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive("collab-1"))

	task, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", Priority: 3})
	require.NoError(t, err)

	// review an OPEN task
	_, err = svc.Review(context.Background(), task.ID, "admin-1", ResultPass, "")
	var terr InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, StatusOpen, terr.Current)
	require.Equal(t, StatusReviewed, terr.Attempted)

	// evidence before check-in
	_, err = svc.Assign(context.Background(), task.ID, "collab-1")
	require.NoError(t, err)
	_, err = svc.SubmitEvidence(context.Background(), task.ID, "collab-1", EvidenceParams{PhotoObjectKey: "k"})
	require.ErrorAs(t, err, &terr)
	require.Equal(t, StatusAssigned, terr.Current)
}

func TestListOverdue(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, allActive())

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	_, err := svc.Create(context.Background(), TaskCreateParams{StationID: "station-1", Priority: 3, SLADueAt: &past})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), TaskCreateParams{StationID: "station-2", Priority: 3, SLADueAt: &future})
	require.NoError(t, err)

	overdue, err := svc.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, "station-1", overdue[0].StationID)
}

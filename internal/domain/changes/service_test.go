package changes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/server/internal/config"
	"github.com/voltgrid/server/internal/domain/stations"
)

type fakeStationRepo struct {
	mu        sync.Mutex
	stations  map[string]*stations.Station
	versions  map[string]*stations.StationVersion
	versionNo map[string]int
}

func newFakeStationRepo() *fakeStationRepo {
	return &fakeStationRepo{
		stations:  make(map[string]*stations.Station),
		versions:  make(map[string]*stations.StationVersion),
		versionNo: make(map[string]int),
	}
}

func (r *fakeStationRepo) CreateStation(_ context.Context, station stations.Station) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stations[station.ID] = &station
	return nil
}

func (r *fakeStationRepo) GetStation(_ context.Context, id string) (*stations.Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	station, ok := r.stations[id]
	if !ok {
		return nil, stations.ErrNotFound
	}
	copied := *station
	return &copied, nil
}

func (r *fakeStationRepo) ListStations(_ context.Context, _ stations.Filters, _ stations.Pagination) (stations.ListResult, error) {
	return stations.ListResult{}, nil
}

func (r *fakeStationRepo) CreateVersion(_ context.Context, params stations.VersionCreateParams) (*stations.StationVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versionNo[params.StationID]++
	version := &stations.StationVersion{
		ID:             fmt.Sprintf("version-%s-%d", params.StationID, r.versionNo[params.StationID]),
		StationID:      params.StationID,
		VersionNo:      r.versionNo[params.StationID],
		Status:         params.Status,
		Name:           params.Fields.Name,
		Address:        params.Fields.Address,
		Lat:            params.Fields.Lat,
		Lng:            params.Fields.Lng,
		OperatingHours: params.Fields.OperatingHours,
		Parking:        params.Fields.Parking,
		Visibility:     params.Fields.Visibility,
		PublicStatus:   params.Fields.PublicStatus,
		Services:       params.Fields.Services,
		CreatedBy:      params.CreatedBy,
		CreatedAt:      time.Now().UTC(),
	}
	r.versions[version.ID] = version
	return version, nil
}

func (r *fakeStationRepo) GetVersion(_ context.Context, id string) (*stations.StationVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	version, ok := r.versions[id]
	if !ok {
		return nil, stations.ErrVersionNotFound
	}
	copied := *version
	return &copied, nil
}

func (r *fakeStationRepo) GetPublishedVersion(_ context.Context, stationID string) (*stations.StationVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, version := range r.versions {
		if version.StationID == stationID && version.Status == stations.StatusPublished {
			copied := *version
			return &copied, nil
		}
	}
	return nil, stations.ErrVersionNotFound
}

func (r *fakeStationRepo) ListVersions(_ context.Context, stationID string) ([]stations.StationVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stations.StationVersion
	for _, version := range r.versions {
		if version.StationID == stationID {
			out = append(out, *version)
		}
	}
	return out, nil
}

// publish flips the proposed version to PUBLISHED and archives the
// previously published one, all under the repo lock.
func (r *fakeStationRepo) publish(versionID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	proposed := r.versions[versionID]
	for _, version := range r.versions {
		if version.StationID == proposed.StationID && version.Status == stations.StatusPublished {
			version.Status = stations.StatusArchived
		}
	}
	proposed.Status = stations.StatusPublished
	proposed.PublishedAt = &at
}

func (r *fakeStationRepo) rejectVersion(versionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[versionID].Status = stations.StatusRejected
}

func (r *fakeStationRepo) snapshot() (map[string]*stations.Station, map[string]*stations.StationVersion, map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stationsCopy := make(map[string]*stations.Station, len(r.stations))
	for id, station := range r.stations {
		copied := *station
		stationsCopy[id] = &copied
	}
	versionsCopy := make(map[string]*stations.StationVersion, len(r.versions))
	for id, version := range r.versions {
		copied := *version
		versionsCopy[id] = &copied
	}
	numbersCopy := make(map[string]int, len(r.versionNo))
	for id, n := range r.versionNo {
		numbersCopy[id] = n
	}
	return stationsCopy, versionsCopy, numbersCopy
}

func (r *fakeStationRepo) restore(stationsCopy map[string]*stations.Station, versionsCopy map[string]*stations.StationVersion, numbersCopy map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stations = stationsCopy
	r.versions = versionsCopy
	r.versionNo = numbersCopy
}

func (r *fakeStationRepo) countPublished(stationID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, version := range r.versions {
		if version.StationID == stationID && version.Status == stations.StatusPublished {
			count++
		}
	}
	return count
}

type fakeChangeRepo struct {
	mu       sync.Mutex
	requests map[string]*ChangeRequest
	stations *fakeStationRepo
}

func newFakeChangeRepo(stationRepo *fakeStationRepo) *fakeChangeRepo {
	return &fakeChangeRepo{requests: make(map[string]*ChangeRequest), stations: stationRepo}
}

func (r *fakeChangeRepo) Create(_ context.Context, request ChangeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[request.ID] = &request
	return nil
}

func (r *fakeChangeRepo) Get(_ context.Context, id string) (*ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *request
	return &copied, nil
}

func (r *fakeChangeRepo) List(_ context.Context, filters RequestFilters) ([]ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ChangeRequest
	for _, request := range r.requests {
		if filters.Status != "" && request.Status != filters.Status {
			continue
		}
		if filters.StationID != "" && request.StationID != filters.StationID {
			continue
		}
		out = append(out, *request)
	}
	return out, nil
}

func (r *fakeChangeRepo) Decide(_ context.Context, id string, decision Decision) (bool, error) {
	r.mu.Lock()
	request, ok := r.requests[id]
	if !ok {
		r.mu.Unlock()
		return false, ErrNotFound
	}
	if request.Status != StatusPending {
		r.mu.Unlock()
		return false, nil
	}
	request.Status = decision.Status
	request.AdminNote = decision.AdminNote
	request.DecidedBy = decision.DecidedBy
	request.DecidedAt = &decision.DecidedAt
	versionID := request.ProposedVersionID
	r.mu.Unlock()

	if decision.Publish {
		r.stations.publish(versionID, decision.DecidedAt)
	} else {
		r.stations.rejectVersion(versionID)
	}
	return true, nil
}

func (r *fakeChangeRepo) snapshot() map[string]*ChangeRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	requestsCopy := make(map[string]*ChangeRequest, len(r.requests))
	for id, request := range r.requests {
		copied := *request
		requestsCopy[id] = &copied
	}
	return requestsCopy
}

func (r *fakeChangeRepo) restore(requestsCopy map[string]*ChangeRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = requestsCopy
}

func (r *fakeChangeRepo) HasRecentHighRisk(_ context.Context, stationID string, threshold int, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, request := range r.requests {
		if request.StationID == stationID && request.RiskScore >= threshold && !request.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type fakeGate struct {
	mu     sync.Mutex
	tasks  []string
	passed map[string]bool
	prio   map[string]int
	fail   error
}

func newFakeGate() *fakeGate {
	return &fakeGate{passed: make(map[string]bool), prio: make(map[string]int)}
}

func (g *fakeGate) CreateTask(_ context.Context, _, changeRequestID string, priority int, _ *time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return g.fail
	}
	g.tasks = append(g.tasks, changeRequestID)
	g.prio[changeRequestID] = priority
	return nil
}

func (g *fakeGate) HasPassed(_ context.Context, changeRequestID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.passed[changeRequestID], nil
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

// fakeTx hands the fakes to the submission callback and restores their
// state when it fails, mirroring a rolled-back transaction.
type fakeTx struct {
	repo     *fakeChangeRepo
	stations *fakeStationRepo
	gate     *fakeGate
}

func (t fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context, repos TxRepos) error) error {
	requests := t.repo.snapshot()
	stationsCopy, versions, numbers := t.stations.snapshot()
	err := fn(ctx, TxRepos{Requests: t.repo, Stations: t.stations, Gate: t.gate})
	if err != nil {
		t.repo.restore(requests)
		t.stations.restore(stationsCopy, versions, numbers)
	}
	return err
}

type harness struct {
	svc      *Service
	stations *fakeStationRepo
	repo     *fakeChangeRepo
	gate     *fakeGate
	trust    *fakeTrust
}

func newHarness() *harness {
	stationRepo := newFakeStationRepo()
	repo := newFakeChangeRepo(stationRepo)
	gate := newFakeGate()
	trust := &fakeTrust{}
	cfg := config.DefaultWorkflow()
	tx := fakeTx{repo: repo, stations: stationRepo, gate: gate}
	svc := NewService(repo, NewScorer(cfg), gate, trust, tx, cfg, zerolog.Nop())
	return &harness{svc: svc, stations: stationRepo, repo: repo, gate: gate, trust: trust}
}

// seedPublished creates a station with one published version and returns
// the station id.
func (h *harness) seedPublished(t *testing.T, fields stations.VersionFields) string {
	t.Helper()
	station := stations.Station{ID: "station-seed", ProviderID: "provider-1", CreatedAt: time.Now().UTC()}
	require.NoError(t, h.stations.CreateStation(context.Background(), station))
	version, err := h.stations.CreateVersion(context.Background(), stations.VersionCreateParams{
		StationID: station.ID,
		Status:    stations.StatusPendingReview,
		Fields:    fields,
		CreatedBy: "provider-1",
	})
	require.NoError(t, err)
	h.stations.publish(version.ID, time.Now().UTC())
	return station.ID
}

func TestSubmitCreateIsAutoApplied(t *testing.T) {
	h := newHarness()

	request, err := h.svc.Submit(context.Background(), SubmitParams{
		Type:        TypeCreate,
		ProviderID:  "provider-1",
		SubmittedBy: "provider-1",
		Fields:      baseFields(),
	})
	require.NoError(t, err)
	require.Equal(t, StatusAutoApplied, request.Status)
	require.Equal(t, 10, request.RiskScore)
	require.NotNil(t, request.DecidedAt)

	published, err := h.stations.GetPublishedVersion(context.Background(), request.StationID)
	require.NoError(t, err)
	require.Equal(t, request.ProposedVersionID, published.ID)
	require.Empty(t, h.gate.tasks)
	require.Equal(t, []string{request.StationID}, h.trust.calls)
}

func TestSubmitHighRiskStaysPendingAndOpensTask(t *testing.T) {
	h := newHarness()
	stationID := h.seedPublished(t, baseFields())

	proposed := baseFields()
	proposed.Visibility = stations.VisibilityPrivate
	proposed.Lat += 0.045

	request, err := h.svc.Submit(context.Background(), SubmitParams{
		Type:        TypeUpdate,
		StationID:   stationID,
		SubmittedBy: "provider-1",
		Fields:      proposed,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, request.Status)
	require.Equal(t, 60, request.RiskScore)
	require.Equal(t, []string{request.ID}, h.gate.tasks)
	require.Equal(t, 3, h.gate.prio[request.ID])

	// the published version is untouched
	published, err := h.stations.GetPublishedVersion(context.Background(), stationID)
	require.NoError(t, err)
	require.NotEqual(t, request.ProposedVersionID, published.ID)
}

func TestSubmitLowRiskUpdatePublishesAndSupersedes(t *testing.T) {
	h := newHarness()
	stationID := h.seedPublished(t, baseFields())

	proposed := baseFields()
	proposed.Name = "Plateau Fast Charge East"

	request, err := h.svc.Submit(context.Background(), SubmitParams{
		Type:        TypeUpdate,
		StationID:   stationID,
		SubmittedBy: "provider-1",
		Fields:      proposed,
	})
	require.NoError(t, err)
	require.Equal(t, StatusAutoApplied, request.Status)

	published, err := h.stations.GetPublishedVersion(context.Background(), stationID)
	require.NoError(t, err)
	require.Equal(t, request.ProposedVersionID, published.ID)
	require.Equal(t, 1, h.stations.countPublished(stationID))
}

func TestSubmitLeavesNothingBehindWhenTaskCreationFails(t *testing.T) {
	h := newHarness()
	stationID := h.seedPublished(t, baseFields())
	h.gate.fail = errors.New("task queue unavailable")

	proposed := baseFields()
	proposed.Lat += 0.045
	proposed.Visibility = stations.VisibilityPrivate

	_, err := h.svc.Submit(context.Background(), SubmitParams{
		Type:        TypeUpdate,
		StationID:   stationID,
		SubmittedBy: "provider-1",
		Fields:      proposed,
	})
	require.ErrorIs(t, err, h.gate.fail)

	// no request and no second version survive the failed submission
	requests, err := h.svc.List(context.Background(), RequestFilters{})
	require.NoError(t, err)
	require.Empty(t, requests)

	versions, err := h.stations.ListVersions(context.Background(), stationID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.Equal(t, stations.StatusPublished, versions[0].Status)
	require.Empty(t, h.trust.calls)
}

func TestSubmitRejectsMalformedFields(t *testing.T) {
	h := newHarness()

	fields := baseFields()
	fields.Name = ""
	_, err := h.svc.Submit(context.Background(), SubmitParams{
		Type:        TypeCreate,
		ProviderID:  "provider-1",
		SubmittedBy: "provider-1",
		Fields:      fields,
	})
	var verr stations.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "name", verr.Field)
}

func TestApproveHighRiskRequiresPassingVerification(t *testing.T) {
	h := newHarness()
	stationID := h.seedPublished(t, baseFields())

	proposed := baseFields()
	proposed.Lat += 0.045
	proposed.Visibility = stations.VisibilityPrivate

	request, err := h.svc.Submit(context.Background(), SubmitParams{
		Type:        TypeUpdate,
		StationID:   stationID,
		SubmittedBy: "provider-1",
		Fields:      proposed,
	})
	require.NoError(t, err)

	_, err = h.svc.Approve(context.Background(), request.ID, "admin-1", "")
	var serr InvalidStateError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, request.ID, serr.RequestID)

	h.gate.passed[request.ID] = true
	approved, err := h.svc.Approve(context.Background(), request.ID, "admin-1", "verified on site")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, "admin-1", approved.DecidedBy)

	published, err := h.stations.GetPublishedVersion(context.Background(), stationID)
	require.NoError(t, err)
	require.Equal(t, request.ProposedVersionID, published.ID)
	require.Equal(t, 1, h.stations.countPublished(stationID))
}

func TestRejectRequiresReasonAndLeavesVersionUnpublished(t *testing.T) {
	h := newHarness()
	stationID := h.seedPublished(t, baseFields())

	proposed := baseFields()
	proposed.Lat += 0.045
	proposed.Visibility = stations.VisibilityPrivate

	request, err := h.svc.Submit(context.Background(), SubmitParams{
		Type:        TypeUpdate,
		StationID:   stationID,
		SubmittedBy: "provider-1",
		Fields:      proposed,
	})
	require.NoError(t, err)

	_, err = h.svc.Reject(context.Background(), request.ID, "admin-1", "  ")
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "reason", verr.Field)

	rejected, err := h.svc.Reject(context.Background(), request.ID, "admin-1", "could not confirm the new location")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)

	version, err := h.stations.GetVersion(context.Background(), request.ProposedVersionID)
	require.NoError(t, err)
	require.Equal(t, stations.StatusRejected, version.Status)
}

func TestDecidingTwiceFails(t *testing.T) {
	h := newHarness()
	stationID := h.seedPublished(t, baseFields())

	proposed := baseFields()
	proposed.Lat += 0.045
	proposed.Visibility = stations.VisibilityPrivate

	request, err := h.svc.Submit(context.Background(), SubmitParams{
		Type:        TypeUpdate,
		StationID:   stationID,
		SubmittedBy: "provider-1",
		Fields:      proposed,
	})
	require.NoError(t, err)

	_, err = h.svc.Reject(context.Background(), request.ID, "admin-1", "no")
	require.NoError(t, err)

	_, err = h.svc.Reject(context.Background(), request.ID, "admin-2", "also no")
	var derr AlreadyDecidedError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, StatusRejected, derr.Status)
}

func TestConcurrentDecisionsHaveOneWinner(t *testing.T) {
	h := newHarness()
	stationID := h.seedPublished(t, baseFields())

	proposed := baseFields()
	proposed.Lat += 0.045
	proposed.Visibility = stations.VisibilityPrivate

	request, err := h.svc.Submit(context.Background(), SubmitParams{
		Type:        TypeUpdate,
		StationID:   stationID,
		SubmittedBy: "provider-1",
		Fields:      proposed,
	})
	require.NoError(t, err)
	h.gate.passed[request.ID] = true

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var err error
			if n%2 == 0 {
				_, err = h.svc.Approve(context.Background(), request.ID, "admin-1", "")
			} else {
				_, err = h.svc.Reject(context.Background(), request.ID, "admin-2", "reject race")
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		var derr AlreadyDecidedError
		require.ErrorAs(t, err, &derr)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, h.stations.countPublished(stationID))

	final, err := h.svc.Get(context.Background(), request.ID)
	require.NoError(t, err)
	require.True(t, final.Status.Terminal())
}

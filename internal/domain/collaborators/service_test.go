package collaborators

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	profiles  map[string]*Profile
	contracts map[string]*Contract
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles:  make(map[string]*Profile),
		contracts: make(map[string]*Contract),
	}
}

func (r *fakeRepo) GetProfile(_ context.Context, userID string) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeRepo) ListProfiles(_ context.Context) ([]Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeRepo) CreateProfile(_ context.Context, profile Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = &profile
	return nil
}

func (r *fakeRepo) UpdateLocation(_ context.Context, userID string, location Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.Location = &location
	return nil
}

func (r *fakeRepo) CreateContract(_ context.Context, contract Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[contract.ID] = &contract
	return nil
}

func (r *fakeRepo) UpdateContractStatus(_ context.Context, contractID string, status ContractStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[contractID]
	if !ok {
		return ErrContractNotFound
	}
	c.Status = status
	return nil
}

func (r *fakeRepo) ListContracts(_ context.Context, collaboratorID string) ([]Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Contract
	for _, c := range r.contracts {
		if c.CollaboratorID == collaboratorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeRepo) HasEffectiveContract(_ context.Context, userID string, on time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contracts {
		if c.CollaboratorID == userID && c.IsEffective(on) {
			return true, nil
		}
	}
	return false, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, zerolog.Nop())
}

func TestCreateProfileRequiresDisplayName(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.CreateProfile(context.Background(), "user-1", "  ", "")
	require.Error(t, err)
}

func TestReportLocationRejectsInvalidCoordinates(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	_, err := svc.CreateProfile(context.Background(), "user-1", "Dana", "")
	require.NoError(t, err)

	_, err = svc.ReportLocation(context.Background(), "user-1", 120, 0, LocationMobile)
	require.Error(t, err)

	profile, err := svc.Profile(context.Background(), "user-1")
	require.NoError(t, err)
	require.Nil(t, profile.Location)
}

func TestReportLocationStores(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	_, err := svc.CreateProfile(context.Background(), "user-1", "Dana", "")
	require.NoError(t, err)

	loc, err := svc.ReportLocation(context.Background(), "user-1", 45.5, -73.6, LocationMobile)
	require.NoError(t, err)
	require.Equal(t, 45.5, loc.Lat)

	profile, err := svc.Profile(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, profile.Location)
	require.Equal(t, -73.6, profile.Location.Lng)
}

func TestContractEffectiveWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	contract := Contract{
		Status:    ContractActive,
		StartDate: now.AddDate(0, 0, -10),
		EndDate:   now.AddDate(0, 0, 10),
	}
	require.True(t, contract.IsEffective(now))

	contract.Status = ContractSuspended
	require.False(t, contract.IsEffective(now))

	contract.Status = ContractActive
	contract.EndDate = now.AddDate(0, 0, -1)
	require.False(t, contract.IsEffective(now))
}

func TestHasActiveContract(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	_, err := svc.CreateProfile(context.Background(), "user-1", "Dana", "")
	require.NoError(t, err)

	ok, err := svc.HasActiveContract(context.Background(), "user-1")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.CreateContract(context.Background(), ContractCreateParams{
		CollaboratorID: "user-1",
		StartDate:      time.Now().AddDate(0, 0, -1),
		EndDate:        time.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	ok, err = svc.HasActiveContract(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateContractValidatesDates(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	_, err := svc.CreateProfile(context.Background(), "user-1", "Dana", "")
	require.NoError(t, err)

	_, err = svc.CreateContract(context.Background(), ContractCreateParams{
		CollaboratorID: "user-1",
		StartDate:      time.Now(),
		EndDate:        time.Now().AddDate(0, 0, -5),
	})
	require.Error(t, err)
}

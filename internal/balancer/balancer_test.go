package balancer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/backend/internal/apperr"
	"github.com/aura-webinar/backend/internal/models"
)

func backend(cap int, group, version string) models.JanusBackend {
	return models.JanusBackend{
		ID:               uuid.New(),
		BalancerCapacity: cap,
		Group:            group,
		APIVersion:       version,
	}
}

func TestPick_NoAvailableBackends(t *testing.T) {
	req := Request{CompliantAPI: "v1"}
	_, err := Pick(nil, req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNoAvailableBackends))
}

func TestPick_FiltersByGroupAndVersion(t *testing.T) {
	grouped := backend(10, "groupA", "v1")
	wrongGroup := backend(10, "groupB", "v1")
	wrongVersion := backend(10, "groupA", "v0")
	candidates := []Candidate{{Backend: wrongGroup}, {Backend: wrongVersion}, {Backend: grouped}}

	group := "groupA"
	req := Request{
		Room:         models.Room{JanusGroup: &group},
		CompliantAPI: "v1",
	}
	picked, err := Pick(candidates, req)
	require.NoError(t, err)
	assert.Equal(t, grouped.ID, picked.ID)
}

func TestPick_GreatestFreeCapacityWins(t *testing.T) {
	loaded := Candidate{Backend: backend(10, "", "v1"), Load: Load{ActivePublishers: 8}}
	free := Candidate{Backend: backend(10, "", "v1"), Load: Load{ActivePublishers: 1}}
	req := Request{CompliantAPI: "v1"}

	picked, err := Pick([]Candidate{loaded, free}, req)
	require.NoError(t, err)
	assert.Equal(t, free.Backend.ID, picked.ID)
}

func TestPick_OwnedRoomN2Term(t *testing.T) {
	// capacity 20; one owned publisher with mesh size 4 costs 16 (4^2),
	// which outweighs 10 plain publishers elsewhere.
	meshHeavy := Candidate{Backend: backend(20, "", "v1"), Load: Load{ActiveOwnedPublishers: 1}}
	plain := Candidate{Backend: backend(20, "", "v1"), Load: Load{ActivePublishers: 10}}
	req := Request{CompliantAPI: "v1", MeshSize: 4}

	picked, err := Pick([]Candidate{meshHeavy, plain}, req)
	require.NoError(t, err)
	assert.Equal(t, plain.Backend.ID, picked.ID)
}

func TestPick_ReserveFloorBlocksNonOwner(t *testing.T) {
	// spec §8 scenario 5: capacity 10, reserve 4, 6 outside subscribers
	// already present -> rawFree = 4 = reserve -> next outside request
	// (not holding the reserve) is rejected.
	b := Candidate{Backend: backend(10, "", "v1"), Load: Load{ActiveSubscribers: 6}}
	req := Request{CompliantAPI: "v1", RoomReserve: 4, RoomHoldsReserve: false}

	_, err := Pick([]Candidate{b}, req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCapacityExceeded))
}

func TestPick_ReserveHolderSucceedsAtFloor(t *testing.T) {
	b := Candidate{Backend: backend(10, "", "v1"), Load: Load{ActiveSubscribers: 6}}
	req := Request{CompliantAPI: "v1", RoomReserve: 4, RoomHoldsReserve: true}

	picked, err := Pick([]Candidate{b}, req)
	require.NoError(t, err)
	assert.Equal(t, b.Backend.ID, picked.ID)
}

func TestPick_ReserveHolderFailsWhenBackendFull(t *testing.T) {
	b := Candidate{Backend: backend(10, "", "v1"), Load: Load{ActiveSubscribers: 10}}
	req := Request{CompliantAPI: "v1", RoomReserve: 4, RoomHoldsReserve: true}

	_, err := Pick([]Candidate{b}, req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCapacityExceeded))
}

func TestPick_PinnedBackendBypassesFiltering(t *testing.T) {
	pinned := backend(10, "other-group", "v0")
	candidates := []Candidate{{Backend: pinned}}
	id := pinned.ID
	req := Request{PinnedBackend: &id, CompliantAPI: "v1"}

	picked, err := Pick(candidates, req)
	require.NoError(t, err)
	assert.Equal(t, pinned.ID, picked.ID)
}

func TestPick_PinnedBackendMissingFromPool(t *testing.T) {
	id := uuid.New()
	req := Request{PinnedBackend: &id}
	_, err := Pick([]Candidate{{Backend: backend(10, "", "v1")}}, req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBackendNotFound))
}

func TestPick_OnlyBackendReturnedWhenFreeEqualsReserve(t *testing.T) {
	// spec §8 boundary: "balancer returns the only backend even when its
	// free capacity equals the reserve, provided no hard cap is exceeded" —
	// this is the reserve-holder path (free==reserve is still >0).
	b := Candidate{Backend: backend(10, "", "v1"), Load: Load{ActiveSubscribers: 6}}
	req := Request{CompliantAPI: "v1", RoomReserve: 4, RoomHoldsReserve: true}

	picked, err := Pick([]Candidate{b}, req)
	require.NoError(t, err)
	assert.Equal(t, b.Backend.ID, picked.ID)
}
